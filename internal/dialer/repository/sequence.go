package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Sequence tracks a lead's progress through the call cadence. One row per
// lead, created lazily the first time the cadence machine examines it.
type Sequence struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	SequenceStep    int
	NextCallTime    *time.Time
	CallWindowStart *string
	CallWindowEnd   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const sequenceColumns = `id, lead_id, sequence_step, next_call_time, call_window_start, call_window_end, created_at, updated_at`

func scanSequence(row pgx.Row, seq *Sequence) error {
	return row.Scan(
		&seq.ID, &seq.LeadID, &seq.SequenceStep, &seq.NextCallTime,
		&seq.CallWindowStart, &seq.CallWindowEnd, &seq.CreatedAt, &seq.UpdatedAt,
	)
}

func (r *Repository) GetSequence(ctx context.Context, leadID uuid.UUID) (Sequence, error) {
	var seq Sequence
	err := scanSequence(r.q.QueryRow(ctx, `
		SELECT `+sequenceColumns+`
		FROM lead_sequence WHERE lead_id = $1
	`, leadID), &seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sequence{}, ErrSequenceNotFound
	}
	return seq, err
}

// CreateSequence inserts the initial (step 0, unscheduled) row for a lead.
// Safe to race with another creator: the existing row wins.
func (r *Repository) CreateSequence(ctx context.Context, leadID uuid.UUID) (Sequence, error) {
	var seq Sequence
	err := scanSequence(r.q.QueryRow(ctx, `
		INSERT INTO lead_sequence (lead_id, sequence_step, next_call_time)
		VALUES ($1, 0, NULL)
		ON CONFLICT (lead_id) DO UPDATE SET lead_id = EXCLUDED.lead_id
		RETURNING `+sequenceColumns+`
	`, leadID), &seq)
	return seq, err
}

// UpdateSequence persists the cadence machine's decision for a lead.
func (r *Repository) UpdateSequence(ctx context.Context, id uuid.UUID, step int, nextCallTime *time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE lead_sequence
		SET sequence_step = $2, next_call_time = $3, updated_at = now()
		WHERE id = $1
	`, id, step, nextCallTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSequenceNotFound
	}
	return nil
}
