package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// NumbersUsedOn returns the outbound numbers already assigned to a lead on
// the given calendar day, most recent first.
func (r *Repository) NumbersUsedOn(ctx context.Context, leadID uuid.UUID, day time.Time) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT twilio_number
		FROM used_numbers
		WHERE lead_id = $1 AND call_time::date = $2::date
		ORDER BY call_time DESC
	`, leadID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	numbers := make([]string, 0)
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, err
		}
		numbers = append(numbers, number)
	}

	return numbers, rows.Err()
}

// LastUsedNumber returns the number most recently assigned to a lead, or
// empty when the lead has never been assigned one.
func (r *Repository) LastUsedNumber(ctx context.Context, leadID uuid.UUID) (string, error) {
	var number string
	err := r.q.QueryRow(ctx, `
		SELECT twilio_number
		FROM used_numbers
		WHERE lead_id = $1
		ORDER BY call_time DESC
		LIMIT 1
	`, leadID).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

// RecordUsedNumber appends an assignment to the rotation history.
func (r *Repository) RecordUsedNumber(ctx context.Context, leadID uuid.UUID, number string, at time.Time) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO used_numbers (lead_id, twilio_number, call_time)
		VALUES ($1, $2, $3)
	`, leadID, number, at)
	return err
}
