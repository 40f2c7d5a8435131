package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("lead not found")
	ErrSequenceNotFound = errors.New("lead sequence not found")
)

// Lead status values.
const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusInactive   = "inactive"
	StatusDoNotCall  = "do_not_call"
)

// Lead importance values.
const (
	ImportanceLow    = "low"
	ImportanceNormal = "normal"
	ImportanceHigh   = "high"
)

// Call result values written by external callback handling; the scheduler
// only reads them for prioritization.
const (
	ResultInterested        = "interested"
	ResultCallbackRequested = "callback_requested"
	ResultVoicemail         = "voicemail"
	ResultNoAnswer          = "no_answer"
)

// Querier is the subset of pgx operations shared by a pool and a transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides typed access to lead, call-history, sequence, and
// number-usage records. It owns no scheduling logic.
type Repository struct {
	pool *pgxpool.Pool // nil when bound to a transaction
	q    Querier
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// withTx returns a repository bound to the given transaction.
func (r *Repository) withTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

// InTx runs fn inside a single transaction, committing only if fn returns nil.
// The scheduler loop wraps each tick in one of these so a mid-tick failure
// rolls back every mutation at once.
func (r *Repository) InTx(ctx context.Context, fn func(store *Repository) error) error {
	if r.pool == nil {
		return errors.New("repository already transaction-bound")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(r.withTx(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// TryLockLead takes a transaction-scoped advisory lock on the lead. It
// returns false when another scheduler instance holds the lock, in which
// case the caller should skip the lead this tick. The lock releases
// automatically at transaction end.
func (r *Repository) TryLockLead(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var locked bool
	err := r.q.QueryRow(ctx,
		`SELECT pg_try_advisory_xact_lock(hashtextextended($1::text, 0))`,
		leadID,
	).Scan(&locked)
	return locked, err
}

type Lead struct {
	ID              uuid.UUID
	PhoneNumber     string
	Name            string
	AddedAt         time.Time
	Notes           *string
	Importance      string
	IsHot           bool
	DoNotCall       bool
	FollowUpDate    *time.Time
	LastCallAttempt *time.Time
	CallCount       int
	Status          string
	LastCallResult  *string
	Email           *string
	Company         *string
	CustomFields    map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LeadWithSequence joins a lead with its sequence row (absent for leads the
// cadence machine has never examined).
type LeadWithSequence struct {
	Lead
	SequenceStep *int
	NextCallTime *time.Time
}

const leadColumns = `id, phone_number, name, added_at, notes, importance, is_hot, do_not_call,
	follow_up_date, last_call_attempt, call_count, status, last_call_result,
	email, company, custom_fields, created_at, updated_at`

func scanLead(row pgx.Row, lead *Lead) error {
	return row.Scan(
		&lead.ID, &lead.PhoneNumber, &lead.Name, &lead.AddedAt, &lead.Notes,
		&lead.Importance, &lead.IsHot, &lead.DoNotCall,
		&lead.FollowUpDate, &lead.LastCallAttempt, &lead.CallCount, &lead.Status,
		&lead.LastCallResult, &lead.Email, &lead.Company, &lead.CustomFields,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	var lead Lead
	err := scanLead(r.q.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1
	`, id), &lead)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) GetByPhone(ctx context.Context, phoneNumber string) (Lead, error) {
	var lead Lead
	err := scanLead(r.q.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE phone_number = $1
	`, phoneNumber), &lead)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type CreateLeadParams struct {
	PhoneNumber  string
	Name         string
	Notes        *string
	Importance   string
	IsHot        bool
	FollowUpDate *time.Time
	Email        *string
	Company      *string
	CustomFields map[string]any
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	if params.Importance == "" {
		params.Importance = ImportanceNormal
	}
	if params.CustomFields == nil {
		params.CustomFields = map[string]any{}
	}

	var lead Lead
	err := scanLead(r.q.QueryRow(ctx, `
		INSERT INTO leads (phone_number, name, notes, importance, is_hot, follow_up_date, email, company, custom_fields, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+leadColumns+`
	`,
		params.PhoneNumber, params.Name, params.Notes, params.Importance, params.IsHot,
		params.FollowUpDate, params.Email, params.Company, params.CustomFields, StatusNew,
	), &lead)
	return lead, err
}

type UpdateLeadParams struct {
	Name         string
	Notes        *string
	Importance   string
	IsHot        bool
	FollowUpDate *time.Time
	Email        *string
	Company      *string
	CustomFields map[string]any
}

// UpdateMutable rewrites the externally editable fields of a lead. Call
// statistics (`call_count`, `last_call_attempt`, `added_at`) are never
// touched here; a do_not_call status is preserved until cleared explicitly.
func (r *Repository) UpdateMutable(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	if params.Importance == "" {
		params.Importance = ImportanceNormal
	}
	if params.CustomFields == nil {
		params.CustomFields = map[string]any{}
	}

	var lead Lead
	err := scanLead(r.q.QueryRow(ctx, `
		UPDATE leads
		SET name = $2,
			notes = $3,
			importance = $4,
			is_hot = $5,
			follow_up_date = $6,
			email = $7,
			company = $8,
			custom_fields = $9,
			status = CASE WHEN status = 'do_not_call' THEN status
			              WHEN status = 'inactive' THEN 'in_progress'
			              ELSE status END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns+`
	`,
		id, params.Name, params.Notes, params.Importance, params.IsHot,
		params.FollowUpDate, params.Email, params.Company, params.CustomFields,
	), &lead)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// SetDoNotCall flips the do-not-call flag, keeping the status column in sync.
func (r *Repository) SetDoNotCall(ctx context.Context, id uuid.UUID, doNotCall bool) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE leads
		SET do_not_call = $2,
			status = CASE
				WHEN $2 THEN 'do_not_call'
				WHEN status = 'do_not_call' THEN 'in_progress'
				ELSE status END,
			updated_at = now()
		WHERE id = $1
	`, id, doNotCall)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCallable returns every lead the scheduler may consider this tick,
// left-joined with its sequence row. Time-based eligibility (future
// follow-ups and future next_call_time) is filtered by the caller against
// the injected clock.
func (r *Repository) ListCallable(ctx context.Context) ([]LeadWithSequence, error) {
	rows, err := r.q.Query(ctx, `
		SELECT l.id, l.phone_number, l.name, l.added_at, l.notes, l.importance, l.is_hot, l.do_not_call,
			l.follow_up_date, l.last_call_attempt, l.call_count, l.status, l.last_call_result,
			l.email, l.company, l.custom_fields, l.created_at, l.updated_at,
			ls.sequence_step, ls.next_call_time
		FROM leads l
		LEFT JOIN lead_sequence ls ON ls.lead_id = l.id
		WHERE l.do_not_call = FALSE AND l.status NOT IN ('inactive', 'do_not_call')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]LeadWithSequence, 0)
	for rows.Next() {
		var item LeadWithSequence
		if err := rows.Scan(
			&item.ID, &item.PhoneNumber, &item.Name, &item.AddedAt, &item.Notes,
			&item.Importance, &item.IsHot, &item.DoNotCall,
			&item.FollowUpDate, &item.LastCallAttempt, &item.CallCount, &item.Status,
			&item.LastCallResult, &item.Email, &item.Company, &item.CustomFields,
			&item.CreatedAt, &item.UpdatedAt,
			&item.SequenceStep, &item.NextCallTime,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// RecordCallAttempt bumps the lead's call statistics after a placed attempt.
// A new lead moves to in_progress on its first call.
func (r *Repository) RecordCallAttempt(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE leads
		SET call_count = call_count + 1,
			last_call_attempt = $2,
			status = CASE WHEN status = 'new' THEN 'in_progress' ELSE status END,
			updated_at = now()
		WHERE id = $1
	`, leadID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkInactive soft-deactivates a lead that has aged out of the cadence.
func (r *Repository) MarkInactive(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
		UPDATE leads SET status = 'inactive', updated_at = now() WHERE id = $1
	`, leadID)
	return err
}
