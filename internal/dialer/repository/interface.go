package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Consumer-driven interfaces. Services depend on the slice of the repository
// they actually use, which keeps them testable with small fakes.

// LeadReader provides read access to leads.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	GetByPhone(ctx context.Context, phoneNumber string) (Lead, error)
	ListCallable(ctx context.Context) ([]LeadWithSequence, error)
}

// LeadWriter mutates lead records.
type LeadWriter interface {
	Create(ctx context.Context, params CreateLeadParams) (Lead, error)
	UpdateMutable(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error)
	SetDoNotCall(ctx context.Context, id uuid.UUID, doNotCall bool) error
	RecordCallAttempt(ctx context.Context, leadID uuid.UUID, at time.Time) error
	MarkInactive(ctx context.Context, leadID uuid.UUID) error
}

// SequenceStore owns the lead_sequence rows. Only the cadence machine
// writes through it.
type SequenceStore interface {
	GetSequence(ctx context.Context, leadID uuid.UUID) (Sequence, error)
	CreateSequence(ctx context.Context, leadID uuid.UUID) (Sequence, error)
	UpdateSequence(ctx context.Context, id uuid.UUID, step int, nextCallTime *time.Time) error
	MarkInactive(ctx context.Context, leadID uuid.UUID) error
}

// NumberUsageStore owns the used_numbers rotation history. Only the number
// selector writes through it.
type NumberUsageStore interface {
	NumbersUsedOn(ctx context.Context, leadID uuid.UUID, day time.Time) ([]string, error)
	LastUsedNumber(ctx context.Context, leadID uuid.UUID) (string, error)
	RecordUsedNumber(ctx context.Context, leadID uuid.UUID, number string, at time.Time) error
}

// CallLogger appends to the call_history log. Only the scheduler loop
// writes through it.
type CallLogger interface {
	CreateCallHistory(ctx context.Context, params CreateCallHistoryParams) (CallHistory, error)
}
