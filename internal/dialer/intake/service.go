// Package intake accepts leads from upstream sources (imports, form
// captures, manual entry) and lands them in the repository. Ingest is keyed
// on the normalized phone number: re-submitting a known lead refreshes its
// profile fields without disturbing call statistics or cadence position.
package intake

import (
	"context"
	"errors"
	"time"

	"dialer_backend/internal/dialer/repository"
	"dialer_backend/platform/apperr"
	"dialer_backend/platform/phone"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// LeadInput is a single inbound lead record.
type LeadInput struct {
	PhoneNumber  string         `validate:"required"`
	Name         string         `validate:"required"`
	Email        *string        `validate:"omitempty,email"`
	Company      *string        `validate:"omitempty,max=255"`
	Notes        *string        `validate:"omitempty,max=10000"`
	Importance   string         `validate:"omitempty,oneof=low normal high"`
	IsHot        bool
	FollowUpDate *time.Time
	CustomFields map[string]any
}

// Store is the repository surface intake needs.
type Store interface {
	repository.LeadReader
	repository.LeadWriter
	CreateSequence(ctx context.Context, leadID uuid.UUID) (repository.Sequence, error)
}

// Service validates and upserts inbound leads.
type Service struct {
	store    Store
	validate *validator.Validate
}

func New(store Store) *Service {
	return &Service{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Ingest upserts one lead by phone number and ensures it has a cadence row.
// New leads start at status "new" with zero call statistics. Existing leads
// get their mutable fields refreshed; call_count, added_at and sequence
// position are never reset by a re-import.
func (s *Service) Ingest(ctx context.Context, in LeadInput) (repository.Lead, error) {
	if err := s.validate.Struct(in); err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindValidation, "invalid lead input", err)
	}

	if !phone.IsValidE164(in.PhoneNumber) {
		return repository.Lead{}, apperr.Validation("invalid phone number: " + in.PhoneNumber)
	}
	normalized := phone.NormalizeE164(in.PhoneNumber)

	importance := in.Importance
	if importance == "" {
		importance = repository.ImportanceNormal
	}

	existing, err := s.store.GetByPhone(ctx, normalized)
	switch {
	case err == nil:
		lead, err := s.store.UpdateMutable(ctx, existing.ID, repository.UpdateLeadParams{
			Name:         in.Name,
			Email:        in.Email,
			Company:      in.Company,
			Notes:        in.Notes,
			Importance:   importance,
			IsHot:        in.IsHot,
			FollowUpDate: in.FollowUpDate,
			CustomFields: in.CustomFields,
		})
		if err != nil {
			return repository.Lead{}, err
		}
		// Backfill for leads that predate their sequence row; the
		// insert is an upsert, so an existing row is untouched.
		if _, err := s.store.CreateSequence(ctx, lead.ID); err != nil {
			return repository.Lead{}, err
		}
		return lead, nil
	case errors.Is(err, repository.ErrNotFound):
		lead, err := s.store.Create(ctx, repository.CreateLeadParams{
			PhoneNumber:  normalized,
			Name:         in.Name,
			Email:        in.Email,
			Company:      in.Company,
			Notes:        in.Notes,
			Importance:   importance,
			IsHot:        in.IsHot,
			FollowUpDate: in.FollowUpDate,
			CustomFields: in.CustomFields,
		})
		if err != nil {
			return repository.Lead{}, err
		}
		if _, err := s.store.CreateSequence(ctx, lead.ID); err != nil {
			return repository.Lead{}, err
		}
		return lead, nil
	default:
		return repository.Lead{}, err
	}
}
