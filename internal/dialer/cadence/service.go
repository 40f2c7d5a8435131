// Package cadence implements the multi-phase follow-up schedule: several
// calls on day 0, twice daily through the first week, daily through the
// second, every three days through day 28, weekly through day 90, then
// dormant. It is the sole writer of lead_sequence rows.
package cadence

import (
	"context"
	"errors"
	"time"

	"dialer_backend/internal/dialer/repository"
	"dialer_backend/internal/dialer/scoring"

	"github.com/jonboulle/clockwork"
)

// Time-of-day anchors for scheduled calls, in the scheduler's local zone.
const (
	morningHour   = 9
	midMorning    = 10
	lateMorning   = 11
	afternoonHour = 14
	noonHour      = 12
	endOfDayHour  = 17
)

// Service advances a lead's sequence after each call attempt.
type Service struct {
	store repository.SequenceStore
	clock clockwork.Clock
}

// New creates a cadence service bound to a sequence store. The store may be
// transaction-scoped; every Advance persists its decision through it before
// returning.
func New(store repository.SequenceStore, clock clockwork.Clock) *Service {
	return &Service{store: store, clock: clock}
}

// Advance computes the lead's next eligible call time and sequence step from
// its snapshot, persists both, and returns them. The lead snapshot must
// already reflect the attempt just made (call_count incremented,
// last_call_attempt set). A nil next call time means the lead is dormant.
func (s *Service) Advance(ctx context.Context, lead repository.Lead) (*time.Time, int, error) {
	seq, err := s.store.GetSequence(ctx, lead.ID)
	if errors.Is(err, repository.ErrSequenceNotFound) {
		seq, err = s.store.CreateSequence(ctx, lead.ID)
	}
	if err != nil {
		return nil, 0, err
	}

	now := s.clock.Now()
	next, step := s.plan(lead, seq, now)

	if next == nil {
		// Aged out: call-stopping terminal state until someone
		// manually reactivates the lead.
		if err := s.store.MarkInactive(ctx, lead.ID); err != nil {
			return nil, 0, err
		}
	}

	if err := s.store.UpdateSequence(ctx, seq.ID, step, next); err != nil {
		return nil, 0, err
	}

	return next, step, nil
}

// plan is the pure cadence decision. Deterministic given the snapshot and now.
func (s *Service) plan(lead repository.Lead, seq repository.Sequence, now time.Time) (*time.Time, int) {
	days := scoring.DaysSinceAdded(lead, now)
	step := seq.SequenceStep

	// An explicit future follow-up overrides the normal sequence.
	if lead.FollowUpDate != nil && scoring.DaysBetween(now, *lead.FollowUpDate) > 0 {
		return timePtr(atHour(*lead.FollowUpDate, morningHour, now.Location())), step
	}

	switch {
	case days == 0:
		// Day-0 burst: three attempts, then fall into the daily schedule.
		switch {
		case lead.CallCount <= 1:
			return timePtr(now.Add(5 * time.Minute)), 1
		case lead.CallCount == 2:
			return timePtr(now.Add(2 * time.Hour)), 2
		default:
			return timePtr(atHour(nextDay(now), morningHour, now.Location())), 3
		}

	case days <= 7:
		// Two calls per day, at least three hours apart.
		var next time.Time
		if calledToday(lead, now) {
			next = lead.LastCallAttempt.Add(3 * time.Hour)
			if next.Hour() >= endOfDayHour {
				next = atHour(nextDay(now), morningHour, now.Location())
			}
		} else if now.Hour() >= noonHour {
			next = now
		} else {
			next = atHour(now, morningHour, now.Location())
		}
		return timePtr(next), step + 1

	case days <= 14:
		// One call per day.
		var next time.Time
		if calledToday(lead, now) || now.Hour() >= endOfDayHour {
			next = atHour(nextDay(now), midMorning, now.Location())
		} else {
			next = now
		}
		return timePtr(next), step + 1

	case days <= 28:
		// Every three days at 11:00.
		return timePtr(atHour(now.AddDate(0, 0, 3), lateMorning, now.Location())), step + 1

	case days <= 90:
		// Weekly at 14:00.
		return timePtr(atHour(now.AddDate(0, 0, 7), afternoonHour, now.Location())), step + 1

	default:
		// Past 90 days the lead goes dormant.
		return nil, step
	}
}

func calledToday(lead repository.Lead, now time.Time) bool {
	return lead.LastCallAttempt != nil && scoring.DaysBetween(*lead.LastCallAttempt, now) == 0
}

// atHour pins a timestamp to the given hour of its calendar day in loc.
func atHour(day time.Time, hour int, loc *time.Location) time.Time {
	year, month, d := day.Date()
	return time.Date(year, month, d, hour, 0, 0, 0, loc)
}

func nextDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
