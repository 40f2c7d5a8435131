// Package rotation selects which outbound number calls a lead, varying the
// caller ID so repeated attempts don't all present the same number. It is
// the sole writer of used_numbers rows.
package rotation

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"

	"dialer_backend/internal/dialer/repository"
	"dialer_backend/internal/dialer/scoring"

	"github.com/jonboulle/clockwork"
)

// ErrNoNumbers is returned when the configured pool is empty.
var ErrNoNumbers = errors.New("no outbound numbers configured")

// Selector picks an outbound number for a lead from a fixed pool.
type Selector struct {
	store repository.NumberUsageStore
	pool  []string
	clock clockwork.Clock
}

// New creates a selector over the given pool. The store may be
// transaction-scoped; every successful selection records its assignment
// through it before returning.
func New(store repository.NumberUsageStore, pool []string, clock clockwork.Clock) *Selector {
	return &Selector{store: store, pool: pool, clock: clock}
}

// Select chooses a number for the lead and records the assignment.
//
// During a lead's day-0 burst (fewer than three prior calls) each attempt
// gets a number not yet used for that lead today. In steady state only the
// single most recently used number is excluded. Either way, an exhausted
// candidate set falls back to the full pool, and the final choice among
// candidates is uniform random.
func (s *Selector) Select(ctx context.Context, lead repository.Lead) (string, error) {
	if len(s.pool) == 0 {
		return "", ErrNoNumbers
	}

	now := s.clock.Now()

	var candidates []string
	if scoring.DaysSinceAdded(lead, now) == 0 && lead.CallCount < 3 {
		usedToday, err := s.store.NumbersUsedOn(ctx, lead.ID, now)
		if err != nil {
			return "", err
		}
		candidates = excluding(s.pool, usedToday)
	} else {
		last, err := s.store.LastUsedNumber(ctx, lead.ID)
		if err != nil {
			return "", err
		}
		candidates = excluding(s.pool, []string{last})
	}

	if len(candidates) == 0 {
		candidates = s.pool
	}

	chosen := candidates[rand.IntN(len(candidates))]

	if err := s.store.RecordUsedNumber(ctx, lead.ID, chosen, now); err != nil {
		return "", err
	}

	return chosen, nil
}

func excluding(pool, exclude []string) []string {
	candidates := make([]string, 0, len(pool))
	for _, number := range pool {
		if !slices.Contains(exclude, number) {
			candidates = append(candidates, number)
		}
	}
	return candidates
}
