// Package loop runs the outbound scheduler: one perpetual background task
// that, on each tick inside the operating window, ranks due leads and
// dials at most one of them. The tick interval is the system's rate
// limiter; a tick never places more than one call.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer_backend/internal/dialer/cadence"
	"dialer_backend/internal/dialer/leaderlock"
	"dialer_backend/internal/dialer/repository"
	"dialer_backend/internal/dialer/rotation"
	"dialer_backend/internal/dialer/telephony"
	"dialer_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const historyStatusFailed = "Failed"

// TickStore is the repository surface one tick needs. A transaction-bound
// *repository.Repository satisfies it.
type TickStore interface {
	ListCallable(ctx context.Context) ([]repository.LeadWithSequence, error)
	TryLockLead(ctx context.Context, leadID uuid.UUID) (bool, error)
	RecordCallAttempt(ctx context.Context, leadID uuid.UUID, at time.Time) error
	repository.SequenceStore
	repository.NumberUsageStore
	repository.CallLogger
}

// Store runs a tick body inside a single transaction, committing only when
// fn returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(tx TickStore) error) error
}

type repoStore struct {
	repo *repository.Repository
}

// NewStore adapts the pgx-backed repository to the loop's Store port.
func NewStore(repo *repository.Repository) Store {
	return repoStore{repo: repo}
}

func (s repoStore) InTx(ctx context.Context, fn func(tx TickStore) error) error {
	return s.repo.InTx(ctx, func(tx *repository.Repository) error {
		return fn(tx)
	})
}

// Runner owns the scheduler loop.
type Runner struct {
	store       Store
	gateway     telephony.Gateway
	numbers     []string
	clock       clockwork.Clock
	log         *logger.Logger
	interval    time.Duration
	windowStart int
	windowEnd   int
	lock        *leaderlock.Lock
}

// Options configures a Runner beyond its required collaborators.
type Options struct {
	Interval        time.Duration
	WindowStartHour int
	WindowEndHour   int
	// Lock, when set, restricts ticking to the instance holding the
	// leader lock. Nil means single-instance deployment.
	Lock *leaderlock.Lock
}

func New(store Store, gateway telephony.Gateway, numbers []string, clock clockwork.Clock, log *logger.Logger, opts Options) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.WindowEndHour <= opts.WindowStartHour {
		opts.WindowStartHour = 8
		opts.WindowEndHour = 20
	}

	return &Runner{
		store:       store,
		gateway:     gateway,
		numbers:     numbers,
		clock:       clock,
		log:         log,
		interval:    opts.Interval,
		windowStart: opts.WindowStartHour,
		windowEnd:   opts.WindowEndHour,
		lock:        opts.Lock,
	}
}

// Run ticks until ctx is cancelled. A panicking tick is logged and the loop
// keeps going; only context cancellation stops it.
func (r *Runner) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("scheduler loop started",
		"interval", r.interval,
		"window_start_hour", r.windowStart,
		"window_end_hour", r.windowEnd,
		"pool_size", len(r.numbers))

	for {
		select {
		case <-ctx.Done():
			if r.lock != nil {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := r.lock.Release(releaseCtx); err != nil {
					r.log.Warn("leader lock release failed", "error", err)
				}
				cancel()
			}
			r.log.Info("scheduler loop stopped")
			return
		case <-ticker.Chan():
			r.safeTick(ctx)
		}
	}
}

// safeTick shields the loop from a panicking tick.
func (r *Runner) safeTick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("tick panicked", "panic", rec)
		}
	}()

	if err := r.tick(ctx); err != nil {
		r.log.Warn("tick failed", "error", err)
	}
}

// tick executes one scheduling pass. The whole pass runs in a single
// transaction holding an advisory lock on the winner, so two concurrent
// ticks can never both dial the same lead, and call_count can never
// advance without its matching history row.
func (r *Runner) tick(ctx context.Context) error {
	now := r.clock.Now()
	if !inWindow(now, r.windowStart, r.windowEnd) {
		return nil
	}

	if r.lock != nil {
		if err := r.lock.Acquire(ctx); err != nil {
			if errors.Is(err, leaderlock.ErrNotAcquired) {
				return nil
			}
			return fmt.Errorf("acquire leader lock: %w", err)
		}
	}

	return r.store.InTx(ctx, func(tx TickStore) error {
		leads, err := tx.ListCallable(ctx)
		if err != nil {
			r.log.DatabaseError("list callable leads", err)
			return fmt.Errorf("list callable leads: %w", err)
		}

		winner, score := PickWinner(leads, now)
		if winner == nil {
			return nil
		}

		locked, err := tx.TryLockLead(ctx, winner.ID)
		if err != nil {
			r.log.DatabaseError("lock lead", err)
			return fmt.Errorf("lock lead %s: %w", winner.ID, err)
		}
		if !locked {
			// Another instance is mid-call on this lead.
			return nil
		}

		selector := rotation.New(tx, r.numbers, r.clock)
		from, err := selector.Select(ctx, winner.Lead)
		if err != nil {
			if errors.Is(err, rotation.ErrNoNumbers) {
				r.log.Warn("no outbound numbers available, skipping tick")
				return nil
			}
			r.log.DatabaseError("select outbound number", err)
			return fmt.Errorf("select number for lead %s: %w", winner.ID, err)
		}

		result, callErr := r.gateway.PlaceCall(ctx, from, winner.PhoneNumber)

		history := repository.CreateCallHistoryParams{
			LeadID:     winner.ID,
			ToNumber:   winner.PhoneNumber,
			FromNumber: from,
			CallSID:    result.CallID,
			Status:     result.Status,
			CallTime:   now,
		}
		if callErr != nil {
			history.Status = historyStatusFailed
			note := callErr.Error()
			history.Notes = &note
			r.log.GatewayError(from, winner.PhoneNumber, callErr)
		}
		if _, err := tx.CreateCallHistory(ctx, history); err != nil {
			r.log.DatabaseError("create call history", err)
			return fmt.Errorf("record call history for lead %s: %w", winner.ID, err)
		}

		if err := tx.RecordCallAttempt(ctx, winner.ID, now); err != nil {
			r.log.DatabaseError("record call attempt", err)
			return fmt.Errorf("record call attempt for lead %s: %w", winner.ID, err)
		}

		// Cadence plans from the post-attempt state.
		lead := winner.Lead
		lead.CallCount++
		lead.LastCallAttempt = &now

		machine := cadence.New(tx, r.clock)
		next, step, err := machine.Advance(ctx, lead)
		if err != nil {
			r.log.DatabaseError("advance cadence", err)
			return fmt.Errorf("advance cadence for lead %s: %w", winner.ID, err)
		}

		if callErr == nil {
			r.log.CallPlaced(winner.ID.String(), from, winner.PhoneNumber, result.CallID, score)
		}
		r.log.Info("lead scheduled",
			"lead_id", winner.ID,
			"sequence_step", step,
			"next_call_time", next)
		return nil
	})
}
