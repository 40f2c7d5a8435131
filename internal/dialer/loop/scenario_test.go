package loop

import (
	"context"
	"testing"
	"time"

	"dialer_backend/internal/dialer/cadence"
	"dialer_backend/internal/dialer/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type memorySequenceStore struct {
	sequences map[uuid.UUID]repository.Sequence
	inactive  map[uuid.UUID]bool
}

func newMemorySequenceStore() *memorySequenceStore {
	return &memorySequenceStore{
		sequences: make(map[uuid.UUID]repository.Sequence),
		inactive:  make(map[uuid.UUID]bool),
	}
}

func (m *memorySequenceStore) GetSequence(_ context.Context, leadID uuid.UUID) (repository.Sequence, error) {
	seq, ok := m.sequences[leadID]
	if !ok {
		return repository.Sequence{}, repository.ErrSequenceNotFound
	}
	return seq, nil
}

func (m *memorySequenceStore) CreateSequence(_ context.Context, leadID uuid.UUID) (repository.Sequence, error) {
	seq := repository.Sequence{ID: uuid.New(), LeadID: leadID}
	m.sequences[leadID] = seq
	return seq, nil
}

func (m *memorySequenceStore) UpdateSequence(_ context.Context, id uuid.UUID, step int, nextCallTime *time.Time) error {
	for leadID, seq := range m.sequences {
		if seq.ID == id {
			seq.SequenceStep = step
			seq.NextCallTime = nextCallTime
			m.sequences[leadID] = seq
			return nil
		}
	}
	return repository.ErrSequenceNotFound
}

func (m *memorySequenceStore) MarkInactive(_ context.Context, leadID uuid.UUID) error {
	m.inactive[leadID] = true
	return nil
}

// Walks a fresh lead through the day-0 burst the way the scheduler does:
// rank, dial, record the attempt, advance cadence, wait for the next slot.
func TestDayZeroBurstEndToEnd(t *testing.T) {
	ctx := context.Background()
	added := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(added.Add(time.Minute))

	lead := repository.LeadWithSequence{
		Lead: repository.Lead{
			ID:          uuid.New(),
			PhoneNumber: "+12025550134",
			Name:        "Fresh Lead",
			AddedAt:     added,
			Importance:  repository.ImportanceNormal,
			Status:      repository.StatusNew,
		},
	}

	store := newMemorySequenceStore()
	machine := cadence.New(store, clock)

	dial := func(tickNum int) (*time.Time, int) {
		t.Helper()
		now := clock.Now()

		winner, score := PickWinner([]repository.LeadWithSequence{lead}, now)
		if winner == nil {
			t.Fatalf("tick %d: expected the lead to be due", tickNum)
		}
		if tickNum == 1 && score < 1100 {
			t.Fatalf("tick 1: expected fresh-lead score >= 1100, got %d", score)
		}

		// What RecordCallAttempt does to the row.
		lead.CallCount++
		attempt := now
		lead.LastCallAttempt = &attempt
		lead.Status = repository.StatusInProgress

		next, step, err := machine.Advance(ctx, lead.Lead)
		if err != nil {
			t.Fatalf("tick %d: advance: %v", tickNum, err)
		}
		lead.NextCallTime = next
		stepCopy := step
		lead.SequenceStep = &stepCopy
		return next, step
	}

	// Tick 1 at T+1min.
	next, step := dial(1)
	if step != 1 {
		t.Fatalf("expected step 1 after first call, got %d", step)
	}
	wantNext := clock.Now().Add(5 * time.Minute)
	if next == nil || !next.Equal(wantNext) {
		t.Fatalf("expected second attempt at %v, got %v", wantNext, next)
	}

	// The lead is not eligible again until its slot arrives.
	clock.Advance(time.Minute)
	if winner, _ := PickWinner([]repository.LeadWithSequence{lead}, clock.Now()); winner != nil {
		t.Fatal("expected lead to wait for its scheduled slot")
	}

	// Tick 2 at T+6min.
	clock.Advance(4 * time.Minute)
	next, step = dial(2)
	if step != 2 {
		t.Fatalf("expected step 2 after second call, got %d", step)
	}
	wantNext = clock.Now().Add(2 * time.Hour)
	if next == nil || !next.Equal(wantNext) {
		t.Fatalf("expected third attempt at %v, got %v", wantNext, next)
	}

	// Tick 3 after the two-hour gap.
	clock.Advance(2 * time.Hour)
	next, step = dial(3)
	if step != 3 {
		t.Fatalf("expected step 3 after third call, got %d", step)
	}
	wantNext = time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	if next == nil || !next.Equal(wantNext) {
		t.Fatalf("expected fourth attempt at 09:00 next day, got %v", next)
	}

	if lead.CallCount != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", lead.CallCount)
	}
}
