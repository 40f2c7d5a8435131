package cadence

import (
	"context"
	"testing"
	"time"

	"dialer_backend/internal/dialer/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type fakeSequenceStore struct {
	sequences     map[uuid.UUID]repository.Sequence
	inactiveLeads map[uuid.UUID]bool
	creates       int
}

func newFakeSequenceStore() *fakeSequenceStore {
	return &fakeSequenceStore{
		sequences:     make(map[uuid.UUID]repository.Sequence),
		inactiveLeads: make(map[uuid.UUID]bool),
	}
}

func (f *fakeSequenceStore) GetSequence(_ context.Context, leadID uuid.UUID) (repository.Sequence, error) {
	seq, ok := f.sequences[leadID]
	if !ok {
		return repository.Sequence{}, repository.ErrSequenceNotFound
	}
	return seq, nil
}

func (f *fakeSequenceStore) CreateSequence(_ context.Context, leadID uuid.UUID) (repository.Sequence, error) {
	f.creates++
	seq := repository.Sequence{ID: uuid.New(), LeadID: leadID}
	f.sequences[leadID] = seq
	return seq, nil
}

func (f *fakeSequenceStore) UpdateSequence(_ context.Context, id uuid.UUID, step int, nextCallTime *time.Time) error {
	for leadID, seq := range f.sequences {
		if seq.ID == id {
			seq.SequenceStep = step
			seq.NextCallTime = nextCallTime
			f.sequences[leadID] = seq
			return nil
		}
	}
	return repository.ErrSequenceNotFound
}

func (f *fakeSequenceStore) MarkInactive(_ context.Context, leadID uuid.UUID) error {
	f.inactiveLeads[leadID] = true
	return nil
}

// 11:00 on a Tuesday, well inside a calling window.
var cadenceNow = time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)

func leadCalledNow(daysOld, callCount int) repository.Lead {
	now := cadenceNow
	return repository.Lead{
		ID:              uuid.New(),
		PhoneNumber:     "+15550001111",
		Name:            "Test Lead",
		AddedAt:         cadenceNow.AddDate(0, 0, -daysOld),
		CallCount:       callCount,
		LastCallAttempt: &now,
		Importance:      repository.ImportanceNormal,
		Status:          repository.StatusInProgress,
	}
}

func advance(t *testing.T, store *fakeSequenceStore, lead repository.Lead, now time.Time) (*time.Time, int) {
	t.Helper()
	svc := New(store, clockwork.NewFakeClockAt(now))
	next, step, err := svc.Advance(context.Background(), lead)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	return next, step
}

func TestAdvance_CreatesSequenceLazily(t *testing.T) {
	store := newFakeSequenceStore()
	lead := leadCalledNow(0, 1)

	advance(t, store, lead, cadenceNow)

	if store.creates != 1 {
		t.Fatalf("expected 1 lazy sequence creation, got %d", store.creates)
	}

	advance(t, store, lead, cadenceNow)
	if store.creates != 1 {
		t.Fatalf("expected no second creation, got %d", store.creates)
	}
}

func TestAdvance_DayZeroBurst(t *testing.T) {
	tests := []struct {
		name      string
		callCount int
		wantNext  time.Time
		wantStep  int
	}{
		{"after first call", 1, cadenceNow.Add(5 * time.Minute), 1},
		{"after second call", 2, cadenceNow.Add(2 * time.Hour), 2},
		{"after third call", 3, time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeSequenceStore()
			next, step := advance(t, store, leadCalledNow(0, tt.callCount), cadenceNow)
			if next == nil || !next.Equal(tt.wantNext) {
				t.Fatalf("expected next %v, got %v", tt.wantNext, next)
			}
			if step != tt.wantStep {
				t.Fatalf("expected step %d, got %d", tt.wantStep, step)
			}
		})
	}
}

func TestAdvance_FirstWeekThreeHourGap(t *testing.T) {
	store := newFakeSequenceStore()
	lead := leadCalledNow(3, 4)

	next, _ := advance(t, store, lead, cadenceNow)

	want := cadenceNow.Add(3 * time.Hour)
	if next == nil || !next.Equal(want) {
		t.Fatalf("expected next %v, got %v", want, next)
	}
}

func TestAdvance_FirstWeekEveningRollsToNextMorning(t *testing.T) {
	evening := time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)
	lead := leadCalledNow(3, 4)
	lead.LastCallAttempt = &evening

	next, _ := advance(t, newFakeSequenceStore(), lead, evening)

	// 15:30 + 3h lands past 17:00, so the slot rolls to 09:00 next day.
	want := time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC)
	if next == nil || !next.Equal(want) {
		t.Fatalf("expected next %v, got %v", want, next)
	}
}

func TestAdvance_SecondWeekOncePerDay(t *testing.T) {
	store := newFakeSequenceStore()
	lead := leadCalledNow(10, 8)

	next, _ := advance(t, store, lead, cadenceNow)

	want := time.Date(2026, time.March, 11, 10, 0, 0, 0, time.UTC)
	if next == nil || !next.Equal(want) {
		t.Fatalf("expected next %v, got %v", want, next)
	}
}

func TestAdvance_ThroughDay28EveryThreeDays(t *testing.T) {
	next, _ := advance(t, newFakeSequenceStore(), leadCalledNow(20, 12), cadenceNow)

	want := time.Date(2026, time.March, 13, 11, 0, 0, 0, time.UTC)
	if next == nil || !next.Equal(want) {
		t.Fatalf("expected next %v, got %v", want, next)
	}
}

func TestAdvance_ThroughDay90Weekly(t *testing.T) {
	next, _ := advance(t, newFakeSequenceStore(), leadCalledNow(60, 15), cadenceNow)

	want := time.Date(2026, time.March, 17, 14, 0, 0, 0, time.UTC)
	if next == nil || !next.Equal(want) {
		t.Fatalf("expected next %v, got %v", want, next)
	}
}

func TestAdvance_PastDay90GoesDormant(t *testing.T) {
	store := newFakeSequenceStore()
	lead := leadCalledNow(120, 20)
	store.sequences[lead.ID] = repository.Sequence{ID: uuid.New(), LeadID: lead.ID, SequenceStep: 9}

	next, step := advance(t, store, lead, cadenceNow)

	if next != nil {
		t.Fatalf("expected nil next call time, got %v", *next)
	}
	if step != 9 {
		t.Fatalf("expected step unchanged at 9, got %d", step)
	}
	if !store.inactiveLeads[lead.ID] {
		t.Fatal("expected lead marked inactive")
	}
}

func TestAdvance_FutureFollowUpOverridesSequence(t *testing.T) {
	lead := leadCalledNow(3, 4)
	followUp := cadenceNow.AddDate(0, 0, 5)
	lead.FollowUpDate = &followUp

	next, step := advance(t, newFakeSequenceStore(), lead, cadenceNow)

	want := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	if next == nil || !next.Equal(want) {
		t.Fatalf("expected next %v, got %v", want, next)
	}
	if step != 0 {
		t.Fatalf("expected step unchanged at 0, got %d", step)
	}
}

func TestAdvance_DeterministicForFixedClock(t *testing.T) {
	lead := leadCalledNow(3, 4)

	first, firstStep := advance(t, newFakeSequenceStore(), lead, cadenceNow)
	second, secondStep := advance(t, newFakeSequenceStore(), lead, cadenceNow)

	if !first.Equal(*second) || firstStep != secondStep {
		t.Fatalf("expected identical plans, got (%v, %d) and (%v, %d)",
			first, firstStep, second, secondStep)
	}
}

func TestAdvance_PersistsDecision(t *testing.T) {
	store := newFakeSequenceStore()
	lead := leadCalledNow(0, 1)

	next, step := advance(t, store, lead, cadenceNow)

	saved := store.sequences[lead.ID]
	if saved.SequenceStep != step {
		t.Fatalf("expected persisted step %d, got %d", step, saved.SequenceStep)
	}
	if saved.NextCallTime == nil || !saved.NextCallTime.Equal(*next) {
		t.Fatalf("expected persisted next %v, got %v", next, saved.NextCallTime)
	}
}
