package loop

import (
	"testing"
	"time"

	"dialer_backend/internal/dialer/repository"

	"github.com/google/uuid"
)

var loopNow = time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)

func callableLead() repository.LeadWithSequence {
	return repository.LeadWithSequence{
		Lead: repository.Lead{
			ID:          uuid.New(),
			PhoneNumber: "+15550001111",
			Name:        "Test Lead",
			AddedAt:     loopNow,
			Importance:  repository.ImportanceNormal,
			Status:      repository.StatusNew,
		},
	}
}

func TestEligible(t *testing.T) {
	pastCall := loopNow.Add(-time.Hour)
	futureCall := loopNow.Add(time.Hour)
	todayFollowUp := loopNow
	futureFollowUp := loopNow.AddDate(0, 0, 3)

	tests := []struct {
		name   string
		mutate func(*repository.LeadWithSequence)
		want   bool
	}{
		{"fresh lead with no sequence", func(l *repository.LeadWithSequence) {}, true},
		{"do_not_call flag", func(l *repository.LeadWithSequence) { l.DoNotCall = true }, false},
		{"inactive status", func(l *repository.LeadWithSequence) { l.Status = repository.StatusInactive }, false},
		{"do_not_call status", func(l *repository.LeadWithSequence) { l.Status = repository.StatusDoNotCall }, false},
		{"future follow-up", func(l *repository.LeadWithSequence) { l.FollowUpDate = &futureFollowUp }, false},
		{"follow-up due today", func(l *repository.LeadWithSequence) { l.FollowUpDate = &todayFollowUp }, true},
		{"future next call time", func(l *repository.LeadWithSequence) { l.NextCallTime = &futureCall }, false},
		{"past next call time", func(l *repository.LeadWithSequence) { l.NextCallTime = &pastCall }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := callableLead()
			tt.mutate(&lead)
			if got := Eligible(lead, loopNow); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPickWinner_HighestScoreWins(t *testing.T) {
	cold := callableLead()
	cold.AddedAt = loopNow.AddDate(0, 0, -30)
	cold.CallCount = 5

	hot := callableLead()
	hot.IsHot = true

	winner, score := PickWinner([]repository.LeadWithSequence{cold, hot}, loopNow)
	if winner == nil {
		t.Fatal("expected a winner")
	}
	if winner.ID != hot.ID {
		t.Fatalf("expected hot lead %s to win, got %s", hot.ID, winner.ID)
	}
	if score <= 0 {
		t.Fatalf("expected positive winning score, got %d", score)
	}
}

func TestPickWinner_DoNotCallNeverWins(t *testing.T) {
	// The forbidden lead is the only one in the pool; it must be filtered
	// out, not merely outscored.
	lead := callableLead()
	lead.DoNotCall = true
	lead.IsHot = true

	winner, _ := PickWinner([]repository.LeadWithSequence{lead}, loopNow)
	if winner != nil {
		t.Fatalf("expected no winner, got %s", winner.ID)
	}
}

func TestPickWinner_EmptyPool(t *testing.T) {
	winner, _ := PickWinner(nil, loopNow)
	if winner != nil {
		t.Fatalf("expected no winner, got %s", winner.ID)
	}
}

func TestPickWinner_TieBreaksOnLowestID(t *testing.T) {
	a := callableLead()
	a.ID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	b := callableLead()
	b.ID = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")

	winner, _ := PickWinner([]repository.LeadWithSequence{b, a}, loopNow)
	if winner == nil || winner.ID != a.ID {
		t.Fatalf("expected lowest id %s to win the tie, got %v", a.ID, winner)
	}

	// Same result regardless of input order.
	winner, _ = PickWinner([]repository.LeadWithSequence{a, b}, loopNow)
	if winner == nil || winner.ID != a.ID {
		t.Fatalf("expected lowest id %s to win the tie, got %v", a.ID, winner)
	}
}

func TestInWindow(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{7, false},
		{8, true},
		{12, true},
		{19, true},
		{20, false},
		{23, false},
	}

	for _, tt := range tests {
		now := time.Date(2026, time.March, 10, tt.hour, 30, 0, 0, time.UTC)
		if got := inWindow(now, 8, 20); got != tt.want {
			t.Fatalf("hour %d: expected %v, got %v", tt.hour, tt.want, got)
		}
	}
}
