package loop

import (
	"bytes"
	"time"

	"dialer_backend/internal/dialer/repository"
	"dialer_backend/internal/dialer/scoring"
)

// Eligible reports whether a lead may be dialed this tick. Leads with a
// future follow-up date or a future scheduled call time wait for their slot.
// do_not_call and terminal statuses are excluded here outright, not merely
// scored low, so a poisoned pool can never produce a forbidden winner.
func Eligible(lead repository.LeadWithSequence, now time.Time) bool {
	if lead.DoNotCall {
		return false
	}
	if lead.Status == repository.StatusInactive || lead.Status == repository.StatusDoNotCall {
		return false
	}
	if lead.FollowUpDate != nil && scoring.DaysBetween(now, *lead.FollowUpDate) > 0 {
		return false
	}
	if lead.NextCallTime != nil && lead.NextCallTime.After(now) {
		return false
	}
	return true
}

// PickWinner ranks the eligible subset by score and returns the single lead
// to dial, or nil when nothing is due. Ties go to the lowest lead id so a
// re-ranking with the same inputs is deterministic.
func PickWinner(leads []repository.LeadWithSequence, now time.Time) (*repository.LeadWithSequence, int) {
	var winner *repository.LeadWithSequence
	best := 0

	for i := range leads {
		if !Eligible(leads[i], now) {
			continue
		}
		score := scoring.Score(leads[i].Lead, now)
		switch {
		case winner == nil, score > best:
			winner = &leads[i]
			best = score
		case score == best:
			if bytes.Compare(leads[i].ID[:], winner.ID[:]) < 0 {
				winner = &leads[i]
			}
		}
	}

	return winner, best
}

// inWindow reports whether now falls inside the daily operating window
// [startHour, endHour) in now's location.
func inWindow(now time.Time, startHour, endHour int) bool {
	h := now.Hour()
	return h >= startHour && h < endHour
}
