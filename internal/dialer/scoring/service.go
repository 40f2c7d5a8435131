// Package scoring computes call priority scores for leads. Scoring is a pure
// function of a lead snapshot and the current time: no I/O, no side effects.
package scoring

import (
	"time"

	"dialer_backend/internal/dialer/repository"
)

const (
	// baseScore - every lead starts here and factors add or subtract.
	baseScore = 100

	// hotLeadBonus puts manually flagged leads above everything except
	// due follow-ups.
	hotLeadBonus = 2000

	// Follow-up handling: due or overdue appointments outrank hot leads;
	// a follow-up within two days outranks them too; a further-out
	// follow-up suppresses calling entirely.
	followUpDueBonus      = 3000
	followUpSoonBonus     = 2500
	futureFollowUpPenalty = -5000

	// uncalledBonus front-loads never-contacted leads within their
	// recency group.
	uncalledBonus = 1000

	// manyAttemptsPenalty demotes leads called ten or more times without
	// a conversion.
	manyAttemptsPenalty = -300

	// calledTodayPenalty spreads calls across the pool instead of
	// hammering one lead, except during the intentional day-0 burst.
	calledTodayPenalty = -800

	// doNotCallScore is terminal: it overrides every other factor.
	doNotCallScore = -9999
)

// Score maps a lead snapshot and the current time to an integer priority.
// Higher scores are called first. Leads marked do-not-call always score
// doNotCallScore regardless of any other field.
func Score(lead repository.Lead, now time.Time) int {
	score := baseScore

	if lead.IsHot {
		score += hotLeadBonus
	}

	if lead.FollowUpDate != nil {
		switch daysUntil := DaysBetween(now, *lead.FollowUpDate); {
		case daysUntil <= 0:
			score += followUpDueBonus
		case daysUntil <= 2:
			score += followUpSoonBonus
		default:
			score += futureFollowUpPenalty
		}
	}

	days := DaysSinceAdded(lead, now)
	score += recencyBonus(days)
	score += attemptAdjustment(lead.CallCount)

	// Same-day re-attempt throttling. The first-day burst (three calls on
	// day 0) is intentional and exempt.
	if lead.LastCallAttempt != nil && sameDay(*lead.LastCallAttempt, now) {
		if !(days == 0 && lead.CallCount < 3) {
			score += calledTodayPenalty
		}
	}

	switch lead.Importance {
	case repository.ImportanceHigh:
		score += 300
	case repository.ImportanceLow:
		score -= 100
	}

	if lead.LastCallResult != nil {
		switch *lead.LastCallResult {
		case repository.ResultInterested:
			score += 500
		case repository.ResultCallbackRequested:
			score += 400
		case repository.ResultVoicemail:
			score += 100
		}
	}

	if lead.DoNotCall {
		return doNotCallScore
	}

	return score
}

// recencyBonus rewards fresh leads. Day 0 yields 1500, falling 100 per day
// through day 7, then stepping down by age bracket.
func recencyBonus(daysSinceAdded int) int {
	switch {
	case daysSinceAdded <= 7:
		return 1500 - daysSinceAdded*100
	case daysSinceAdded <= 14:
		return 700
	case daysSinceAdded <= 30:
		return 500
	case daysSinceAdded <= 90:
		return 300
	default:
		return 100
	}
}

// attemptAdjustment favors barely contacted leads: 400 after one call, 300
// after two, 200 after three. Four to nine attempts are neutral.
func attemptAdjustment(callCount int) int {
	switch {
	case callCount == 0:
		return uncalledBonus
	case callCount <= 3:
		return 500 - callCount*100
	case callCount >= 10:
		return manyAttemptsPenalty
	default:
		return 0
	}
}

// DaysSinceAdded returns whole calendar days between the lead's added date
// and now. A lead with no recorded added date counts as added today so one
// bad record never halts a ranking pass.
func DaysSinceAdded(lead repository.Lead, now time.Time) int {
	if lead.AddedAt.IsZero() {
		return 0
	}
	return DaysBetween(lead.AddedAt, now)
}

// DaysBetween returns the number of calendar days from a to b, negative
// when b's date precedes a's.
func DaysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}

// dateOnly collapses a timestamp to its civil date. Both operands of a day
// difference go through here, so the fixed UTC anchor cancels out.
func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}
