package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CallHistory is the append-only log of placed call attempts. Rows are never
// mutated or deleted by the scheduler; duration and result arrive later via
// provider callbacks, outside this core.
type CallHistory struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	ToNumber   string
	FromNumber string
	CallSID    string
	Status     string
	CallTime   time.Time
	Duration   int
	Notes      *string
	Tags       []string
	AgentName  *string
	CallResult *string
}

type CreateCallHistoryParams struct {
	LeadID     uuid.UUID
	ToNumber   string
	FromNumber string
	CallSID    string
	Status     string
	CallTime   time.Time
	Notes      *string
}

func (r *Repository) CreateCallHistory(ctx context.Context, params CreateCallHistoryParams) (CallHistory, error) {
	var record CallHistory
	err := r.q.QueryRow(ctx, `
		INSERT INTO call_history (lead_id, to_number, from_number, call_sid, status, call_time, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, lead_id, to_number, from_number, call_sid, status, call_time, duration, notes, tags, agent_name, call_result
	`,
		params.LeadID, params.ToNumber, params.FromNumber, params.CallSID,
		params.Status, params.CallTime, params.Notes,
	).Scan(
		&record.ID, &record.LeadID, &record.ToNumber, &record.FromNumber,
		&record.CallSID, &record.Status, &record.CallTime, &record.Duration,
		&record.Notes, &record.Tags, &record.AgentName, &record.CallResult,
	)
	return record, err
}

// ListCallHistory returns a lead's attempts, newest first.
func (r *Repository) ListCallHistory(ctx context.Context, leadID uuid.UUID) ([]CallHistory, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, lead_id, to_number, from_number, call_sid, status, call_time, duration, notes, tags, agent_name, call_result
		FROM call_history
		WHERE lead_id = $1
		ORDER BY call_time DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]CallHistory, 0)
	for rows.Next() {
		var record CallHistory
		if err := rows.Scan(
			&record.ID, &record.LeadID, &record.ToNumber, &record.FromNumber,
			&record.CallSID, &record.Status, &record.CallTime, &record.Duration,
			&record.Notes, &record.Tags, &record.AgentName, &record.CallResult,
		); err != nil {
			return nil, err
		}
		items = append(items, record)
	}

	return items, rows.Err()
}
