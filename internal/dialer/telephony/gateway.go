// Package telephony abstracts the outbound call provider behind a small
// gateway interface so the scheduler loop can be tested without placing
// real calls.
package telephony

import "context"

// CallResult is the provider's answer to a placed call.
type CallResult struct {
	CallID string
	Status string
}

// Gateway places a single outbound call from one number to another.
type Gateway interface {
	PlaceCall(ctx context.Context, from, to string) (CallResult, error)
}
