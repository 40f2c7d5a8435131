package telephony

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer_backend/platform/apperr"
	"dialer_backend/platform/config"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
)

// TwilioGateway places calls through the Twilio REST API. Outgoing requests
// share a rate limiter so a backlog of due leads cannot burst past the
// account's calls-per-minute allowance.
type TwilioGateway struct {
	client            *twilio.RestClient
	limiter           *rate.Limiter
	twimlURL          string
	statusCallbackURL string
}

// NewTwilio builds a gateway from config. The HTTP client timeout bounds
// each API request independently of the caller's context.
func NewTwilio(cfg config.TwilioConfig) *TwilioGateway {
	c := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.GetTwilioAccountSID(),
		Password: cfg.GetTwilioAuthToken(),
	})
	c.SetTimeout(cfg.GetGatewayTimeout())

	callsPerMinute := cfg.GetCallsPerMinute()
	if callsPerMinute <= 0 {
		callsPerMinute = 1
	}
	perCall := rate.Every(time.Minute / time.Duration(callsPerMinute))

	return &TwilioGateway{
		client:            c,
		limiter:           rate.NewLimiter(perCall, 1),
		twimlURL:          cfg.GetTwimlURL(),
		statusCallbackURL: cfg.GetStatusCallbackURL(),
	}
}

// PlaceCall dials the lead and returns the provider call SID and initial
// status. Provider-side rejections come back as gateway errors; the caller
// decides whether they abort the surrounding work.
func (g *TwilioGateway) PlaceCall(ctx context.Context, from, to string) (CallResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return CallResult{}, apperr.Gateway("rate limit wait interrupted", err)
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetUrl(g.twimlURL)
	if g.statusCallbackURL != "" {
		params.SetStatusCallback(g.statusCallbackURL)
	}

	resp, err := g.client.Api.CreateCall(params)
	if err != nil {
		var restErr *client.TwilioRestError
		if errors.As(err, &restErr) {
			return CallResult{}, apperr.Gateway(
				fmt.Sprintf("twilio rejected call to %s (code %d)", to, restErr.Code), err)
		}
		return CallResult{}, apperr.Gateway(fmt.Sprintf("twilio call to %s failed", to), err)
	}

	result := CallResult{}
	if resp.Sid != nil {
		result.CallID = *resp.Sid
	}
	if resp.Status != nil {
		result.Status = *resp.Status
	}
	return result, nil
}
