package webhook

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// Verification failures. Handlers treat every one of them as terminal
// for the request: redelivering a payload whose signature will never
// validate only produces another rejection.
var (
	// ErrNoSecret means the shared secret was empty. This is a
	// deployment defect, not a client error.
	ErrNoSecret = errors.New("webhook secret not configured")
	// ErrNoSignature means the signature header was missing or empty.
	ErrNoSignature = errors.New("missing signature header")
	// ErrVerification wraps a failed signature check.
	ErrVerification = errors.New("signature verification failed")
)

// Verifier authenticates a raw webhook delivery. payload must be the
// exact unparsed bytes as received; the signature covers the raw body,
// so any re-encoding breaks verification.
type Verifier interface {
	Verify(payload []byte, sigHeader, secret string) (Event, error)
}

// StripeVerifier verifies deliveries using Stripe's HMAC scheme, which
// ties the timestamp, payload, and shared secret together and enforces
// a freshness tolerance.
type StripeVerifier struct {
	logger *slog.Logger
}

// NewStripeVerifier creates the production verifier
func NewStripeVerifier(logger *slog.Logger) *StripeVerifier {
	return &StripeVerifier{
		logger: logger.With(slog.String("component", "stripe_verifier")),
	}
}

// Verify implements Verifier
func (v *StripeVerifier) Verify(payload []byte, sigHeader, secret string) (Event, error) {
	if secret == "" {
		return Event{}, ErrNoSecret
	}
	if sigHeader == "" {
		return Event{}, ErrNoSignature
	}

	// Tolerate API version drift between Stripe and the pinned SDK;
	// the signature check itself is unaffected.
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	return Event{
		ID:       stripeEvent.ID,
		Type:     string(stripeEvent.Type),
		Livemode: stripeEvent.Livemode,
		Created:  time.Unix(stripeEvent.Created, 0).UTC(),
		Payload:  stripeEvent.Data.Raw,
	}, nil
}
