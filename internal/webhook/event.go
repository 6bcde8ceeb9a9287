// Package webhook authenticates inbound payment-provider events. The
// only trusted input is an event whose signature was verified against
// the shared webhook secret over the exact raw request body.
package webhook

import (
	"encoding/json"
	"time"
)

// EventTypeCheckoutCompleted is the single event type that triggers
// license provisioning. Every other type is acknowledged untouched.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// Event is a payment-provider notification that passed signature
// verification. Payload carries the raw provider object (for checkout
// events, the session) exactly as delivered.
type Event struct {
	ID       string
	Type     string
	Livemode bool
	Created  time.Time
	Payload  json.RawMessage
}
