package license

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v82"

	apperrors "github.com/promptrecall/licensing/internal/errors"
	"github.com/promptrecall/licensing/internal/webhook"
)

// Outcome classifies what Provision did with an event.
type Outcome string

const (
	// OutcomeProvisioned means a license record was written or an
	// existing one was confirmed and its audit fields merged.
	OutcomeProvisioned Outcome = "provisioned"
	// OutcomeSkipped means the event was acknowledged without touching
	// the store. Skips are never errors: rejecting them would make the
	// provider redeliver payloads that can never become actionable.
	OutcomeSkipped Outcome = "skipped"
)

// Skip reasons reported in ProvisionResult
const (
	SkipUnhandledEventType = "unhandled event type"
	SkipNoIdentity         = "no customer email in event payload"
	SkipMalformedPayload   = "malformed event payload"
)

// ProvisionResult reports the outcome of processing one verified event.
type ProvisionResult struct {
	Outcome    Outcome
	Identity   string
	Credential string
	// Created is true when this event caused the record to be written
	// for the first time; false means a redelivery merged into an
	// existing record.
	Created    bool
	SkipReason string
}

// Provisioner turns verified purchase events into license records with
// at-most-one-effective-write semantics per identity.
type Provisioner struct {
	store    Store
	logger   *slog.Logger
	validate *validator.Validate
	metrics  *Metrics

	// Injection points for tests.
	now           func() time.Time
	newCredential func() (string, error)
}

// NewProvisioner creates a provisioner over the given store
func NewProvisioner(store Store, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		store:         store,
		logger:        logger.With(slog.String("component", "provisioner")),
		validate:      validator.New(),
		now:           time.Now,
		newCredential: GenerateCredential,
	}
}

// SetMetrics attaches provisioning metrics. Optional; nil is fine.
func (p *Provisioner) SetMetrics(metrics *Metrics) {
	p.metrics = metrics
}

// Provision processes one verified event. It returns a non-nil error
// only when the durable write or read fails; that is the single
// retryable case and callers must answer it with a 5xx so the provider
// redelivers. Everything else, including non-purchase events and
// purchase events without an extractable email, is acknowledged.
func (p *Provisioner) Provision(ctx context.Context, event webhook.Event) (*ProvisionResult, error) {
	if event.Type != webhook.EventTypeCheckoutCompleted {
		p.logger.InfoContext(ctx, "event skipped",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type),
			slog.String("reason", SkipUnhandledEventType))
		p.metrics.recordSkip(ctx, SkipUnhandledEventType)
		return &ProvisionResult{Outcome: OutcomeSkipped, SkipReason: SkipUnhandledEventType}, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Payload, &session); err != nil {
		// The event authenticated but its payload does not parse.
		// Redelivery brings back the same bytes, so acknowledge and
		// flag the anomaly instead of asking for a retry.
		p.logger.WarnContext(ctx, "checkout payload did not parse",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		p.metrics.recordSkip(ctx, SkipMalformedPayload)
		return &ProvisionResult{Outcome: OutcomeSkipped, SkipReason: SkipMalformedPayload}, nil
	}

	identity := p.extractIdentity(&session)
	if identity == "" {
		p.logger.WarnContext(ctx, "purchase event carried no customer email",
			slog.String("event_id", event.ID),
			slog.String("session_id", session.ID))
		p.metrics.recordSkip(ctx, SkipNoIdentity)
		return &ProvisionResult{Outcome: OutcomeSkipped, SkipReason: SkipNoIdentity}, nil
	}

	rec := Record{
		Identity:               identity,
		PlanKind:               PlanKindForMode(string(session.Mode)),
		ProductRef:             productRef(&session),
		ProviderTransactionRef: session.ID,
	}
	if session.Customer != nil {
		rec.ProviderCustomerRef = session.Customer.ID
	}

	// Read before write: generate a credential only for the
	// absent-to-present transition. The store's upsert is still the
	// authority under concurrent duplicate delivery; whatever
	// credential it reports back is the one that won.
	existing, err := p.store.Get(ctx, identity)
	switch {
	case err == nil:
		rec.Credential = existing.Credential
		rec.IssuedAt = existing.IssuedAt
		rec.PlanKind = existing.PlanKind
	case err == ErrNotFound:
		credential, genErr := p.newCredential()
		if genErr != nil {
			return nil, fmt.Errorf("credential generation failed: %w", genErr)
		}
		rec.Credential = credential
		rec.IssuedAt = p.now().UTC()
	default:
		p.metrics.recordStoreFailure(ctx, "get")
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStoreRead, err)
	}

	stored, created, err := p.store.Upsert(ctx, rec)
	if err != nil {
		p.metrics.recordStoreFailure(ctx, "upsert")
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStoreWrite, err)
	}

	p.logger.InfoContext(ctx, "license provisioned",
		slog.String("event_id", event.ID),
		slog.String("identity", identity),
		slog.String("plan_type", string(stored.PlanKind)),
		slog.Bool("created", created))
	p.metrics.recordProvisioned(ctx, created)

	return &ProvisionResult{
		Outcome:    OutcomeProvisioned,
		Identity:   identity,
		Credential: stored.Credential,
		Created:    created,
	}, nil
}

// extractIdentity pulls the customer email from the session, preferring
// the customer_details block over the legacy top-level field. Anything
// that does not look like an email address is treated as absent.
func (p *Provisioner) extractIdentity(session *stripe.CheckoutSession) string {
	email := ""
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		email = session.CustomerDetails.Email
	} else if session.CustomerEmail != "" {
		email = session.CustomerEmail
	}
	if email == "" {
		return ""
	}
	if err := p.validate.Var(email, "required,email"); err != nil {
		p.logger.Warn("discarding malformed customer email", slog.String("email", email))
		return ""
	}
	return email
}

func productRef(session *stripe.CheckoutSession) string {
	if ref := session.Metadata["product"]; ref != "" {
		return ref
	}
	return ProductUnknown
}
