package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/promptrecall/licensing/internal/errors"
	"github.com/promptrecall/licensing/internal/infrastructure"
	"github.com/promptrecall/licensing/internal/license"
	"github.com/promptrecall/licensing/internal/webhook"
)

// WebhookHandler receives payment-provider event deliveries. Signature
// verification is the authentication mechanism for this endpoint; the
// response status is the retry signal back to the provider, so the
// mapping matters: 2xx acknowledges (including skips), 400 rejects
// payloads that can never verify, and 500 is reserved for store
// failures where redelivery is wanted.
type WebhookHandler struct {
	verifier     webhook.Verifier
	provisioner  ProvisioningService
	secret       string
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(verifier webhook.Verifier, provisioner ProvisioningService, secret string, maxBodyBytes int64, logger *slog.Logger) *WebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &WebhookHandler{
		verifier:     verifier,
		provisioner:  provisioner,
		secret:       secret,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With(slog.String("handler", "webhook")),
	}
}

// Routes returns a chi router for the webhook endpoint. Non-POST
// methods get chi's 405.
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))
	r.Post("/", h.HandleStripeEvent)
	return r
}

// HandleStripeEvent handles POST /webhook/stripe
func (h *WebhookHandler) HandleStripeEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("webhook-handler")

	ctx, span := tracer.Start(ctx, "webhook_handler.stripe_event",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/webhook/stripe"),
		),
	)
	defer span.End()

	if h.secret == "" {
		// Deployment defect: without the secret nothing can ever be
		// verified. Alert loudly and fail the delivery.
		span.SetAttributes(attribute.String("error.type", "secret_unconfigured"))
		h.logger.ErrorContext(ctx, "webhook secret is not configured",
			slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))
		render.Render(w, r, apperrors.ErrSecretNotConfigured)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "body_read"))
		h.logger.WarnContext(ctx, "failed to read webhook body",
			slog.String("error", err.Error()))
		render.Render(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	// The raw bytes are what the signature covers; nothing may
	// re-serialize the payload before verification.
	event, err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		if errors.Is(err, webhook.ErrNoSecret) {
			render.Render(w, r, apperrors.ErrSecretNotConfigured)
			return
		}

		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "signature_verification"))

		h.logger.WarnContext(ctx, "webhook signature verification failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

		render.Render(w, r, apperrors.SignatureErrorWithDetail(err))
		return
	}

	span.SetAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("event.type", event.Type),
		attribute.Bool("event.livemode", event.Livemode),
	)

	// Audit line: one record per verified delivery.
	h.logger.InfoContext(ctx, "webhook event verified",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
		slog.Bool("livemode", event.Livemode))

	result, err := h.provisioner.Provision(ctx, event)
	if err != nil {
		// Store failure is the one retryable category: a 5xx tells the
		// provider to redeliver once the store recovers.
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "store_error"))

		h.logger.ErrorContext(ctx, "license provisioning failed",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
			slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

		render.Render(w, r, apperrors.ErrStoreUnavailable)
		return
	}

	switch result.Outcome {
	case license.OutcomeSkipped:
		span.SetAttributes(attribute.String("provision.outcome", "skipped"),
			attribute.String("provision.skip_reason", result.SkipReason))
		render.PlainText(w, r, "acknowledged")
	default:
		span.SetAttributes(attribute.String("provision.outcome", "provisioned"),
			attribute.Bool("provision.created", result.Created))
		render.PlainText(w, r, "Received")
	}
}
