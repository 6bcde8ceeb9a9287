package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/promptrecall/licensing/internal/infrastructure"
	"github.com/promptrecall/licensing/internal/services"
)

// LicenseHandler serves the public license verification endpoint
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes returns a chi router for the verify endpoint. Non-GET methods
// get chi's 405; OPTIONS preflights are answered by the CORS middleware
// mounted above this router.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(10 * time.Second))
	r.Get("/", h.Verify)
	return r
}

// Verify handles GET /verify?email=...
func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("license-handler")
	start := time.Now()

	ctx, span := tracer.Start(ctx, "license_handler.verify",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/verify"),
		),
	)
	defer span.End()

	email := r.URL.Query().Get("email")
	if email == "" {
		span.SetAttributes(attribute.String("error.type", "missing_email"))

		h.logger.WarnContext(ctx, "verify request without email parameter",
			slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
			slog.String("remote_addr", r.RemoteAddr))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &services.LookupResponse{
			Valid:   false,
			Message: "Email query parameter is required.",
		})
		return
	}

	h.logger.InfoContext(ctx, "checking license",
		slog.String("email", email),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	response, err := h.service.Lookup(ctx, email)
	latency := time.Since(start)

	span.SetAttributes(
		attribute.Int64("request.latency_ms", latency.Milliseconds()),
		attribute.Bool("request.success", err == nil),
	)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "store_error"))

		h.logger.ErrorContext(ctx, "license lookup failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
			slog.Duration("latency", latency))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, &services.LookupResponse{
			Valid:   false,
			Message: "Internal server error.",
		})
		return
	}

	span.SetAttributes(attribute.Bool("license.valid", response.Valid))

	h.logger.InfoContext(ctx, "license lookup completed",
		slog.String("email", email),
		slog.Bool("valid", response.Valid),
		slog.Duration("latency", latency))

	render.JSON(w, r, response)
}
