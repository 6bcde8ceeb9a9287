// Package services holds the request-facing business logic between the
// HTTP transport and the license domain.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/promptrecall/licensing/internal/errors"
	"github.com/promptrecall/licensing/internal/license"
)

// LicenseService answers "does this identity hold a valid license"
// against the same store provisioning writes to, so a record is
// visible for lookup as soon as the provisioning write commits.
type LicenseService interface {
	Lookup(ctx context.Context, email string) (*LookupResponse, error)
}

// LookupResponse is the verify endpoint's response body. Field names
// match what the browser extension consumes.
type LookupResponse struct {
	Valid    bool   `json:"valid"`
	Message  string `json:"message"`
	Key      string `json:"key,omitempty"`
	PlanType string `json:"planType,omitempty"`
}

type licenseService struct {
	store   license.Store
	logger  *slog.Logger
	metrics *license.Metrics
}

// NewLicenseService creates the lookup service over the given store
func NewLicenseService(store license.Store, logger *slog.Logger) LicenseService {
	return &licenseService{
		store:  store,
		logger: logger.With(slog.String("service", "license")),
	}
}

// NewLicenseServiceWithMetrics additionally wires lookup metrics
func NewLicenseServiceWithMetrics(store license.Store, logger *slog.Logger, metrics *license.Metrics) LicenseService {
	return &licenseService{
		store:   store,
		logger:  logger.With(slog.String("service", "license")),
		metrics: metrics,
	}
}

// Lookup implements LicenseService. A missing record is a negative
// answer, not an error; only a store outage returns one.
func (s *licenseService) Lookup(ctx context.Context, email string) (*LookupResponse, error) {
	rec, err := s.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			s.logger.InfoContext(ctx, "license not found", slog.String("email", email))
			s.metrics.RecordLookup(ctx, false)
			return &LookupResponse{Valid: false, Message: "License not found."}, nil
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStoreRead, err)
	}

	s.logger.InfoContext(ctx, "license found",
		slog.String("email", email),
		slog.String("plan_type", string(rec.PlanKind)))
	s.metrics.RecordLookup(ctx, true)

	return &LookupResponse{
		Valid:    true,
		Message:  "License valid.",
		Key:      rec.Credential,
		PlanType: string(rec.PlanKind),
	}, nil
}
