package http

import (
	"context"

	"github.com/promptrecall/licensing/internal/license"
	"github.com/promptrecall/licensing/internal/webhook"
)

// ProvisioningService is the slice of the provisioner the webhook
// handler needs. Defined here so tests can substitute a mock.
type ProvisioningService interface {
	Provision(ctx context.Context, event webhook.Event) (*license.ProvisionResult, error)
}
