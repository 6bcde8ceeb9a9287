// Package license implements the license data model, the provisioning
// pipeline triggered by verified payment events, and the document store
// the lookup side reads from.
package license

import (
	"time"
)

// PlanKind classifies how a license was purchased.
type PlanKind string

const (
	// PlanOneTime is a single payment purchase.
	PlanOneTime PlanKind = "one-time"
	// PlanRecurring is a subscription purchase.
	PlanRecurring PlanKind = "recurring"
)

// ProductUnknown is the sentinel product reference used when the
// payment event does not identify what was purchased.
const ProductUnknown = "unknown"

// PlanKindForMode maps a checkout transaction mode to a plan kind.
// Stripe reports "payment" for one-time checkouts and "subscription"
// for recurring ones. Unrecognized modes fall back to one-time.
func PlanKindForMode(mode string) PlanKind {
	if mode == "subscription" {
		return PlanRecurring
	}
	return PlanOneTime
}

// Record is one issued license. The document key in the store is the
// raw customer email (Identity); it is duplicated into the document so
// lookups and exports never depend on the key alone. Field names match
// the stored documents.
type Record struct {
	Identity               string    `firestore:"email" json:"email"`
	Credential             string    `firestore:"licenseKey" json:"licenseKey"`
	IssuedAt               time.Time `firestore:"issuedAt" json:"issuedAt"`
	ProductRef             string    `firestore:"productRef" json:"productRef"`
	PlanKind               PlanKind  `firestore:"planType" json:"planType"`
	ProviderCustomerRef    string    `firestore:"stripeCustomerId" json:"stripeCustomerId"`
	ProviderTransactionRef string    `firestore:"stripeSessionId" json:"stripeSessionId"`
}
