package license

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no record exists for an
// identity. It is the only Get failure that does not indicate a store
// outage.
var ErrNotFound = errors.New("license not found")

// Store is the document store holding license records, keyed by
// identity. One document per identity; the key is the raw email,
// not case-normalized (revisit if identities must be case-insensitive).
type Store interface {
	// Get returns the record for an identity, or ErrNotFound.
	Get(ctx context.Context, identity string) (*Record, error)

	// Upsert performs the merge upsert provisioning relies on. When no
	// record exists for rec.Identity, rec is written as-is and created
	// is true. When one exists, only the audit fields (productRef and
	// the provider references) are merged; credential, issuedAt, and
	// planType are never overwritten. The returned record is the
	// post-write state, so the caller always sees the credential that
	// won, regardless of delivery order. Implementations must make the
	// absent-to-present transition atomic per key: two concurrent
	// upserts for the same identity converge to a single credential.
	Upsert(ctx context.Context, rec Record) (stored *Record, created bool, err error)
}
