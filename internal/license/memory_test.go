package license

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "missing@b.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpsertCreate(t *testing.T) {
	store := NewMemoryStore()
	rec := Record{
		Identity:   "a@b.com",
		Credential: "PR-1-abc",
		IssuedAt:   time.Now().UTC(),
		ProductRef: "promptrecall-pro",
		PlanKind:   PlanOneTime,
	}

	stored, created, err := store.Upsert(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, rec, *stored)
}

func TestMemoryStoreUpsertPreservesCredential(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	issued := time.Now().UTC()

	_, _, err := store.Upsert(ctx, Record{
		Identity:               "a@b.com",
		Credential:             "PR-1-first",
		IssuedAt:               issued,
		PlanKind:               PlanRecurring,
		ProviderTransactionRef: "cs_first",
	})
	require.NoError(t, err)

	stored, created, err := store.Upsert(ctx, Record{
		Identity:               "a@b.com",
		Credential:             "PR-2-second",
		IssuedAt:               issued.Add(time.Hour),
		PlanKind:               PlanOneTime,
		ProviderTransactionRef: "cs_second",
	})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, "PR-1-first", stored.Credential)
	assert.Equal(t, issued, stored.IssuedAt)
	assert.Equal(t, PlanRecurring, stored.PlanKind)
	assert.Equal(t, "cs_second", stored.ProviderTransactionRef)
}

func TestMemoryStoreUpsertIgnoresSentinelProduct(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.Upsert(ctx, Record{
		Identity:   "a@b.com",
		Credential: "PR-1-first",
		ProductRef: "promptrecall-pro",
	})
	require.NoError(t, err)

	stored, _, err := store.Upsert(ctx, Record{
		Identity:   "a@b.com",
		Credential: "PR-2-second",
		ProductRef: ProductUnknown,
	})
	require.NoError(t, err)
	assert.Equal(t, "promptrecall-pro", stored.ProductRef)
}
