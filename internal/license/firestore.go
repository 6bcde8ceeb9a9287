package license

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/promptrecall/licensing/internal/config"
)

// FirestoreStore is the production Store backed by a Firestore
// collection with one document per identity.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestoreStore connects to Firestore using the configured project
// and credentials. The caller owns Close.
func NewFirestoreStore(ctx context.Context, cfg config.FirestoreConfig, logger *slog.Logger) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreStore{
		client:     client,
		collection: cfg.Collection,
		logger:     logger.With(slog.String("component", "firestore_store")),
	}, nil
}

// Close releases the underlying client
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Get implements Store
func (s *FirestoreStore) Get(ctx context.Context, identity string) (*Record, error) {
	snap, err := s.client.Collection(s.collection).Doc(identity).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("firestore get failed: %w", err)
	}

	var rec Record
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode license document: %w", err)
	}
	if rec.Identity == "" {
		rec.Identity = snap.Ref.ID
	}
	return &rec, nil
}

// Upsert implements Store. A transaction makes the absent-to-present
// transition atomic: concurrent deliveries for the same identity
// serialize on the document, and only the first write sets the
// credential. Later writes merge audit fields via MergeAll.
func (s *FirestoreStore) Upsert(ctx context.Context, rec Record) (*Record, bool, error) {
	docRef := s.client.Collection(s.collection).Doc(rec.Identity)

	var stored Record
	var created bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			created = true
			stored = rec
			return tx.Set(docRef, rec)
		}

		var existing Record
		if err := snap.DataTo(&existing); err != nil {
			return fmt.Errorf("failed to decode existing license document: %w", err)
		}
		if existing.Identity == "" {
			existing.Identity = snap.Ref.ID
		}

		update := map[string]interface{}{}
		if rec.ProductRef != "" && rec.ProductRef != ProductUnknown {
			update["productRef"] = rec.ProductRef
			existing.ProductRef = rec.ProductRef
		}
		if rec.ProviderCustomerRef != "" {
			update["stripeCustomerId"] = rec.ProviderCustomerRef
			existing.ProviderCustomerRef = rec.ProviderCustomerRef
		}
		if rec.ProviderTransactionRef != "" {
			update["stripeSessionId"] = rec.ProviderTransactionRef
			existing.ProviderTransactionRef = rec.ProviderTransactionRef
		}

		created = false
		stored = existing
		if len(update) == 0 {
			return nil
		}
		return tx.Set(docRef, update, firestore.MergeAll)
	})
	if err != nil {
		return nil, false, fmt.Errorf("firestore upsert failed: %w", err)
	}

	if created {
		s.logger.InfoContext(ctx, "license document created",
			slog.String("identity", rec.Identity),
			slog.String("plan_type", string(rec.PlanKind)))
	} else {
		s.logger.InfoContext(ctx, "license document merged",
			slog.String("identity", rec.Identity))
	}

	return &stored, created, nil
}
