// Package store persists the sale ledger and the purchase log. Two
// implementations exist: an in-memory store for tests and single-node runs,
// and a PostgreSQL store for durable deployments.
package store

import (
	"context"

	"crowdgate/internal/sale/models"
)

// Store is the persistence surface the sale service requires. Load returns
// sentinel.ErrNotFound (possibly wrapped) when no ledger has been
// initialized yet; Init seeds it exactly once.
type Store interface {
	Init(ctx context.Context, ledger *models.Ledger) error
	Load(ctx context.Context) (*models.Ledger, error)
	Save(ctx context.Context, ledger *models.Ledger) error
	AppendPurchase(ctx context.Context, receipt models.PurchaseReceipt) error
	ListPurchases(ctx context.Context) ([]models.PurchaseReceipt, error)
}
