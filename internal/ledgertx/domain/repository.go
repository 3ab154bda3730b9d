package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Create inserts the transaction row and one link row per source line item.
	Create(ctx context.Context, txn *LedgerTransaction, sourceLineItemIDs []string) error
	FindByNumber(ctx context.Context, number string) (*LedgerTransaction, error)
	FindBySourceLineItemID(ctx context.Context, lineItemID string) (*LedgerTransaction, error)
	ListSourceLineItemIDs(ctx context.Context, txnID int64) ([]string, error)
	Count(ctx context.Context) (int64, error)
}
