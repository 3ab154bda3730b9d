package repository

import (
	"context"
	"errors"

	ledgertxdomain "github.com/smallbiznis/salesledger/internal/ledgertx/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) ledgertxdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) ledgertxdomain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *ledgertxdomain.LedgerTransaction, sourceLineItemIDs []string) error {
	if txn == nil {
		return ledgertxdomain.ErrInvalidID
	}
	if len(sourceLineItemIDs) == 0 {
		return ledgertxdomain.ErrMissingSources
	}

	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return err
	}

	links := make([]ledgertxdomain.LedgerTransactionSource, 0, len(sourceLineItemIDs))
	for _, id := range sourceLineItemIDs {
		links = append(links, ledgertxdomain.LedgerTransactionSource{
			LedgerTransactionID: txn.ID,
			SourceLineItemID:    id,
			CreatedAt:           txn.CreatedAt,
		})
	}
	return r.db.WithContext(ctx).CreateInBatches(links, 500).Error
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*ledgertxdomain.LedgerTransaction, error) {
	var txn ledgertxdomain.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("number = ?", number).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindBySourceLineItemID(ctx context.Context, lineItemID string) (*ledgertxdomain.LedgerTransaction, error) {
	var txn ledgertxdomain.LedgerTransaction
	err := r.db.WithContext(ctx).
		Joins("JOIN ledger_transaction_sources s ON s.ledger_transaction_id = ledger_transactions.id").
		Where("s.source_line_item_id = ?", lineItemID).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListSourceLineItemIDs(ctx context.Context, txnID int64) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&ledgertxdomain.LedgerTransactionSource{}).
		Where("ledger_transaction_id = ?", txnID).
		Order("source_line_item_id ASC").
		Pluck("source_line_item_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&ledgertxdomain.LedgerTransaction{}).Count(&count).Error
	return count, err
}
