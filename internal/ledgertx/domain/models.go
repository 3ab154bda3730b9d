package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Direction is the posting side of a ledger transaction.
type Direction string

const (
	DirectionPayment Direction = "P"
	DirectionSale    Direction = "S"
)

func (d Direction) Valid() bool {
	return d == DirectionPayment || d == DirectionSale
}

const (
	MaxDocumentTypeLength = 4
	MaxCostCenterLength   = 8
	MaxCostObjectLength   = 16

	// NumberUniqueIndex names the case-sensitive unique index on numbers.
	NumberUniqueIndex = "ux_ledger_transactions_number"
)

// LedgerTransaction is one grouped posting handed over to the general ledger.
// Rows are immutable once written by the processing pipeline; ExternalKey is
// set by the export side only.
type LedgerTransaction struct {
	ID            snowflake.ID        `gorm:"primaryKey"`
	Number        string              `gorm:"type:varchar(15);not null;uniqueIndex:ux_ledger_transactions_number"`
	ReferenceDate datatypes.Date      `gorm:"not null;index:ix_ledger_transactions_reference_date"`
	DocumentType  string              `gorm:"type:varchar(4);not null"`
	Direction     Direction           `gorm:"type:varchar(1);not null"`
	LedgerAccount string              `gorm:"type:varchar(32);not null"`
	Amount        int64               `gorm:"not null"`
	VATRate       decimal.NullDecimal `gorm:"column:vat_rate;type:numeric(6,2)"`
	CostCenter    *string             `gorm:"type:varchar(8)"`
	CostObject    *string             `gorm:"type:varchar(16)"`
	ExternalKey   *string             `gorm:"type:varchar(64);index:ix_ledger_transactions_external_key"`
	CreatedAt     time.Time           `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerTransaction) TableName() string { return "ledger_transactions" }

// LedgerTransactionSource links a ledger transaction to a contributing line item.
type LedgerTransactionSource struct {
	LedgerTransactionID snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	SourceLineItemID    string       `gorm:"primaryKey;type:varchar(64)"`
	CreatedAt           time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerTransactionSource) TableName() string { return "ledger_transaction_sources" }

func (t *LedgerTransaction) Validate() error {
	if t.ID == 0 {
		return ErrInvalidID
	}
	if strings.TrimSpace(t.Number) == "" {
		return ErrInvalidNumber
	}
	if time.Time(t.ReferenceDate).IsZero() {
		return ErrInvalidReferenceDate
	}
	documentType := strings.TrimSpace(t.DocumentType)
	if documentType == "" || len([]rune(documentType)) > MaxDocumentTypeLength {
		return ErrInvalidDocumentType
	}
	if !t.Direction.Valid() {
		return ErrInvalidDirection
	}
	if strings.TrimSpace(t.LedgerAccount) == "" {
		return ErrInvalidLedgerAccount
	}
	if t.Amount == 0 {
		return ErrZeroAmount
	}
	if t.CostCenter != nil && len([]rune(*t.CostCenter)) > MaxCostCenterLength {
		return ErrInvalidCostCenter
	}
	if t.CostObject != nil && len([]rune(*t.CostObject)) > MaxCostObjectLength {
		return ErrInvalidCostObject
	}
	return nil
}
