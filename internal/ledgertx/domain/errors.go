package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidNumber        = errors.New("invalid_number")
	ErrInvalidReferenceDate = errors.New("invalid_reference_date")
	ErrInvalidDocumentType  = errors.New("invalid_document_type")
	ErrInvalidDirection     = errors.New("invalid_direction")
	ErrInvalidLedgerAccount = errors.New("invalid_ledger_account")
	ErrInvalidCostCenter    = errors.New("invalid_cost_center")
	ErrInvalidCostObject    = errors.New("invalid_cost_object")
	ErrZeroAmount           = errors.New("zero_amount")
	ErrMissingSources       = errors.New("missing_sources")
	ErrInvalidNumberFormat  = errors.New("invalid_number_format")
)
