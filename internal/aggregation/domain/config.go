package domain

import "strings"

const (
	DefaultKindKey             = "kind"
	DefaultComposedProductKind = "COMPOSED_PRODUCT"
	DefaultCardLabel           = "Kartenzahlung"
)

// DataKeys maps each business attribute to its field name in the payload.
type DataKeys struct {
	AccountingCode string `mapstructure:"accountingCode" yaml:"accountingCode"`
	OperatorName   string `mapstructure:"operatorName" yaml:"operatorName"`
	CardType       string `mapstructure:"cardType" yaml:"cardType"`
	LedgerAccount  string `mapstructure:"ledgerAccount" yaml:"ledgerAccount"`
	DocumentType   string `mapstructure:"documentType" yaml:"documentType"`
	VATRate        string `mapstructure:"vatRate" yaml:"vatRate"`
	PaymentSale    string `mapstructure:"paymentSale" yaml:"paymentSale"`
	Amount         string `mapstructure:"amount" yaml:"amount"`
	CostCenter     string `mapstructure:"costCenter" yaml:"costCenter"`
	CostObject     string `mapstructure:"costObject" yaml:"costObject"`
}

// RuleConfig drives line item classification and account resolution.
type RuleConfig struct {
	KindKey             string
	PaymentKindCash     string
	PaymentKindCard     string
	ComposedProductKind string
	CashLabel           string
	CardLabel           string
	DataKeys            DataKeys

	OperatorLedgerAccounts    map[string]string
	CardTypeLedgerAccounts    map[string]string
	CardTypeDocumentTypes     map[string]string
	LedgerAccountsWithVATRate []string
}

func (c RuleConfig) WithDefaults() RuleConfig {
	if strings.TrimSpace(c.KindKey) == "" {
		c.KindKey = DefaultKindKey
	}
	if strings.TrimSpace(c.ComposedProductKind) == "" {
		c.ComposedProductKind = DefaultComposedProductKind
	}
	if strings.TrimSpace(c.CashLabel) == "" {
		c.CashLabel = c.PaymentKindCash
	}
	if strings.TrimSpace(c.CardLabel) == "" {
		c.CardLabel = DefaultCardLabel
	}
	return c
}

func (c RuleConfig) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"paymentKindCash", c.PaymentKindCash},
		{"paymentKindCard", c.PaymentKindCard},
		{"dataKeys.operatorName", c.DataKeys.OperatorName},
		{"dataKeys.cardType", c.DataKeys.CardType},
		{"dataKeys.accountingCode", c.DataKeys.AccountingCode},
		{"dataKeys.ledgerAccount", c.DataKeys.LedgerAccount},
		{"dataKeys.documentType", c.DataKeys.DocumentType},
		{"dataKeys.paymentSale", c.DataKeys.PaymentSale},
		{"dataKeys.amount", c.DataKeys.Amount},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &RuleError{Kind: KindConfiguration, Field: r.field, Reason: "must not be empty"}
		}
	}
	if c.PaymentKindCash == c.PaymentKindCard {
		return &RuleError{Kind: KindConfiguration, Field: "paymentKindCard", Reason: "must differ from paymentKindCash"}
	}
	return nil
}

// DefaultDataKeys returns the field names used by the ticketing export.
func DefaultDataKeys() DataKeys {
	return DataKeys{
		AccountingCode: "ACCOUNTING_CODE",
		OperatorName:   "OPERATOR_NAME",
		CardType:       "CARD_TYPE",
		LedgerAccount:  "ANALYTIC1",
		DocumentType:   "DOCUMENT_TYPE",
		VATRate:        "VAT_RATE",
		PaymentSale:    "PAYMENT_SALE",
		Amount:         "AMOUNT",
		CostCenter:     "COST_CENTER",
		CostObject:     "COST_OBJECT",
	}
}
