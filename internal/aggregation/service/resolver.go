package service

import (
	"time"

	"github.com/shopspring/decimal"
	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
	ledgertxdomain "github.com/smallbiznis/salesledger/internal/ledgertx/domain"
	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
)

// Resolver maps a line item to the ledger attributes of its aggregate. It
// performs no I/O.
type Resolver struct {
	rules       aggregationdomain.RuleConfig
	vatAccounts map[string]struct{}
}

func NewResolver(rules aggregationdomain.RuleConfig) (*Resolver, error) {
	rules = rules.WithDefaults()
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	vatAccounts := make(map[string]struct{}, len(rules.LedgerAccountsWithVATRate))
	for _, account := range rules.LedgerAccountsWithVATRate {
		vatAccounts[account] = struct{}{}
	}
	return &Resolver{rules: rules, vatAccounts: vatAccounts}, nil
}

func (r *Resolver) Rules() aggregationdomain.RuleConfig {
	return r.rules
}

func (r *Resolver) Kind(item lineitemdomain.SourceLineItem) aggregationdomain.PaymentKind {
	switch (payload{item}).str(r.rules.KindKey) {
	case r.rules.ComposedProductKind:
		return aggregationdomain.PaymentKindComposed
	case r.rules.PaymentKindCash:
		return aggregationdomain.PaymentKindCash
	case r.rules.PaymentKindCard:
		return aggregationdomain.PaymentKindCard
	default:
		return aggregationdomain.PaymentKindGeneric
	}
}

// Resolve builds the single-item record for item.
func (r *Resolver) Resolve(item lineitemdomain.SourceLineItem) (aggregationdomain.Record, error) {
	p := payload{item}
	keys := r.rules.DataKeys

	if time.Time(item.ReferenceDate).IsZero() {
		return aggregationdomain.Record{}, p.invalid("referenceDate", "is missing")
	}

	var (
		groupingKey   string
		ledgerAccount string
		documentType  string
		err           error
	)
	switch r.Kind(item) {
	case aggregationdomain.PaymentKindComposed:
		return aggregationdomain.Record{}, p.invalid(r.rules.KindKey, "composed products are not aggregated")
	case aggregationdomain.PaymentKindCash:
		groupingKey, ledgerAccount, err = r.resolveCash(p)
		documentType = p.str(keys.DocumentType)
	case aggregationdomain.PaymentKindCard:
		groupingKey, ledgerAccount, documentType, err = r.resolveCard(p)
	default:
		groupingKey = p.str(keys.AccountingCode)
		ledgerAccount = p.str(keys.LedgerAccount)
		documentType = p.str(keys.DocumentType)
	}
	if err != nil {
		return aggregationdomain.Record{}, err
	}
	if groupingKey == "" {
		return aggregationdomain.Record{}, p.invalid("groupingKey", "resolved to an empty value")
	}

	amount, err := p.amount(keys.Amount)
	if err != nil {
		return aggregationdomain.Record{}, err
	}
	vatRate, err := r.resolveVATRate(p, ledgerAccount)
	if err != nil {
		return aggregationdomain.Record{}, err
	}

	return aggregationdomain.Record{
		ReferenceDate: lineitemdomain.DateOf(time.Time(item.ReferenceDate)),
		GroupingKey:   groupingKey,
		LedgerAccount: ledgerAccount,
		DocumentType:  documentType,
		Direction:     ledgertxdomain.Direction(p.str(keys.PaymentSale)),
		Amount:        amount,
		VATRate:       vatRate,
		SourceLineIDs: []string{item.ID},
		CostCenter:    p.optionalStr(keys.CostCenter),
		CostObject:    p.optionalStr(keys.CostObject),
	}, nil
}

func (r *Resolver) resolveCash(p payload) (string, string, error) {
	operator := p.str(r.rules.DataKeys.OperatorName)
	if operator == "" {
		return "", "", p.invalid("operatorName", "is missing")
	}
	ledgerAccount := r.rules.OperatorLedgerAccounts[operator]
	if ledgerAccount == "" {
		return "", "", &aggregationdomain.RuleError{
			Kind:       aggregationdomain.KindConfiguration,
			Field:      "operators",
			Reason:     "no ledger account mapped for operator " + operator,
			LineItemID: p.item.ID,
		}
	}
	return r.rules.CashLabel + " " + operator, ledgerAccount, nil
}

func (r *Resolver) resolveCard(p payload) (string, string, string, error) {
	keys := r.rules.DataKeys
	cardType := p.str(keys.CardType)
	if cardType == "" {
		return "", "", "", p.invalid("cardType", "is missing")
	}

	ledgerAccount := r.rules.CardTypeLedgerAccounts[cardType]
	if ledgerAccount == "" {
		ledgerAccount = p.str(keys.LedgerAccount)
	}
	documentType := r.rules.CardTypeDocumentTypes[cardType]
	if documentType == "" {
		documentType = p.str(keys.DocumentType)
	}
	return r.rules.CardLabel + " " + cardType, ledgerAccount, documentType, nil
}

// resolveVATRate keys off the resolved ledger account, not the one carried
// in the payload.
func (r *Resolver) resolveVATRate(p payload, ledgerAccount string) (decimal.NullDecimal, error) {
	if _, ok := r.vatAccounts[ledgerAccount]; !ok {
		return decimal.NullDecimal{}, nil
	}
	return p.vatRate(r.rules.DataKeys.VATRate)
}
