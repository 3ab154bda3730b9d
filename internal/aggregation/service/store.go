package service

import (
	"slices"
	"strings"

	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
)

// store accumulates records under a composite (date, grouping key) and keeps
// the order in which keys were first seen.
type store struct {
	records map[aggregationdomain.Key]*aggregationdomain.Record
	order   []aggregationdomain.Key
}

func newStore() *store {
	return &store{records: make(map[aggregationdomain.Key]*aggregationdomain.Record)}
}

func (s *store) put(incoming aggregationdomain.Record) error {
	key := incoming.Key()
	existing, ok := s.records[key]
	if !ok {
		rec := incoming
		rec.SourceLineIDs = slices.Clone(incoming.SourceLineIDs)
		s.records[key] = &rec
		s.order = append(s.order, key)
		return nil
	}
	if err := checkMergeable(key, existing, incoming); err != nil {
		return err
	}
	existing.Amount += incoming.Amount
	existing.SourceLineIDs = append(existing.SourceLineIDs, incoming.SourceLineIDs...)
	return nil
}

func (s *store) len() int {
	return len(s.order)
}

// ordered returns records by reference date, then by first appearance of
// their grouping key within that date.
func (s *store) ordered() []aggregationdomain.Record {
	keys := slices.Clone(s.order)
	slices.SortStableFunc(keys, func(a, b aggregationdomain.Key) int {
		return strings.Compare(a.ReferenceDate, b.ReferenceDate)
	})
	out := make([]aggregationdomain.Record, 0, len(keys))
	for _, key := range keys {
		out = append(out, *s.records[key])
	}
	return out
}

func checkMergeable(key aggregationdomain.Key, existing *aggregationdomain.Record, incoming aggregationdomain.Record) error {
	lineItemID := ""
	if len(incoming.SourceLineIDs) > 0 {
		lineItemID = incoming.SourceLineIDs[0]
	}
	switch {
	case existing.LedgerAccount != incoming.LedgerAccount:
		return aggregationdomain.Mismatch(key, "ledgerAccount", lineItemID, existing.LedgerAccount, incoming.LedgerAccount)
	case existing.DocumentType != incoming.DocumentType:
		return aggregationdomain.Mismatch(key, "documentType", lineItemID, existing.DocumentType, incoming.DocumentType)
	case existing.Direction != incoming.Direction:
		return aggregationdomain.Mismatch(key, "direction", lineItemID, existing.Direction, incoming.Direction)
	case !sameVATRate(existing, incoming):
		return aggregationdomain.Mismatch(key, "vatRate", lineItemID, vatString(existing.VATRate), vatString(incoming.VATRate))
	}
	return nil
}

func sameVATRate(existing *aggregationdomain.Record, incoming aggregationdomain.Record) bool {
	if existing.VATRate.Valid != incoming.VATRate.Valid {
		return false
	}
	return !existing.VATRate.Valid || existing.VATRate.Decimal.Equal(incoming.VATRate.Decimal)
}
