package service

import (
	"strings"

	"github.com/shopspring/decimal"
	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
	"github.com/spf13/cast"
)

// payload reads typed attributes out of a line item's raw data.
type payload struct {
	item lineitemdomain.SourceLineItem
}

func (p payload) str(key string) string {
	raw, ok := p.item.Value(key)
	if !ok || raw == nil {
		return ""
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (p payload) optionalStr(key string) *string {
	if key == "" {
		return nil
	}
	s := p.str(key)
	if s == "" {
		return nil
	}
	return &s
}

func (p payload) decimal(key string) (decimal.Decimal, bool, error) {
	raw, ok := p.item.Value(key)
	if !ok || raw == nil {
		return decimal.Zero, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true, nil
	case float32:
		return decimal.NewFromFloat32(v), true, nil
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

// amount returns the signed minor-unit amount. It must be present and integral.
func (p payload) amount(key string) (int64, error) {
	d, ok, err := p.decimal(key)
	if err != nil {
		return 0, p.invalid("amount", "is not a number")
	}
	if !ok {
		return 0, p.invalid("amount", "is missing")
	}
	if !d.IsInteger() {
		return 0, p.invalid("amount", "must be in minor currency units")
	}
	return d.IntPart(), nil
}

func (p payload) vatRate(key string) (decimal.NullDecimal, error) {
	d, ok, err := p.decimal(key)
	if err != nil {
		return decimal.NullDecimal{}, p.invalid("vatRate", "is not a number")
	}
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(d), nil
}

func (p payload) invalid(field, reason string) error {
	return &aggregationdomain.RuleError{
		Kind:       aggregationdomain.KindDataIntegrity,
		Field:      field,
		Reason:     reason,
		LineItemID: p.item.ID,
	}
}
