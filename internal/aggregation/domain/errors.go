package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration        = errors.New("aggregation_configuration")
	ErrDivergentAggregation = errors.New("divergent_aggregation")
	ErrInvalidLineItem      = errors.New("invalid_line_item")
	ErrAggregatorConsumed   = errors.New("aggregator_consumed")
)

// Kind tags an error with the handling policy it calls for.
type Kind string

const (
	// KindConfiguration is a systemic misconfiguration; the run aborts.
	KindConfiguration Kind = "configuration"
	// KindDataIntegrity is inconsistent input or a resolution bug; the run aborts.
	KindDataIntegrity Kind = "data_integrity"
	// KindTransient covers I/O and storage failures.
	KindTransient Kind = "transient"
)

// RuleError is raised while classifying or merging line items.
type RuleError struct {
	Kind       Kind
	Field      string
	Reason     string
	LineItemID string
	Key        Key
	Existing   any
	Incoming   any
}

func (e *RuleError) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.sentinel(), e.Field, e.Reason)
	if e.LineItemID != "" {
		msg += fmt.Sprintf(" (line item %s)", e.LineItemID)
	}
	if e.Key.GroupingKey != "" || e.Key.ReferenceDate != "" {
		msg += fmt.Sprintf(" [%s/%s]", e.Key.ReferenceDate, e.Key.GroupingKey)
	}
	return msg
}

func (e *RuleError) Unwrap() error {
	return e.sentinel()
}

func (e *RuleError) sentinel() error {
	switch {
	case e.Kind == KindConfiguration:
		return ErrConfiguration
	case e.Reason == reasonMismatch:
		return ErrDivergentAggregation
	default:
		return ErrInvalidLineItem
	}
}

const reasonMismatch = "mismatch"

// Mismatch builds the error raised when a merge would combine divergent values.
func Mismatch(key Key, field, lineItemID string, existing, incoming any) *RuleError {
	return &RuleError{
		Kind:       KindDataIntegrity,
		Field:      field,
		Reason:     reasonMismatch,
		LineItemID: lineItemID,
		Key:        key,
		Existing:   existing,
		Incoming:   incoming,
	}
}

// Classify maps any error to its handling kind. Untagged errors count as transient.
func Classify(err error) Kind {
	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.Kind
	}
	switch {
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrDivergentAggregation), errors.Is(err, ErrInvalidLineItem), errors.Is(err, ErrAggregatorConsumed):
		return KindDataIntegrity
	default:
		return KindTransient
	}
}
