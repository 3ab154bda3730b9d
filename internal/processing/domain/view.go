package domain

import (
	"time"

	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
)

// RecordView is the printable form of an aggregation record.
type RecordView struct {
	ReferenceDate string   `json:"reference_date" yaml:"reference_date"`
	GroupingKey   string   `json:"grouping_key" yaml:"grouping_key"`
	LedgerAccount string   `json:"ledger_account" yaml:"ledger_account"`
	DocumentType  string   `json:"document_type" yaml:"document_type"`
	Direction     string   `json:"direction" yaml:"direction"`
	Amount        int64    `json:"amount" yaml:"amount"`
	VATRate       *string  `json:"vat_rate,omitempty" yaml:"vat_rate,omitempty"`
	CostCenter    *string  `json:"cost_center,omitempty" yaml:"cost_center,omitempty"`
	CostObject    *string  `json:"cost_object,omitempty" yaml:"cost_object,omitempty"`
	SourceLineIDs []string `json:"source_line_ids" yaml:"source_line_ids"`
}

type PreviewView struct {
	From      string       `json:"from" yaml:"from"`
	To        string       `json:"to" yaml:"to"`
	LineItems int          `json:"line_items" yaml:"line_items"`
	Ignored   []string     `json:"ignored" yaml:"ignored"`
	Records   []RecordView `json:"records" yaml:"records"`
}

type RunView struct {
	RunID            string        `json:"run_id" yaml:"run_id"`
	Cutoff           string        `json:"cutoff" yaml:"cutoff"`
	Fetched          int           `json:"fetched" yaml:"fetched"`
	Ignored          int           `json:"ignored" yaml:"ignored"`
	Aggregates       int           `json:"aggregates" yaml:"aggregates"`
	Committed        int           `json:"committed" yaml:"committed"`
	ZeroAmount       int           `json:"zero_amount" yaml:"zero_amount"`
	Failed           int           `json:"failed" yaml:"failed"`
	NumberCollisions int           `json:"number_collisions" yaml:"number_collisions"`
	Failures         []FailureView `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type FailureView struct {
	ReferenceDate string   `json:"reference_date" yaml:"reference_date"`
	GroupingKey   string   `json:"grouping_key" yaml:"grouping_key"`
	SourceLineIDs []string `json:"source_line_ids" yaml:"source_line_ids"`
	Attempts      int      `json:"attempts" yaml:"attempts"`
	Error         string   `json:"error" yaml:"error"`
}

func NewRecordView(r aggregationdomain.Record) RecordView {
	view := RecordView{
		ReferenceDate: time.Time(r.ReferenceDate).Format(time.DateOnly),
		GroupingKey:   r.GroupingKey,
		LedgerAccount: r.LedgerAccount,
		DocumentType:  r.DocumentType,
		Direction:     string(r.Direction),
		Amount:        r.Amount,
		CostCenter:    r.CostCenter,
		CostObject:    r.CostObject,
		SourceLineIDs: r.SourceLineIDs,
	}
	if r.VATRate.Valid {
		vat := r.VATRate.Decimal.String()
		view.VATRate = &vat
	}
	return view
}

func NewPreviewView(req PreviewRequest, res PreviewResult) PreviewView {
	view := PreviewView{
		From:      req.From.Format(time.DateOnly),
		To:        req.To.Format(time.DateOnly),
		LineItems: res.LineItems,
		Ignored:   res.Ignored,
		Records:   make([]RecordView, 0, len(res.Records)),
	}
	if view.Ignored == nil {
		view.Ignored = []string{}
	}
	for _, r := range res.Records {
		view.Records = append(view.Records, NewRecordView(r))
	}
	return view
}

func NewRunView(res RunResult) RunView {
	view := RunView{
		RunID:            res.RunID,
		Cutoff:           res.Cutoff.Format(time.DateOnly),
		Fetched:          res.Fetched,
		Ignored:          res.Ignored,
		Aggregates:       res.Aggregates,
		Committed:        res.Committed,
		ZeroAmount:       res.ZeroAmount,
		Failed:           res.Failed,
		NumberCollisions: res.NumberCollisions,
	}
	for _, f := range res.Failures {
		failure := FailureView{
			ReferenceDate: f.Key.ReferenceDate,
			GroupingKey:   f.Key.GroupingKey,
			SourceLineIDs: f.SourceLineIDs,
			Attempts:      f.Attempts,
		}
		if f.Err != nil {
			failure.Error = f.Err.Error()
		}
		view.Failures = append(view.Failures, failure)
	}
	return view
}
