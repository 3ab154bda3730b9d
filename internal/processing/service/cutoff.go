package service

import (
	"time"

	"github.com/smallbiznis/salesledger/internal/config"
	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
)

// resolveCutoff returns the last reference date a run may select.
func resolveCutoff(now time.Time, until *time.Time, policy string) time.Time {
	if until != nil && !until.IsZero() {
		return time.Time(lineitemdomain.DateOf(until.UTC()))
	}
	today := time.Time(lineitemdomain.DateOf(now.UTC()))
	if policy == config.CutoffPolicyPreviousSunday {
		return previousSunday(today)
	}
	return today
}

// previousSunday returns the Sunday strictly before day.
func previousSunday(day time.Time) time.Time {
	offset := int(day.Weekday())
	if offset == 0 {
		offset = 7
	}
	return day.AddDate(0, 0, -offset)
}
