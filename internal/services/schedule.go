// Package services provides business logic and orchestration.
//
// This file implements the Strategy Pattern for recurring transaction
// scheduling. Each frequency has its own advancer that computes the next
// run date from the one just materialized.
package services

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// ScheduleAdvancer computes the run date following `after` for a template
// anchored at `start`.
type ScheduleAdvancer interface {
	Next(after, start core.Date) core.Date
}

type DailyAdvancer struct{}

func (DailyAdvancer) Next(after, _ core.Date) core.Date {
	return core.Date{Time: after.AddDate(0, 0, 1)}
}

type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(after, _ core.Date) core.Date {
	return core.Date{Time: after.AddDate(0, 0, 7)}
}

// MonthlyAdvancer targets the start date's day each month, clamped to the
// month's last day (a template anchored on the 31st runs on Feb 28/29).
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(after, start core.Date) core.Date {
	year, month := after.Year(), after.Time.Month()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	return clampToMonth(year, month, start.Day())
}

// YearlyAdvancer targets the start date's month and day each year, with
// the same end-of-month clamping (Feb 29 anchors run on Feb 28 off-years).
type YearlyAdvancer struct{}

func (YearlyAdvancer) Next(after, start core.Date) core.Date {
	return clampToMonth(after.Year()+1, start.Time.Month(), start.Day())
}

func clampToMonth(year int, month time.Month, day int) core.Date {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return core.NewDate(year, int(month), day)
}

// scheduleStrategies maps frequencies to their advancers.
var scheduleStrategies = map[core.Frequency]ScheduleAdvancer{
	core.FreqDaily:   DailyAdvancer{},
	core.FreqWeekly:  WeeklyAdvancer{},
	core.FreqMonthly: MonthlyAdvancer{},
	core.FreqYearly:  YearlyAdvancer{},
}

// GetScheduleAdvancer returns the advancer for a frequency.
func GetScheduleAdvancer(frequency core.Frequency) (ScheduleAdvancer, error) {
	advancer, ok := scheduleStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return advancer, nil
}

// RegisterScheduleAdvancer registers a custom advancer, allowing new
// frequencies without touching the processor.
func RegisterScheduleAdvancer(frequency core.Frequency, advancer ScheduleAdvancer) {
	scheduleStrategies[frequency] = advancer
}
