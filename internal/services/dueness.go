package services

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// DuenessChecker decides whether a recurring template should produce a
// concrete transaction, given when it last did and the template's start
// date.
type DuenessChecker interface {
	IsDue(lastRun, now time.Time, start core.Date) bool
}

type dailyChecker struct{}

// Due when the last run was on an earlier day.
func (dailyChecker) IsDue(lastRun, now time.Time, _ core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	return lastRun.Format("2006-01-02") != now.Format("2006-01-02")
}

type weeklyChecker struct{}

// Due when 7 or more days have passed since the last run.
func (weeklyChecker) IsDue(lastRun, now time.Time, _ core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	return now.Sub(lastRun).Hours()/24 >= 7
}

type monthlyChecker struct{}

// Due once per month, on the start date's day of month. A target day past
// the end of a short month clamps to the month's last day.
func (monthlyChecker) IsDue(lastRun, now time.Time, start core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	if lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}

	targetDay := start.Day()
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}
	return now.Day() >= targetDay
}

type yearlyChecker struct{}

// Due once per year, on the start date's month and day.
func (yearlyChecker) IsDue(lastRun, now time.Time, start core.Date) bool {
	if lastRun.IsZero() {
		return true
	}
	if lastRun.Year() == now.Year() {
		return false
	}

	if now.Month() < start.Month() {
		return false
	}
	if now.Month() == start.Month() {
		targetDay := start.Day()
		lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
		if targetDay > lastDayOfMonth {
			targetDay = lastDayOfMonth
		}
		return now.Day() >= targetDay
	}
	return true
}

var duenessCheckers = map[core.Frequency]DuenessChecker{
	core.Daily:   dailyChecker{},
	core.Weekly:  weeklyChecker{},
	core.Monthly: monthlyChecker{},
	core.Yearly:  yearlyChecker{},
}

// duenessChecker returns the checker for a frequency.
func duenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessCheckers[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown repetition frequency: %s", frequency)
	}
	return checker, nil
}
