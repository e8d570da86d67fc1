// Package dates holds the calendar arithmetic and fixed Portuguese labels
// used across the directive.
package dates

import (
	"errors"
	"fmt"
	"time"

	"dsigen/internal/model"
)

// MaxRecommendedSpanDays is the span above which Validate emits an advisory
// warning.
const MaxRecommendedSpanDays = 14

// ErrEndBeforeStart is returned by Validate when the period is inverted.
var ErrEndBeforeStart = errors.New("dates: end date is before start date")

var weekdays = [7]string{"SEG", "TER", "QUA", "QUI", "SEX", "SÁB", "DOM"}

var months = [12]string{"JAN", "FEV", "MAR", "ABR", "MAI", "JUN", "JUL", "AGO", "SET", "OUT", "NOV", "DEZ"}

var monthsLong = [12]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// isoIndex maps time.Weekday (Sunday=0) to a Monday=0 offset.
func isoIndex(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// MondayOf returns the Monday on or before d, as a Day.
func MondayOf(d time.Time) time.Time {
	day := model.Day(d)
	return day.AddDate(0, 0, -isoIndex(day))
}

// WeekRange returns the Monday..Sunday period containing d.
func WeekRange(d time.Time) model.Period {
	start := MondayOf(d)
	return model.Period{Start: start, End: start.AddDate(0, 0, 6)}
}

// Weekday returns the three-letter weekday label.
func Weekday(d time.Time) string {
	return weekdays[isoIndex(d)]
}

// Month returns the three-letter month label.
func Month(d time.Time) string {
	return months[d.Month()-1]
}

// MonthLong returns the lower-case full month name.
func MonthLong(d time.Time) string {
	return monthsLong[d.Month()-1]
}

func IsWeekend(d time.Time) bool {
	i := isoIndex(d)
	return i == 5 || i == 6
}

// ColumnLabel formats the DATA cell, e.g. "09 JUN (SEG)".
func ColumnLabel(d time.Time) string {
	return fmt.Sprintf("%02d %s (%s)", d.Day(), Month(d), Weekday(d))
}

// ShortDate formats d as "09 JUN 25".
func ShortDate(d time.Time) string {
	return fmt.Sprintf("%02d %s %02d", d.Day(), Month(d), d.Year()%100)
}

// PeriodTitle formats p as "09 JUN 25 a 15 JUN 25".
func PeriodTitle(p model.Period) string {
	return ShortDate(p.Start) + " a " + ShortDate(p.End)
}

// UTCStart is the RFC3339 start of d's day in UTC.
func UTCStart(d time.Time) string {
	return model.Day(d).Format(time.RFC3339)
}

// UTCEndExclusive is the RFC3339 start of the day after d, in UTC.
func UTCEndExclusive(d time.Time) string {
	return model.Day(d).AddDate(0, 0, 1).Format(time.RFC3339)
}

// Validate rejects inverted periods and warns about spans longer than
// MaxRecommendedSpanDays.
func Validate(p model.Period) ([]model.Warning, error) {
	if p.End.Before(p.Start) {
		return nil, fmt.Errorf("%w: %s > %s", ErrEndBeforeStart,
			p.Start.Format(model.DateLayout), p.End.Format(model.DateLayout))
	}
	span := int(p.End.Sub(p.Start).Hours() / 24)
	if span > MaxRecommendedSpanDays {
		return []model.Warning{{
			Scope:   "period",
			Message: fmt.Sprintf("period spans %d days; more than two weeks may produce a very large document", span),
		}}, nil
	}
	return nil, nil
}
