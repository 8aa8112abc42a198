// Package report turns per-day query results into chart series. Days
// without tracked time between two tracked days are filled with zero rows
// when they are weekdays that are not marked untracked.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-while/go-timebook-web/internal/database"
	"github.com/shopspring/decimal"
)

// Untracked reports whether no time is expected on day
type Untracked func(day time.Time) bool

// UntrackedSet adapts a set of "2006-01-02" dates
func UntrackedSet(days map[string]bool) Untracked {
	return func(day time.Time) bool {
		return days[day.Format(database.DateLayout)]
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(database.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

func isWeekday(d time.Time) bool {
	wd := d.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// MissingWeekdays returns the days strictly between prev and next that
// should appear as zero rows
func MissingWeekdays(prev, next time.Time, untracked Untracked) []time.Time {
	var out []time.Time
	for d := prev.AddDate(0, 0, 1); d.Before(next); d = d.AddDate(0, 0, 1) {
		if !isWeekday(d) {
			continue
		}
		if untracked != nil && untracked(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FillWeekdayGaps walks dates in ascending order and calls emit for every
// date, inserting zero-row dates (zero=true) for the gaps
func FillWeekdayGaps(dates []string, untracked Untracked, emit func(date string, zero bool)) error {
	var prev time.Time
	for i, s := range dates {
		d, err := parseDate(s)
		if err != nil {
			return err
		}
		if i > 0 {
			for _, gap := range MissingWeekdays(prev, d, untracked) {
				emit(gap.Format(database.DateLayout), true)
			}
		}
		emit(s, false)
		prev = d
	}
	return nil
}

// BillablePoint is one day of the billable percentage chart
type BillablePoint struct {
	Date    string
	Percent float64
}

// MarshalJSON encodes the point as ["date", percent]
func (p BillablePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{p.Date, p.Percent})
}

// BillableSeries fills the weekday gaps of the billable percentages
func BillableSeries(days []database.BillableDay, untracked Untracked) ([]BillablePoint, error) {
	byDate := make(map[string]float64, len(days))
	dates := make([]string, 0, len(days))
	for _, d := range days {
		byDate[d.Date] = d.Percent
		dates = append(dates, d.Date)
	}

	out := make([]BillablePoint, 0, len(days))
	err := FillWeekdayGaps(dates, untracked, func(date string, zero bool) {
		p := BillablePoint{Date: date}
		if !zero {
			p.Percent = byDate[date]
		}
		out = append(out, p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectDay is one day of the per-project hours chart. Hours holds one
// value per project, in the order the series was built with.
type ProjectDay struct {
	Date  string
	Total float64
	Hours []float64
}

// MarshalJSON encodes the day as ["date", total, hours...]
func (p ProjectDay) MarshalJSON() ([]byte, error) {
	row := make([]interface{}, 0, len(p.Hours)+2)
	row = append(row, p.Date, p.Total)
	for _, h := range p.Hours {
		row = append(row, h)
	}
	return json.Marshal(row)
}

// ProjectSeries pivots per-project hours into one row per day. Total
// includes hours of projects not listed and of entries without a project.
func ProjectSeries(rows []database.ProjectHours, projects []string, untracked Untracked) ([]ProjectDay, error) {
	if len(projects) == 0 {
		return nil, nil
	}
	col := make(map[string]int, len(projects))
	for i, p := range projects {
		col[p] = i
	}

	var dates []string
	totals := make(map[string]decimal.Decimal)
	hours := make(map[string][]float64)
	for _, r := range rows {
		h, ok := hours[r.Date]
		if !ok {
			h = make([]float64, len(projects))
			hours[r.Date] = h
			dates = append(dates, r.Date)
		}
		if i, ok := col[r.Project]; ok {
			h[i] += r.Hours
		}
		totals[r.Date] = totals[r.Date].Add(decimal.NewFromFloat(r.Hours))
	}

	out := make([]ProjectDay, 0, len(dates))
	err := FillWeekdayGaps(dates, untracked, func(date string, zero bool) {
		if zero {
			out = append(out, ProjectDay{Date: date, Hours: make([]float64, len(projects))})
			return
		}
		out = append(out, ProjectDay{
			Date:  date,
			Total: totals[date].Round(1).InexactFloat64(),
			Hours: hours[date],
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
