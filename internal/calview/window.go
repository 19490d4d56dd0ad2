// Package calview turns calendar query parameters into a concrete time window.
package calview

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
)

const (
	dateLayout = "2006-01-02"
	agendaDays = 30
	// MaxSpan bounds explicit ranges so a single query cannot expand years of occurrences.
	MaxSpan = 366 * 24 * time.Hour
)

// Params are the raw query values of a calendar request.
type Params struct {
	View      string
	StartDate string
	EndDate   string
	// Date anchors a view; defaults to now.
	Date string
	TZ   string
}

// Resolve computes the window for p. Explicit startDate and endDate win over the
// view; a lone startDate anchors the view. Views are laid out in p.TZ (UTC when
// empty) and returned in UTC.
func Resolve(p Params, now time.Time) (recurrence.Window, error) {
	loc := time.UTC
	if p.TZ != "" {
		l, err := time.LoadLocation(p.TZ)
		if err != nil {
			return recurrence.Window{}, fmt.Errorf("unknown timezone %q", p.TZ)
		}
		loc = l
	}

	if p.StartDate != "" && p.EndDate != "" {
		start, _, err := parseInstant(p.StartDate, loc)
		if err != nil {
			return recurrence.Window{}, fmt.Errorf("invalid startDate: %w", err)
		}
		end, dateOnly, err := parseInstant(p.EndDate, loc)
		if err != nil {
			return recurrence.Window{}, fmt.Errorf("invalid endDate: %w", err)
		}
		if dateOnly {
			end = endOfDay(end)
		}
		if end.Before(start) {
			return recurrence.Window{}, errors.New("endDate must not be before startDate")
		}
		if end.Sub(start) > MaxSpan {
			return recurrence.Window{}, errors.New("date range may not exceed 366 days")
		}
		return utc(start, end), nil
	}
	if p.EndDate != "" {
		return recurrence.Window{}, errors.New("endDate requires startDate")
	}

	view := enum.CalendarView(strings.ToLower(p.View))
	if view == "" {
		view = enum.ViewMonth
	}
	if !view.IsValid() {
		return recurrence.Window{}, errors.New("view must be one of month, week, day, agenda")
	}

	anchor := now.In(loc)
	switch {
	case p.Date != "":
		t, _, err := parseInstant(p.Date, loc)
		if err != nil {
			return recurrence.Window{}, fmt.Errorf("invalid date: %w", err)
		}
		anchor = t
	case p.StartDate != "":
		t, _, err := parseInstant(p.StartDate, loc)
		if err != nil {
			return recurrence.Window{}, fmt.Errorf("invalid startDate: %w", err)
		}
		anchor = t
	}

	return utc(ForView(view, anchor)), nil
}

// ForView lays out view around anchor in anchor's location.
func ForView(view enum.CalendarView, anchor time.Time) (time.Time, time.Time) {
	day := startOfDay(anchor)
	switch view {
	case enum.ViewWeek:
		// Weeks start on Monday.
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, endOfDay(start.AddDate(0, 0, 6))
	case enum.ViewDay:
		return day, endOfDay(day)
	case enum.ViewAgenda:
		return anchor, anchor.AddDate(0, 0, agendaDays)
	default:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return start, endOfDay(start.AddDate(0, 1, -1))
	}
}

// parseInstant accepts RFC 3339 or a bare date, reporting which one it saw.
func parseInstant(raw string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), false, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, false, errors.New("expected RFC 3339 timestamp or YYYY-MM-DD")
	}
	return t, true, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

func utc(start, end time.Time) recurrence.Window {
	return recurrence.Window{Start: start.UTC(), End: end.UTC()}
}
