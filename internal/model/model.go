// Package model defines the domain types used across the application.
package model

import "time"

// Category classifies a waste collection by fraction.
type Category int

// Known waste fractions. The numeric values match the upstream fraction ids.
const (
	CategoryResidual Category = iota
	CategoryPaper
	CategoryPackaging
	CategoryOrganic
	CategoryChristmasTree
	CategoryUnknown Category = -1
)

// CategoryFromFraction maps an upstream fraction id to a Category.
// Unrecognised ids yield CategoryUnknown.
func CategoryFromFraction(id int) Category {
	switch id {
	case 0:
		return CategoryResidual
	case 1:
		return CategoryPaper
	case 2:
		return CategoryPackaging
	case 3:
		return CategoryOrganic
	case 4:
		return CategoryChristmasTree
	default:
		return CategoryUnknown
	}
}

// String returns the German display label.
func (c Category) String() string {
	switch c {
	case CategoryResidual:
		return "Restmüll"
	case CategoryPaper:
		return "Papier"
	case CategoryPackaging:
		return "Gelbe Tonne"
	case CategoryOrganic:
		return "Biotonne"
	case CategoryChristmasTree:
		return "Weihnachtsbaum"
	default:
		return "Unbekannt"
	}
}

// CollectionEvent is a single scheduled waste pickup for one address.
// Date is a calendar date stored as midnight UTC.
type CollectionEvent struct {
	ID         int64
	DistrictID int64
	District   string
	Category   Category
	Date       time.Time
}

// DaysUntil returns the number of whole days from today to the collection.
func (e CollectionEvent) DaysUntil(today time.Time) int {
	return int(e.Date.Sub(today).Hours() / 24)
}

// CalendarSource names one calendar of the scheduling backend.
type CalendarSource struct {
	Name string
	ID   string
}

// Appointment is a normalized calendar entry.
//
// Start and End are absolute instants; StartDate and EndDate are the
// corresponding calendar dates at midnight UTC. StartTime and EndTime are
// "HH:MM" strings in the display time zone and are empty for whole-day
// entries.
type Appointment struct {
	ID          string
	Calendar    string
	Title       string
	Start       time.Time
	End         time.Time
	StartDate   time.Time
	EndDate     time.Time
	StartTime   string
	EndTime     string
	WholeDay    bool
	Recurring   bool
	Tentative   bool
	Description string
	Location    string
}

// DefaultTitle is used for appointments without a summary.
const DefaultTitle = "Kein Titel"

// Normalized returns a copy of a with defaults and derived fields filled in.
// A zero End becomes Start plus one hour for timed entries and Start for
// whole-day entries; an End before Start is clamped to Start. Whole-day
// instants are moved to midnight UTC. Dates are taken in ref and display
// times are rendered in display.
func (a Appointment) Normalized(ref, display *time.Location) Appointment {
	if a.Title == "" {
		a.Title = DefaultTitle
	}
	if a.WholeDay {
		a.Start = midnightUTC(a.Start)
		if !a.End.IsZero() {
			a.End = midnightUTC(a.End)
		}
	}
	switch {
	case a.End.IsZero() && a.WholeDay:
		a.End = a.Start
	case a.End.IsZero():
		a.End = a.Start.Add(time.Hour)
	case a.End.Before(a.Start):
		a.End = a.Start
	}

	if a.WholeDay {
		a.StartDate, a.EndDate = a.Start, a.End
		a.StartTime, a.EndTime = "", ""
		return a
	}
	a.StartDate = midnightUTC(a.Start.In(ref))
	a.EndDate = midnightUTC(a.End.In(ref))
	a.StartTime = a.Start.In(display).Format("15:04")
	a.EndTime = a.End.In(display).Format("15:04")
	return a
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateGroup holds all appointments starting on one date.
type DateGroup struct {
	Date         time.Time
	Appointments []Appointment
}

// BlockingStatus is the DNS blocking state reported by one appliance.
type BlockingStatus struct {
	Blocking bool
	Timer    *time.Duration
}

// OpeningHours describes the recycling centre's opening times.
type OpeningHours struct {
	Regular   map[string]string
	Saturdays map[int][]string
}

// Notice is a news item published by the waste company.
type Notice struct {
	GUID      string
	Title     string
	Summary   string
	Link      string
	Published *time.Time
}

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	FilterInclude   FilterKind = "include"
	FilterExclude   FilterKind = "exclude"
	FilterIncludeRe FilterKind = "include_re"
	FilterExcludeRe FilterKind = "exclude_re"
)

// FilterScope defines which part of a notice a filter matches against.
type FilterScope string

// Supported filter scopes.
const (
	ScopeTitle   FilterScope = "title"
	ScopeContent FilterScope = "content"
	ScopeAll     FilterScope = "all"
)

// Filter is a single matching rule for notices.
type Filter struct {
	Kind  FilterKind
	Scope FilterScope
	Value string
}

// SourceCheck records the outcome of one upstream refresh.
type SourceCheck struct {
	ID        int64
	RunID     string
	Source    string
	OK        bool
	ErrorKind string
	Message   string
	Duration  time.Duration
	CheckedAt time.Time
}
