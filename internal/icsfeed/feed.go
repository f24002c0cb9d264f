// Package icsfeed reads an ICS calendar feed and normalizes its events into
// appointments.
package icsfeed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"homeboard/internal/dates"
	"homeboard/internal/fetcher"
	"homeboard/internal/model"
)

// DefaultTimeout bounds a feed download.
const DefaultTimeout = 30 * time.Second

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
)

// windowsZones maps zone names used by Exchange feeds to IANA names.
var windowsZones = map[string]string{
	"W. Europe Standard Time":        "Europe/Berlin",
	"Central Europe Standard Time":   "Europe/Budapest",
	"Central European Standard Time": "Europe/Warsaw",
	"Romance Standard Time":          "Europe/Paris",
	"GMT Standard Time":              "Europe/London",
	"Coordinated Universal Time":     "UTC",
}

// Config configures a Feed.
type Config struct {
	URL string
	// Calendar labels the produced appointments.
	Calendar string
	// Display is the zone for rendered times.
	Display *time.Location
	Timeout time.Duration
	Now     func() time.Time
}

// Feed downloads one ICS feed and normalizes it.
type Feed struct {
	fetcher  *fetcher.Fetcher
	url      string
	calendar string
	display  *time.Location
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// New creates a Feed.
func New(f *fetcher.Fetcher, cfg Config, log *slog.Logger) *Feed {
	if cfg.Display == nil {
		cfg.Display = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Feed{
		fetcher:  f,
		url:      cfg.URL,
		calendar: cfg.Calendar,
		display:  cfg.Display,
		timeout:  cfg.Timeout,
		now:      cfg.Now,
		log:      log,
	}
}

// Appointments fetches the feed and returns the appointments starting
// between today and today plus daysAhead.
func (f *Feed) Appointments(ctx context.Context, daysAhead int) ([]model.Appointment, error) {
	cal, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return f.Normalize(cal, f.now(), daysAhead), nil
}

// Fetch downloads and parses the feed within the feed timeout.
func (f *Feed) Fetch(ctx context.Context) (*ics.Calendar, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := f.fetcher.Get(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("get ics feed: %w", err)
	}
	cal, err := ics.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics feed: %w: %w", model.ErrInvalidResponse, err)
	}
	return cal, nil
}

// Normalize converts the events of cal whose start date lies within
// [today, today+daysAhead] into appointments sorted by start. Dates are
// taken in UTC. An event that cannot be read is logged and skipped.
func (f *Feed) Normalize(cal *ics.Calendar, now time.Time, daysAhead int) []model.Appointment {
	today := dates.Of(now, time.UTC)
	last := today.AddDate(0, 0, daysAhead)

	events := cal.Events()
	appts := make([]model.Appointment, 0, len(events))
	for _, ev := range events {
		ap, err := f.appointment(ev)
		if err != nil {
			f.log.Warn("skipping ics event", "calendar", f.calendar, "uid", ev.Id(), "error", err)
			continue
		}
		if !dates.Within(ap.StartDate, today, last) {
			continue
		}
		appts = append(appts, ap)
	}

	slices.SortStableFunc(appts, func(a, b model.Appointment) int {
		return a.Start.Compare(b.Start)
	})
	f.log.Debug("normalized ics feed", "calendar", f.calendar, "events", len(events), "kept", len(appts))
	return appts
}

func (f *Feed) appointment(ev *ics.VEvent) (model.Appointment, error) {
	startProp := ev.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil {
		return model.Appointment{}, fmt.Errorf("missing DTSTART")
	}
	start, wholeDay, err := parseTime(startProp)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("DTSTART: %w", err)
	}

	var end time.Time
	if endProp := ev.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil {
		if end, _, err = parseTime(endProp); err != nil {
			return model.Appointment{}, fmt.Errorf("DTEND: %w", err)
		}
	}

	ap := model.Appointment{
		ID:          ev.Id(),
		Calendar:    f.calendar,
		Title:       text(ev, ics.ComponentPropertySummary),
		Start:       start,
		End:         end,
		WholeDay:    wholeDay,
		Recurring:   ev.GetProperty(ics.ComponentPropertyRrule) != nil,
		Tentative:   strings.EqualFold(text(ev, ics.ComponentPropertyStatus), "tentative"),
		Description: text(ev, ics.ComponentPropertyDescription),
		Location:    text(ev, ics.ComponentPropertyLocation),
	}
	return ap.Normalized(time.UTC, f.display), nil
}

// parseTime reads a DTSTART or DTEND value. Date-only values mark whole-day
// events. Times without zone are taken as UTC.
func parseTime(p *ics.IANAProperty) (time.Time, bool, error) {
	value := strings.TrimSpace(p.Value)
	if strings.EqualFold(param(p, "VALUE"), "DATE") || len(value) == len(dateLayout) {
		d, err := time.Parse(dateLayout, value)
		if err != nil {
			return time.Time{}, false, err
		}
		return d, true, nil
	}

	if v, ok := strings.CutSuffix(value, "Z"); ok {
		t, err := time.ParseInLocation(dateTimeLayout, v, time.UTC)
		return t, false, err
	}

	loc := time.UTC
	if tzid := param(p, "TZID"); tzid != "" {
		loc = zone(tzid)
	}
	t, err := time.ParseInLocation(dateTimeLayout, value, loc)
	return t, false, err
}

// zone resolves an IANA or Windows zone name. Unknown names fall back to UTC.
func zone(tzid string) *time.Location {
	tzid = strings.Trim(tzid, `"`)
	if name, ok := windowsZones[tzid]; ok {
		tzid = name
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		return time.UTC
	}
	return loc
}

func param(p *ics.IANAProperty, name string) string {
	if v := p.ICalParameters[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func text(ev *ics.VEvent, prop ics.ComponentProperty) string {
	p := ev.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Value)
}
