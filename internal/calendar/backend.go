package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"homeboard/internal/dates"
	"homeboard/internal/fetcher"
	"homeboard/internal/model"
)

// BackendConfig configures a Backend.
type BackendConfig struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// Display is the zone for rendered times and for timed writes.
	Display *time.Location
	Now     func() time.Time
}

type eventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type event struct {
	ID               string    `json:"id,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	Description      string    `json:"description,omitempty"`
	Location         string    `json:"location,omitempty"`
	Status           string    `json:"status,omitempty"`
	Start            eventTime `json:"start"`
	End              eventTime `json:"end"`
	Recurrence       []string  `json:"recurrence,omitempty"`
	RecurringEventID string    `json:"recurringEventId,omitempty"`
}

type eventList struct {
	Items []event `json:"items"`
}

// Backend talks to the scheduling backend's JSON API. It implements Lister.
type Backend struct {
	fetcher *fetcher.Fetcher
	baseURL string
	token   string
	display *time.Location
	now     func() time.Time
	log     *slog.Logger
}

// NewBackend creates a Backend. Request timeouts come from the fetcher's
// HTTP client.
func NewBackend(f *fetcher.Fetcher, cfg BackendConfig, log *slog.Logger) *Backend {
	if cfg.Display == nil {
		cfg.Display = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Backend{
		fetcher: f,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		display: cfg.Display,
		now:     cfg.Now,
		log:     log,
	}
}

// List returns the appointments of src starting between today and today
// plus daysAhead, expanded to single occurrences and ordered by start.
func (b *Backend) List(ctx context.Context, src model.CalendarSource, daysAhead int) ([]model.Appointment, error) {
	today := dates.Of(b.now(), b.display)
	last := today.AddDate(0, 0, daysAhead)
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, b.display)
	to := from.AddDate(0, 0, daysAhead+1)

	q := url.Values{}
	q.Set("timeMin", from.Format(time.RFC3339))
	q.Set("timeMax", to.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	var list eventList
	if err := b.do(ctx, http.MethodGet, b.eventsURL(src.ID)+"?"+q.Encode(), nil, &list); err != nil {
		return nil, fmt.Errorf("list calendar %s: %w", src.Name, err)
	}

	appts := make([]model.Appointment, 0, len(list.Items))
	for _, ev := range list.Items {
		ap, err := b.toAppointment(src.Name, ev)
		if err != nil {
			b.log.Warn("skipping calendar event", "source", src.Name, "event_id", ev.ID, "error", err)
			continue
		}
		if !dates.Within(ap.StartDate, today, last) {
			continue
		}
		appts = append(appts, ap)
	}
	return appts, nil
}

// Create adds ap to src and returns the stored appointment.
func (b *Backend) Create(ctx context.Context, src model.CalendarSource, ap model.Appointment) (model.Appointment, error) {
	var out event
	if err := b.do(ctx, http.MethodPost, b.eventsURL(src.ID), b.fromAppointment(ap), &out); err != nil {
		return model.Appointment{}, fmt.Errorf("create event in %s: %w", src.Name, err)
	}
	return b.toAppointment(src.Name, out)
}

// Update replaces the event ap.ID in src and returns the stored appointment.
func (b *Backend) Update(ctx context.Context, src model.CalendarSource, ap model.Appointment) (model.Appointment, error) {
	if ap.ID == "" {
		return model.Appointment{}, fmt.Errorf("update event in %s: missing event id", src.Name)
	}
	var out event
	if err := b.do(ctx, http.MethodPut, b.eventsURL(src.ID)+"/"+url.PathEscape(ap.ID), b.fromAppointment(ap), &out); err != nil {
		return model.Appointment{}, fmt.Errorf("update event %s in %s: %w", ap.ID, src.Name, err)
	}
	return b.toAppointment(src.Name, out)
}

// Delete removes the event id from src.
func (b *Backend) Delete(ctx context.Context, src model.CalendarSource, id string) error {
	if err := b.do(ctx, http.MethodDelete, b.eventsURL(src.ID)+"/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete event %s in %s: %w", id, src.Name, err)
	}
	return nil
}

func (b *Backend) eventsURL(calendarID string) string {
	return b.baseURL + "/calendars/" + url.PathEscape(calendarID) + "/events"
}

func (b *Backend) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	code, data, err := b.fetcher.Send(req)
	if err != nil {
		return err
	}
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, model.ErrNotFound)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%s %s: status %d: %w", method, req.URL.Path, code, model.ErrAuthFailed)
	case code < 200 || code > 299:
		return &fetcher.StatusError{Method: method, URL: req.URL.Path, Code: code}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w: %w", model.ErrInvalidResponse, err)
	}
	return nil
}

func (b *Backend) toAppointment(calendar string, ev event) (model.Appointment, error) {
	start, wholeDay, err := parseEventTime(ev.Start)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("event %s start: %w", ev.ID, err)
	}
	var end time.Time
	if ev.End != (eventTime{}) {
		if end, _, err = parseEventTime(ev.End); err != nil {
			return model.Appointment{}, fmt.Errorf("event %s end: %w", ev.ID, err)
		}
	}

	ap := model.Appointment{
		ID:          ev.ID,
		Calendar:    calendar,
		Title:       ev.Summary,
		Start:       start,
		End:         end,
		WholeDay:    wholeDay,
		Recurring:   ev.RecurringEventID != "" || len(ev.Recurrence) > 0,
		Tentative:   strings.EqualFold(ev.Status, "tentative"),
		Description: ev.Description,
		Location:    ev.Location,
	}
	return ap.Normalized(b.display, b.display), nil
}

func (b *Backend) fromAppointment(ap model.Appointment) event {
	ev := event{
		ID:          ap.ID,
		Summary:     ap.Title,
		Description: ap.Description,
		Location:    ap.Location,
	}
	if ap.Tentative {
		ev.Status = "tentative"
	}
	if ap.WholeDay {
		ev.Start = eventTime{Date: ap.Start.Format(dates.Layout)}
		ev.End = eventTime{Date: ap.End.Format(dates.Layout)}
		return ev
	}
	zone := b.display.String()
	ev.Start = eventTime{DateTime: ap.Start.In(b.display).Format(time.RFC3339), TimeZone: zone}
	ev.End = eventTime{DateTime: ap.End.In(b.display).Format(time.RFC3339), TimeZone: zone}
	return ev
}

// parseEventTime reads either a date-only or a zoned date-time value. A
// date-time without offset is read in its timeZone, or UTC.
func parseEventTime(t eventTime) (time.Time, bool, error) {
	if t.Date != "" {
		d, err := dates.Parse(t.Date)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %w", model.ErrInvalidResponse, err)
		}
		return d, true, nil
	}
	if t.DateTime == "" {
		return time.Time{}, false, fmt.Errorf("no date or dateTime: %w", model.ErrInvalidResponse)
	}
	if ts, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
		return ts, false, nil
	}

	loc := time.UTC
	if t.TimeZone != "" {
		l, err := time.LoadLocation(t.TimeZone)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("time zone %q: %w: %w", t.TimeZone, model.ErrInvalidResponse, err)
		}
		loc = l
	}
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", t.DateTime, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %w", model.ErrInvalidResponse, err)
	}
	return ts, false, nil
}
