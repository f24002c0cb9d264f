package icsfeed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/go-cmp/cmp"

	"homeboard/internal/fetcher"
	"homeboard/internal/model"
)

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", path, err)
	}
	return string(data)
}

func newTestFeed(t *testing.T, url string, client fetcher.HTTPClient) *Feed {
	t.Helper()
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return New(fetcher.New(client), Config{
		URL:      url,
		Calendar: "Arbeit",
		Display:  berlin,
		Now:      func() time.Time { return testNow },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func utc(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2026, month, day, hour, minute, 0, 0, time.UTC)
}

func TestNormalize(t *testing.T) {
	cal, err := ics.ParseCalendar(strings.NewReader(loadFixture(t, "../../testdata/work.ics")))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	f := newTestFeed(t, "", http.DefaultClient)

	got := f.Normalize(cal, testNow, 7)

	want := []model.Appointment{
		{
			ID: "w5", Calendar: "Arbeit", Title: model.DefaultTitle,
			Start: utc(10, 16, 8, 0), End: utc(10, 16, 9, 0),
			StartDate: utc(10, 16, 0, 0), EndDate: utc(10, 16, 0, 0),
			StartTime: "10:00", EndTime: "11:00",
		},
		{
			ID: "w3", Calendar: "Arbeit", Title: "Review, Q4",
			Start: utc(10, 17, 12, 0), End: utc(10, 17, 13, 0),
			StartDate: utc(10, 17, 0, 0), EndDate: utc(10, 17, 0, 0),
			StartTime: "14:00", EndTime: "15:00",
			Tentative:   true,
			Description: "Agenda:\nPunkt 1, Laufwerk C:\\neu",
			Location:    "Raum 2; OG",
		},
		{
			ID: "w1", Calendar: "Arbeit", Title: "Standup",
			Start: utc(10, 19, 7, 30), End: utc(10, 19, 7, 45),
			StartDate: utc(10, 19, 0, 0), EndDate: utc(10, 19, 0, 0),
			StartTime: "09:30", EndTime: "09:45",
			Recurring: true,
		},
		{
			ID: "w2", Calendar: "Arbeit", Title: "Betriebsausflug",
			Start: utc(10, 21, 0, 0), End: utc(10, 22, 0, 0),
			StartDate: utc(10, 21, 0, 0), EndDate: utc(10, 22, 0, 0),
			WholeDay: true,
		},
		{
			ID: "w8", Calendar: "Arbeit", Title: "Kundentermin",
			Start: utc(10, 22, 14, 0), End: utc(10, 22, 15, 0),
			StartDate: utc(10, 22, 0, 0), EndDate: utc(10, 22, 0, 0),
			StartTime: "16:00", EndTime: "17:00",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeWholeDayWithoutEnd(t *testing.T) {
	doc := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:x\r\nSUMMARY:Urlaub\r\nDTSTART;VALUE=DATE:20261020\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	cal, err := ics.ParseCalendar(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got := newTestFeed(t, "", http.DefaultClient).Normalize(cal, testNow, 7)
	if len(got) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(got))
	}
	ap := got[0]
	if !ap.WholeDay {
		t.Error("expected whole-day appointment")
	}
	if ap.StartTime != "" || ap.EndTime != "" {
		t.Errorf("expected empty times, got %q and %q", ap.StartTime, ap.EndTime)
	}
	if diff := cmp.Diff(ap.Start, ap.End); diff != "" {
		t.Errorf("end should default to start (-want +got):\n%s", diff)
	}
}

func TestNormalizeWindowEdges(t *testing.T) {
	doc := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\nUID:today\r\nDTSTART:20261016T000000Z\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:last\r\nDTSTART:20261023T235900Z\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:after\r\nDTSTART:20261024T000000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	cal, err := ics.ParseCalendar(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var ids []string
	for _, ap := range newTestFeed(t, "", http.DefaultClient).Normalize(cal, testNow, 7) {
		ids = append(ids, ap.ID)
	}
	if diff := cmp.Diff([]string{"today", "last"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestAppointments(t *testing.T) {
	doc := loadFixture(t, "../../testdata/work.ics")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, doc)
	}))
	defer srv.Close()

	got, err := newTestFeed(t, srv.URL, srv.Client()).Appointments(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	for _, ap := range got {
		ids = append(ids, ap.ID)
	}
	if diff := cmp.Diff([]string{"w5", "w3"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchErrors(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		f := newTestFeed(t, srv.URL, srv.Client())
		f.timeout = 20 * time.Millisecond
		if _, err := f.Fetch(context.Background()); !errors.Is(err, model.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		if _, err := newTestFeed(t, srv.URL, srv.Client()).Fetch(context.Background()); !errors.Is(err, model.ErrInvalidResponse) {
			t.Fatalf("expected ErrInvalidResponse, got %v", err)
		}
	})
}
