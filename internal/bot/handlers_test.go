package bot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"homeboard/internal/model"
)

func TestParseDays(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    int
		wantErr bool
	}{
		{name: "empty uses default", args: "", want: 14},
		{name: "explicit", args: "3", want: 3},
		{name: "extra words ignored", args: "7 bitte", want: 7},
		{name: "upper bound", args: "60", want: 60},
		{name: "zero", args: "0", wantErr: true},
		{name: "too many", args: "61", wantErr: true},
		{name: "not a number", args: "viele", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDays(tt.args, 14)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseDays() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    time.Duration
		wantErr bool
	}{
		{name: "minutes", args: "30", want: 30 * time.Minute},
		{name: "one day", args: "1440", want: 24 * time.Hour},
		{name: "missing", args: "", wantErr: true},
		{name: "negative", args: "-5", wantErr: true},
		{name: "too long", args: "1441", wantErr: true},
		{name: "not a number", args: "kurz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMinutes(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseMinutes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func date(month time.Month, day int) time.Time {
	return time.Date(2026, month, day, 0, 0, 0, 0, time.UTC)
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", fmt.Errorf("get: %w", model.ErrTimeout), "nicht rechtzeitig"},
		{"unreachable", model.ErrUnreachable, "nicht erreichbar"},
		{"not found", model.ErrNotFound, "Nicht gefunden"},
		{"auth", model.ErrAuthFailed, "Anmeldung fehlgeschlagen"},
		{"consistency", fmt.Errorf("backup diverged: %w", model.ErrConsistency), "unterschiedliche Zustände"},
		{"invalid", model.ErrInvalidResponse, "Ungültige Antwort"},
		{"other", fmt.Errorf("boom"), "Unerwarteter Fehler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatError("Abfuhrtermine", tt.err)
			if !strings.HasPrefix(got, "Abfuhrtermine: ") || !strings.Contains(got, tt.want) {
				t.Errorf("FormatError() = %q, want prefix and %q", got, tt.want)
			}
		})
	}
}

func TestFormatSchedule(t *testing.T) {
	today := date(10, 16)
	events := []model.CollectionEvent{
		{ID: 1, Category: model.CategoryResidual, Date: date(10, 16)},
		{ID: 2, Category: model.CategoryPaper, Date: date(10, 17)},
		{ID: 3, Category: model.CategoryOrganic, Date: date(10, 22)},
	}

	want := "Abfuhrtermine:\n" +
		"\nFr., 16.10.2026  Restmüll (heute)" +
		"\nSa., 17.10.2026  Papier (morgen)" +
		"\nDo., 22.10.2026  Biotonne (in 6 Tagen)"
	if diff := cmp.Diff(want, FormatSchedule(events, today)); diff != "" {
		t.Errorf("FormatSchedule() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("Keine Abfuhrtermine im gewählten Zeitraum.", FormatSchedule(nil, today)); diff != "" {
		t.Errorf("FormatSchedule(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatWeek(t *testing.T) {
	events := []model.CollectionEvent{
		{Category: model.CategoryPaper, Date: date(10, 20)},
		{Category: model.CategoryPackaging, Date: date(10, 20)},
		{Category: model.CategoryResidual, Date: date(10, 23)},
	}

	want := "Abfuhr diese Woche:\n" +
		"\nDi., 20.10.2026\n  • Papier\n  • Gelbe Tonne\n" +
		"\nFr., 23.10.2026\n  • Restmüll"
	if diff := cmp.Diff(want, FormatWeek(events)); diff != "" {
		t.Errorf("FormatWeek() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("Diese Woche keine Abfuhr.", FormatWeek(nil)); diff != "" {
		t.Errorf("FormatWeek(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatReminder(t *testing.T) {
	got := FormatReminder([]model.CollectionEvent{
		{Category: model.CategoryPaper, Date: date(10, 17)},
		{Category: model.CategoryOrganic, Date: date(10, 17)},
	})
	want := "Erinnerung: Morgen (Sa., 17.10.2026) wird abgeholt: Papier, Biotonne"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FormatReminder() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatOpeningHours(t *testing.T) {
	hours := model.OpeningHours{
		Regular: map[string]string{
			"Montag, Mittwoch und Freitag": "8.00 bis 17.00 Uhr",
			"Dienstag und Donnerstag":      "8.00 bis 19.00 Uhr",
		},
		Saturdays: map[int][]string{2026: {"3. Januar", "7. Februar"}},
	}

	want := "Wertstoffhof Öffnungszeiten:\n" +
		"\nDienstag und Donnerstag: 8.00 bis 19.00 Uhr" +
		"\nMontag, Mittwoch und Freitag: 8.00 bis 17.00 Uhr" +
		"\n\nZusätzliche Samstage 2026:\n3. Januar, 7. Februar"
	if diff := cmp.Diff(want, FormatOpeningHours(hours, 2026)); diff != "" {
		t.Errorf("FormatOpeningHours() mismatch (-want +got):\n%s", diff)
	}

	if got := FormatOpeningHours(hours, 2027); strings.Contains(got, "Samstage") {
		t.Errorf("unexpected Saturdays for 2027:\n%s", got)
	}
	if diff := cmp.Diff("Keine Öffnungszeiten gefunden.", FormatOpeningHours(model.OpeningHours{}, 2026)); diff != "" {
		t.Errorf("empty mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatNotices(t *testing.T) {
	published := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	notices := []model.Notice{
		{GUID: "n1", Title: "Abfuhr verschoben", Link: "https://example.org/n1", Published: &published},
		{GUID: "n2", Title: "Weihnachtsbäume"},
	}

	want := "Hinweise zur Abfuhr:\n" +
		"\n• Abfuhr verschoben (12.10.2026)\n  https://example.org/n1" +
		"\n• Weihnachtsbäume"
	if diff := cmp.Diff(want, FormatNotices(notices)); diff != "" {
		t.Errorf("FormatNotices() mismatch (-want +got):\n%s", diff)
	}

	single := FormatNotice(model.Notice{Title: "Abfuhr verschoben", Summary: "Wegen des Feiertags.", Link: "https://example.org/n1"})
	wantSingle := "[Abfallhinweis]\n\nAbfuhr verschoben\n\nWegen des Feiertags.\n\nhttps://example.org/n1"
	if diff := cmp.Diff(wantSingle, single); diff != "" {
		t.Errorf("FormatNotice() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatAgenda(t *testing.T) {
	days := []model.DateGroup{
		{Date: date(10, 17), Appointments: []model.Appointment{
			{Calendar: "Familie", Title: "Flohmarkt", WholeDay: true},
			{Calendar: "Familie", Title: "Training", StartTime: "17:00", EndTime: "18:30", Recurring: true, Location: "Halle"},
		}},
		{Date: date(10, 19), Appointments: []model.Appointment{
			{Title: "Review", StartTime: "09:00", EndTime: "10:00", Tentative: true},
		}},
	}

	want := "Termine:\n" +
		"\nSa., 17.10.2026\n" +
		"  Ganztägig  Flohmarkt [Familie]\n" +
		"  17:00–18:30  Training [Familie] @ Halle (wiederkehrend)\n" +
		"\nMo., 19.10.2026\n" +
		"  09:00–10:00  Review (vorläufig)\n" +
		"\nNicht verfügbar: Schule"
	if diff := cmp.Diff(want, FormatAgenda("Termine", days, []string{"Schule"})); diff != "" {
		t.Errorf("FormatAgenda() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff("Arbeit:\n\nKeine Termine.", FormatAgenda("Arbeit", nil, nil)); diff != "" {
		t.Errorf("empty agenda mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatBlocking(t *testing.T) {
	timer := 90 * time.Second
	tests := []struct {
		name   string
		status model.BlockingStatus
		want   string
	}{
		{"active", model.BlockingStatus{Blocking: true}, "DNS-Filter: aktiv"},
		{"paused with timer", model.BlockingStatus{Timer: &timer}, "DNS-Filter: pausiert, aktiv in 1m30s"},
		{"paused", model.BlockingStatus{}, "DNS-Filter: pausiert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatBlocking(tt.status)); diff != "" {
				t.Errorf("FormatBlocking() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatChecks(t *testing.T) {
	checks := []model.SourceCheck{
		{Source: "calendar:Schule", ErrorKind: "auth", Duration: 1500 * time.Millisecond, CheckedAt: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)},
		{Source: "waste_schedule", OK: true, Duration: 120 * time.Millisecond, CheckedAt: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)},
	}

	want := "Zustand der Quellen:\n" +
		"\ncalendar:Schule: FEHLER (auth), 16.10. 08:00, 1.5s" +
		"\nwaste_schedule: OK, 16.10. 08:00, 120ms"
	if diff := cmp.Diff(want, FormatChecks(checks, time.UTC)); diff != "" {
		t.Errorf("FormatChecks() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("Noch keine Prüfungen.", FormatChecks(nil, time.UTC)); diff != "" {
		t.Errorf("empty mismatch (-want +got):\n%s", diff)
	}
}
