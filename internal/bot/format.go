package bot

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"homeboard/internal/dates"
	"homeboard/internal/model"
)

const wholeDay = "Ganztägig"

// FormatError renders err for the user by its class. what names the thing
// that could not be loaded, e.g. "Abfuhrtermine".
func FormatError(what string, err error) string {
	switch model.Kind(err) {
	case "timeout":
		return fmt.Sprintf("%s: Der Dienst hat nicht rechtzeitig geantwortet. Bitte später erneut versuchen.", what)
	case "unreachable":
		return fmt.Sprintf("%s: Der Dienst ist nicht erreichbar.", what)
	case "not_found":
		return fmt.Sprintf("%s: Nicht gefunden. Bitte die Konfiguration prüfen.", what)
	case "auth":
		return fmt.Sprintf("%s: Anmeldung fehlgeschlagen.", what)
	case "consistency":
		return fmt.Sprintf("%s: Die Geräte melden unterschiedliche Zustände. Bitte manuell prüfen.", what)
	case "invalid_response":
		return fmt.Sprintf("%s: Ungültige Antwort vom Dienst.", what)
	default:
		return fmt.Sprintf("%s: Unerwarteter Fehler.", what)
	}
}

// relativeDay describes how far date is from today.
func relativeDay(date, today time.Time) string {
	switch n := int(date.Sub(today).Hours() / 24); n {
	case 0:
		return "heute"
	case 1:
		return "morgen"
	default:
		return fmt.Sprintf("in %d Tagen", n)
	}
}

// FormatSchedule lists collection events with the distance from today.
func FormatSchedule(events []model.CollectionEvent, today time.Time) string {
	if len(events) == 0 {
		return "Keine Abfuhrtermine im gewählten Zeitraum."
	}
	var b strings.Builder
	b.WriteString("Abfuhrtermine:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "\n%s  %s (%s)", dates.GermanShort(e.Date), e.Category, relativeDay(e.Date, today))
	}
	return b.String()
}

// FormatWeek lists the collections of one week grouped by date.
func FormatWeek(events []model.CollectionEvent) string {
	if len(events) == 0 {
		return "Diese Woche keine Abfuhr."
	}
	var b strings.Builder
	b.WriteString("Abfuhr diese Woche:\n")
	var last time.Time
	for _, e := range events {
		if !e.Date.Equal(last) {
			fmt.Fprintf(&b, "\n%s\n", dates.GermanShort(e.Date))
			last = e.Date
		}
		fmt.Fprintf(&b, "  • %s\n", e.Category)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatReminder announces the collections of the next day.
func FormatReminder(events []model.CollectionEvent) string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Category.String())
	}
	return fmt.Sprintf("Erinnerung: Morgen (%s) wird abgeholt: %s",
		dates.GermanShort(events[0].Date), strings.Join(names, ", "))
}

// FormatOpeningHours renders regular hours and the extra Saturdays of year.
func FormatOpeningHours(h model.OpeningHours, year int) string {
	if len(h.Regular) == 0 && len(h.Saturdays) == 0 {
		return "Keine Öffnungszeiten gefunden."
	}
	var b strings.Builder
	b.WriteString("Wertstoffhof Öffnungszeiten:\n")

	days := make([]string, 0, len(h.Regular))
	for day := range h.Regular {
		days = append(days, day)
	}
	slices.Sort(days)
	for _, day := range days {
		fmt.Fprintf(&b, "\n%s: %s", day, h.Regular[day])
	}

	if sats := h.Saturdays[year]; len(sats) > 0 {
		fmt.Fprintf(&b, "\n\nZusätzliche Samstage %d:\n%s", year, strings.Join(sats, ", "))
	}
	return b.String()
}

// FormatNotices lists notices with their links.
func FormatNotices(notices []model.Notice) string {
	if len(notices) == 0 {
		return "Keine aktuellen Hinweise."
	}
	var b strings.Builder
	b.WriteString("Hinweise zur Abfuhr:\n")
	for _, n := range notices {
		fmt.Fprintf(&b, "\n• %s", n.Title)
		if n.Published != nil {
			fmt.Fprintf(&b, " (%s)", n.Published.Format("02.01.2006"))
		}
		if n.Link != "" {
			fmt.Fprintf(&b, "\n  %s", n.Link)
		}
	}
	return b.String()
}

// FormatNotice formats a single notice as a push message.
func FormatNotice(n model.Notice) string {
	var b strings.Builder
	b.WriteString("[Abfallhinweis]\n\n")
	b.WriteString(n.Title)
	if n.Summary != "" {
		b.WriteString("\n\n")
		b.WriteString(n.Summary)
	}
	if n.Link != "" {
		b.WriteString("\n\n")
		b.WriteString(n.Link)
	}
	return b.String()
}

// FormatAgenda renders appointments grouped by day. failed lists calendars
// that could not be loaded.
func FormatAgenda(title string, days []model.DateGroup, failed []string) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":\n")
	if len(days) == 0 {
		b.WriteString("\nKeine Termine.")
	}
	for _, day := range days {
		fmt.Fprintf(&b, "\n%s\n", dates.GermanShort(day.Date))
		for _, ap := range day.Appointments {
			b.WriteString("  ")
			b.WriteString(formatAppointment(ap))
			b.WriteString("\n")
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nNicht verfügbar: %s", strings.Join(failed, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAppointment(ap model.Appointment) string {
	when := wholeDay
	if !ap.WholeDay {
		when = ap.StartTime + "–" + ap.EndTime
	}
	line := fmt.Sprintf("%s  %s", when, ap.Title)
	if ap.Calendar != "" {
		line += " [" + ap.Calendar + "]"
	}
	if ap.Location != "" {
		line += " @ " + ap.Location
	}
	var flags []string
	if ap.Recurring {
		flags = append(flags, "wiederkehrend")
	}
	if ap.Tentative {
		flags = append(flags, "vorläufig")
	}
	if len(flags) > 0 {
		line += " (" + strings.Join(flags, ", ") + ")"
	}
	return line
}

// FormatBlocking describes the appliance state.
func FormatBlocking(s model.BlockingStatus) string {
	if s.Blocking {
		return "DNS-Filter: aktiv"
	}
	if s.Timer != nil {
		return fmt.Sprintf("DNS-Filter: pausiert, aktiv in %s", s.Timer.Round(time.Second))
	}
	return "DNS-Filter: pausiert"
}

// FormatChecks renders the newest check of every source.
func FormatChecks(checks []model.SourceCheck, loc *time.Location) string {
	if len(checks) == 0 {
		return "Noch keine Prüfungen."
	}
	var b strings.Builder
	b.WriteString("Zustand der Quellen:\n")
	for _, c := range checks {
		mark := "OK"
		if !c.OK {
			mark = "FEHLER (" + c.ErrorKind + ")"
		}
		fmt.Fprintf(&b, "\n%s: %s, %s, %s", c.Source, mark, c.CheckedAt.In(loc).Format("02.01. 15:04"), c.Duration.Round(time.Millisecond))
	}
	return b.String()
}
