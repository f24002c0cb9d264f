package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"homeboard/internal/calendar"
	"homeboard/internal/model"
)

const (
	notConfigured = "Diese Funktion ist nicht konfiguriert."
	historyLimit  = 20
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Willkommen beim Haushalts-Dashboard!

Abfuhrtermine, Wertstoffhof, Kalender und DNS-Filter an einem Ort.

Mit /help gibt es die vollständige Befehlsübersicht.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Abfall:
/muell: Abfuhrtermine der nächsten Monate
/woche: Abfuhr in dieser Woche
/wertstoffhof: Öffnungszeiten des Wertstoffhofs
/hinweise: aktuelle Hinweise zur Abfuhr

Termine:
/kalender [Tage]: Termine aller Kalender
/arbeit [Tage]: Termine aus dem Arbeitskalender

DNS-Filter:
/dns: aktueller Zustand
/dns_off <Minuten>: Filter auf beiden Geräten pausieren

/health [fehler|verlauf]: Zustand der Datenquellen`)
}

func (b *Bot) handleSchedule(ctx context.Context, chatID int64) {
	if b.svc.Waste == nil {
		b.reply(chatID, notConfigured)
		return
	}
	events, err := b.svc.Waste.Schedule(ctx, b.cfg.Waste.Months)
	if err != nil {
		b.log.Error("waste schedule", "error", err)
		b.reply(chatID, FormatError("Abfuhrtermine", err))
		return
	}
	b.reply(chatID, FormatSchedule(events, b.svc.Waste.Today()))
}

func (b *Bot) handleWeek(ctx context.Context, chatID int64) {
	if b.svc.Waste == nil {
		b.reply(chatID, notConfigured)
		return
	}
	events, err := b.svc.Waste.ThisWeek(ctx)
	if err != nil {
		b.log.Error("waste week", "error", err)
		b.reply(chatID, FormatError("Abfuhrtermine", err))
		return
	}
	b.reply(chatID, FormatWeek(events))
}

func (b *Bot) handleOpeningHours(ctx context.Context, chatID int64) {
	if b.svc.RecyclingCenter == nil {
		b.reply(chatID, notConfigured)
		return
	}
	hours, err := b.svc.RecyclingCenter.OpeningHours(ctx)
	if err != nil {
		b.log.Error("opening hours", "error", err)
		b.reply(chatID, FormatError("Öffnungszeiten", err))
		return
	}
	b.reply(chatID, FormatOpeningHours(hours, b.now().In(b.cfg.Location()).Year()))
}

func (b *Bot) handleNotices(ctx context.Context, chatID int64) {
	if b.svc.Notices == nil {
		b.reply(chatID, notConfigured)
		return
	}
	notices, err := b.svc.Notices.Notices(ctx)
	if err != nil {
		b.log.Error("notices", "error", err)
		b.reply(chatID, FormatError("Hinweise", err))
		return
	}
	b.reply(chatID, FormatNotices(notices))
}

func (b *Bot) handleCalendars(ctx context.Context, chatID int64, args string) {
	if b.svc.Calendars == nil {
		b.reply(chatID, notConfigured)
		return
	}
	days, err := ParseDays(args, b.cfg.Calendar.Days)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Verwendung: /kalender [Tage], 1 bis %d", maxDays))
		return
	}
	res := b.svc.Calendars.Collect(ctx, b.cfg.Calendar.Sources, days)
	b.reply(chatID, FormatAgenda(fmt.Sprintf("Termine der nächsten %d Tage", days), res.Days, res.Failed))
}

func (b *Bot) handleWork(ctx context.Context, chatID int64, args string) {
	if b.svc.Work == nil {
		b.reply(chatID, notConfigured)
		return
	}
	days, err := ParseDays(args, b.cfg.Work.Days)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Verwendung: /arbeit [Tage], 1 bis %d", maxDays))
		return
	}
	appts, err := b.svc.Work.Appointments(ctx, days)
	if err != nil {
		b.log.Error("work appointments", "error", err)
		b.reply(chatID, FormatError("Arbeitskalender", err))
		return
	}
	b.reply(chatID, FormatAgenda(fmt.Sprintf("Arbeit, nächste %d Tage", days), calendar.GroupByDate(appts), nil))
}

func (b *Bot) handleDNS(ctx context.Context, chatID int64) {
	if b.svc.DNS == nil {
		b.reply(chatID, notConfigured)
		return
	}
	status, err := b.svc.DNS.Status(ctx)
	if err != nil {
		b.log.Error("dns status", "error", err)
		b.reply(chatID, FormatError("DNS-Filter", err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatBlocking(status))
	if status.Blocking {
		msg.ReplyMarkup = dnsKeyboard()
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send dns status", "error", err)
	}
}

func (b *Bot) handleDNSOff(ctx context.Context, chatID int64, args string) {
	if b.svc.DNS == nil {
		b.reply(chatID, notConfigured)
		return
	}
	d, err := ParseMinutes(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Verwendung: /dns_off <Minuten>, 1 bis %d", maxMinutes))
		return
	}
	status, err := b.svc.DNS.DisableFor(ctx, d)
	if err != nil {
		b.log.Error("dns disable", "duration", d, "error", err)
		b.reply(chatID, FormatError("DNS-Filter", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("DNS-Filter auf beiden Geräten für %d Minuten pausiert.\n%s", int(d.Minutes()), FormatBlocking(status)))
}

func (b *Bot) handleHealth(ctx context.Context, chatID int64, args string) {
	if b.svc.Journal == nil {
		b.reply(chatID, notConfigured)
		return
	}

	var checks []model.SourceCheck
	var err error
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "":
		checks, err = b.svc.Journal.LatestChecks(ctx)
	case "fehler":
		checks, err = b.svc.Journal.LastFailures(ctx)
		if err == nil && len(checks) == 0 {
			b.reply(chatID, "Alle Quellen in Ordnung.")
			return
		}
	case "verlauf":
		checks, err = b.svc.Journal.ListChecks(ctx, historyLimit)
	default:
		b.reply(chatID, "Verwendung: /health [fehler|verlauf]")
		return
	}
	if err != nil {
		b.log.Error("read journal", "args", args, "error", err)
		b.reply(chatID, "Zustand konnte nicht gelesen werden.")
		return
	}
	b.reply(chatID, FormatChecks(checks, b.cfg.Location()))
}
