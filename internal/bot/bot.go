package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"homeboard/internal/calendar"
	"homeboard/internal/config"
	"homeboard/internal/model"
	"homeboard/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// WasteService provides collection dates for the configured address.
type WasteService interface {
	Schedule(ctx context.Context, months int) ([]model.CollectionEvent, error)
	ThisWeek(ctx context.Context) ([]model.CollectionEvent, error)
	Today() time.Time
}

// OpeningHoursService provides the recycling centre's opening hours.
type OpeningHoursService interface {
	OpeningHours(ctx context.Context) (model.OpeningHours, error)
}

// NoticeService provides the waste company's notices.
type NoticeService interface {
	Notices(ctx context.Context) ([]model.Notice, error)
}

// CalendarService merges the configured calendars.
type CalendarService interface {
	Collect(ctx context.Context, sources []model.CalendarSource, daysAhead int) calendar.Result
}

// WorkService provides the appointments of the work feed.
type WorkService interface {
	Appointments(ctx context.Context, daysAhead int) ([]model.Appointment, error)
}

// DNSService controls the redundant DNS filter.
type DNSService interface {
	Status(ctx context.Context) (model.BlockingStatus, error)
	DisableFor(ctx context.Context, d time.Duration) (model.BlockingStatus, error)
}

// Services are the backends behind the commands. A nil service makes its
// commands answer that the feature is not configured.
type Services struct {
	Waste           WasteService
	RecyclingCenter OpeningHoursService
	Notices         NoticeService
	Calendars       CalendarService
	Work            WorkService
	DNS             DNSService
	Journal         storage.Storage
}

// Bot is the Telegram front end of the dashboard.
type Bot struct {
	api telegramAPI
	cfg *config.Config
	svc Services
	log *slog.Logger
	now func() time.Time
}

// New creates a Bot with the given Telegram token.
func New(token string, cfg *config.Config, svc Services, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api: api,
		cfg: cfg,
		svc: svc,
		log: log,
		now: time.Now,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Zugriff verweigert.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "muell":
		b.handleSchedule(ctx, chatID)
	case "woche":
		b.handleWeek(ctx, chatID)
	case "wertstoffhof":
		b.handleOpeningHours(ctx, chatID)
	case "hinweise":
		b.handleNotices(ctx, chatID)
	case "kalender":
		b.handleCalendars(ctx, chatID, args)
	case "arbeit":
		b.handleWork(ctx, chatID, args)
	case cmdDNS:
		b.handleDNS(ctx, chatID)
	case cmdDNSOff:
		b.handleDNSOff(ctx, chatID, args)
	case "health":
		b.handleHealth(ctx, chatID, args)
	default:
		b.reply(chatID, "Unbekannter Befehl. /help zeigt alle Befehle.")
	}
}
