package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"homeboard/internal/bot"
	"homeboard/internal/config"
	"homeboard/internal/dates"
	"homeboard/internal/model"
	"homeboard/internal/storage"
	"homeboard/internal/waste"
)

const (
	// ReminderHour is the local hour from which the reminder for the next
	// day's collections is sent.
	ReminderHour = 17
	// Retention is how long journal entries are kept.
	Retention = 7 * 24 * time.Hour

	primedKey = "notices:primed"
)

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Observer receives refresh outcomes, typically to export metrics.
type Observer interface {
	ObserveCheck(source string, err error, d time.Duration)
	ObserveCalendarFailures(calendars []string)
	ObserveNotifications(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveCheck(string, error, time.Duration) {}
func (nopObserver) ObserveCalendarFailures([]string)          {}
func (nopObserver) ObserveNotifications(int)                  {}

// Scheduler periodically refreshes every configured source, journals the
// outcome and pushes collection reminders and new notices.
type Scheduler struct {
	store     storage.Storage
	svc       bot.Services
	cfg       *config.Config
	sender    Sender
	log       *slog.Logger
	obs       Observer
	tick      time.Duration
	sendDelay time.Duration
	now       func() time.Time
}

// New creates a Scheduler ticking at cfg.RefreshInterval.
func New(store storage.Storage, svc bot.Services, cfg *config.Config, sender Sender, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		svc:       svc,
		cfg:       cfg,
		sender:    sender,
		log:       log,
		obs:       nopObserver{},
		tick:      cfg.RefreshInterval,
		sendDelay: 50 * time.Millisecond,
		now:       time.Now,
	}
}

// SetTickInterval overrides the configured refresh interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetObserver installs o to receive refresh outcomes.
func (s *Scheduler) SetObserver(o Observer) {
	s.obs = o
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	runID := uuid.NewString()
	log := s.log.With("run_id", runID)
	log.Debug("refresh cycle started")

	if s.svc.Waste != nil {
		var events []model.CollectionEvent
		err := s.check(ctx, log, runID, "waste_schedule", func(ctx context.Context) (err error) {
			events, err = s.svc.Waste.Schedule(ctx, s.cfg.Waste.Months)
			return err
		})
		if err == nil {
			s.remind(ctx, log, events, s.svc.Waste.Today())
		}
	}

	if s.svc.RecyclingCenter != nil {
		_ = s.check(ctx, log, runID, "recycling_center", func(ctx context.Context) error {
			_, err := s.svc.RecyclingCenter.OpeningHours(ctx)
			return err
		})
	}

	if s.svc.Notices != nil {
		var notices []model.Notice
		err := s.check(ctx, log, runID, "waste_notices", func(ctx context.Context) (err error) {
			notices, err = s.svc.Notices.Notices(ctx)
			return err
		})
		if err == nil {
			s.announce(ctx, log, notices)
		}
	}

	if s.svc.Calendars != nil {
		started := time.Now()
		res := s.svc.Calendars.Collect(ctx, s.cfg.Calendar.Sources, s.cfg.Calendar.Days)
		took := time.Since(started)
		for _, src := range s.cfg.Calendar.Sources {
			s.record(ctx, log, runID, "calendar:"+src.Name, res.Errors[src.Name], took)
		}
		s.obs.ObserveCalendarFailures(res.Failed)
	}

	if s.svc.Work != nil {
		_ = s.check(ctx, log, runID, "work_calendar", func(ctx context.Context) error {
			_, err := s.svc.Work.Appointments(ctx, s.cfg.Work.Days)
			return err
		})
	}

	if s.svc.DNS != nil {
		_ = s.check(ctx, log, runID, "pihole", func(ctx context.Context) error {
			_, err := s.svc.DNS.Status(ctx)
			return err
		})
	}

	n, err := s.store.PruneChecks(ctx, s.now().Add(-Retention))
	if err != nil {
		log.Error("prune checks", "error", err)
	} else if n > 0 {
		log.Debug("pruned checks", "count", n)
	}
}

func (s *Scheduler) check(ctx context.Context, log *slog.Logger, runID, source string, fn func(context.Context) error) error {
	started := time.Now()
	err := fn(ctx)
	s.record(ctx, log, runID, source, err, time.Since(started))
	return err
}

func (s *Scheduler) record(ctx context.Context, log *slog.Logger, runID, source string, err error, took time.Duration) {
	s.obs.ObserveCheck(source, err, took)

	c := model.SourceCheck{
		RunID:     runID,
		Source:    source,
		OK:        err == nil,
		ErrorKind: model.Kind(err),
		Duration:  took,
		CheckedAt: s.now(),
	}
	if err != nil {
		c.Message = err.Error()
		log.Warn("source check failed", "source", source, "kind", c.ErrorKind, "error", err)
	}
	if err := s.store.RecordCheck(ctx, &c); err != nil {
		log.Error("record check", "source", source, "error", err)
	}
}

// remind sends tomorrow's collections once per category after ReminderHour.
func (s *Scheduler) remind(ctx context.Context, log *slog.Logger, events []model.CollectionEvent, today time.Time) {
	if s.cfg.NotifyChatID == 0 || s.now().In(s.cfg.Location()).Hour() < ReminderHour {
		return
	}
	tomorrow := today.AddDate(0, 0, 1)

	var due []model.CollectionEvent
	var keys []string
	for _, e := range waste.Window(events, tomorrow, tomorrow) {
		key := "collection:" + e.Date.Format(dates.Layout) + ":" + e.Category.String()
		sent, err := s.store.IsSent(ctx, key)
		if err != nil {
			log.Error("check sent", "key", key, "error", err)
			continue
		}
		if !sent {
			due = append(due, e)
			keys = append(keys, key)
		}
	}
	if len(due) == 0 {
		return
	}

	s.sender.SendMessage(s.cfg.NotifyChatID, bot.FormatReminder(due))
	s.obs.ObserveNotifications(1)
	for _, key := range keys {
		if err := s.store.MarkSent(ctx, key); err != nil {
			log.Error("mark sent", "key", key, "error", err)
		}
	}
	log.Info("sent collection reminder", "date", tomorrow.Format(dates.Layout), "count", len(due))
}

// announce pushes notices not sent before. The first run only records the
// current notices so that a fresh journal does not flood the chat.
func (s *Scheduler) announce(ctx context.Context, log *slog.Logger, notices []model.Notice) {
	if s.cfg.NotifyChatID == 0 {
		return
	}
	primed, err := s.store.IsSent(ctx, primedKey)
	if err != nil {
		log.Error("check sent", "key", primedKey, "error", err)
		return
	}

	sent := 0
	for _, n := range notices {
		if ctx.Err() != nil {
			return
		}
		key := "notice:" + n.GUID
		seen, err := s.store.IsSent(ctx, key)
		if err != nil {
			log.Error("check sent", "key", key, "error", err)
			continue
		}
		if seen {
			continue
		}

		if primed {
			s.sender.SendMessage(s.cfg.NotifyChatID, bot.FormatNotice(n))
			sent++
			// Rate limit: ~20 messages/sec max for Telegram
			time.Sleep(s.sendDelay)
		}
		if err := s.store.MarkSent(ctx, key); err != nil {
			log.Error("mark sent", "key", key, "error", err)
		}
	}

	if !primed {
		if err := s.store.MarkSent(ctx, primedKey); err != nil {
			log.Error("mark sent", "key", primedKey, "error", err)
		}
		log.Info("recorded existing notices", "count", len(notices))
		return
	}
	if sent > 0 {
		s.obs.ObserveNotifications(sent)
		log.Info("sent notices", "count", sent)
	}
}
