// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Zone database for TIMEZONE validation.

	"github.com/joho/godotenv"

	"homeboard/internal/model"
)

// Defaults for the waste company of the household.
const (
	DefaultWasteAPIURL        = "https://muelheim-abfallapp.regioit.de/abfall-app-muelheim/rest/"
	DefaultWasteRegion        = "Mülheim"
	DefaultRecyclingCenterURL = "https://www.mheg.de/fuer-privathaushalte/entsorgung/wertstoffhof/"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	NotifyChatID     int64
	AllowedUsers     []int64
	DatabasePath     string
	LogLevel         string
	MetricsAddr      string
	Timezone         string
	RefreshInterval  time.Duration

	Waste    Waste
	Pihole   Pihole
	Calendar Calendar
	Work     Work
}

// Waste configures the waste schedule, notices and recycling centre.
type Waste struct {
	APIURL             string
	Region             string
	Street             string
	HouseNumber        string
	Months             int
	NewsURL            string
	RecyclingCenterURL string
}

// Enabled reports whether an address is configured.
func (w Waste) Enabled() bool { return w.Street != "" && w.HouseNumber != "" }

// Pihole configures the primary and backup appliance.
type Pihole struct {
	PrimaryURL      string
	PrimaryPassword string
	BackupURL       string
	BackupPassword  string
	InsecureTLS     bool
}

// Enabled reports whether the appliances are configured.
func (p Pihole) Enabled() bool { return p.PrimaryURL != "" }

// Calendar configures the scheduling backend.
type Calendar struct {
	APIURL  string
	Token   string
	Sources []model.CalendarSource
	Workers int
	Days    int
}

// Enabled reports whether any calendar is configured.
func (c Calendar) Enabled() bool { return c.APIURL != "" && len(c.Sources) > 0 }

// Work configures the work ICS feed.
type Work struct {
	URL  string
	Days int
}

// Enabled reports whether the feed is configured.
func (w Work) Enabled() bool { return w.URL != "" }

// Load reads configuration from environment variables. A .env file in the
// working directory is read first; variables already set take precedence.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	var errs []error
	p := parser{errs: &errs}

	cfg := &Config{
		TelegramBotToken: token,
		NotifyChatID:     p.number("NOTIFY_CHAT_ID", 0),
		AllowedUsers:     p.ids("ALLOWED_USERS"),
		DatabasePath:     envOrDefault("DATABASE_PATH", ":memory:"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
		Timezone:         envOrDefault("TIMEZONE", "Europe/Berlin"),
		RefreshInterval:  p.duration("REFRESH_INTERVAL", 5*time.Minute),
		Waste: Waste{
			APIURL:             envOrDefault("WASTE_API_URL", DefaultWasteAPIURL),
			Region:             envOrDefault("WASTE_REGION", DefaultWasteRegion),
			Street:             os.Getenv("WASTE_STREET"),
			HouseNumber:        os.Getenv("WASTE_HOUSE_NUMBER"),
			Months:             p.positive("WASTE_MONTHS", 2),
			NewsURL:            os.Getenv("WASTE_NEWS_URL"),
			RecyclingCenterURL: envOrDefault("RECYCLING_CENTER_URL", DefaultRecyclingCenterURL),
		},
		Pihole: Pihole{
			PrimaryURL:      os.Getenv("PIHOLE_PRIMARY_URL"),
			PrimaryPassword: os.Getenv("PIHOLE_PRIMARY_PASSWORD"),
			BackupURL:       os.Getenv("PIHOLE_BACKUP_URL"),
			BackupPassword:  os.Getenv("PIHOLE_BACKUP_PASSWORD"),
			InsecureTLS:     p.boolean("PIHOLE_INSECURE_TLS"),
		},
		Calendar: Calendar{
			APIURL:  os.Getenv("CALENDAR_API_URL"),
			Token:   os.Getenv("CALENDAR_API_TOKEN"),
			Sources: p.calendars("CALENDARS"),
			Workers: p.positive("CALENDAR_WORKERS", 6),
			Days:    p.positive("CALENDAR_DAYS", 14),
		},
		Work: Work{
			URL:  os.Getenv("WORK_ICS_URL"),
			Days: p.positive("WORK_DAYS", 7),
		},
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err))
	}
	if (cfg.Pihole.PrimaryURL == "") != (cfg.Pihole.BackupURL == "") {
		errs = append(errs, errors.New("PIHOLE_PRIMARY_URL and PIHOLE_BACKUP_URL must be set together"))
	}
	if cfg.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", cfg.RefreshInterval))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parser reads typed values and collects every problem instead of stopping
// at the first.
type parser struct {
	errs *[]error
}

func (p parser) fail(err error) {
	*p.errs = append(*p.errs, err)
}

func (p parser) number(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	return v
}

func (p parser) positive(key string, def int) int {
	v := p.number(key, int64(def))
	if v <= 0 {
		p.fail(fmt.Errorf("%s must be positive, got %d", key, v))
		return def
	}
	return int(v)
}

func (p parser) boolean(key string) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, raw, err))
	}
	return v
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s %q: %w", key, raw, err))
		return def
	}
	return v
}

func (p parser) ids(key string) []int64 {
	var ids []int64
	for _, s := range strings.Split(os.Getenv(key), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			p.fail(fmt.Errorf("invalid user ID %q in %s: %w", s, key, err))
			continue
		}
		ids = append(ids, uid)
	}
	return ids
}

// calendars parses "Name=id,Name=id". Names must be unique.
func (p parser) calendars(key string) []model.CalendarSource {
	var sources []model.CalendarSource
	for _, entry := range strings.Split(os.Getenv(key), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, id, ok := strings.Cut(entry, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			p.fail(fmt.Errorf("invalid calendar %q in %s: want Name=id", entry, key))
			continue
		}
		if slices.ContainsFunc(sources, func(s model.CalendarSource) bool { return s.Name == name }) {
			p.fail(fmt.Errorf("duplicate calendar name %q in %s", name, key))
			continue
		}
		sources = append(sources, model.CalendarSource{Name: name, ID: id})
	}
	return sources
}
