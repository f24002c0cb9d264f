// Package waste resolves the household's waste collection schedule and
// related information published by the waste company.
package waste

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"homeboard/internal/cache"
	"homeboard/internal/dates"
	"homeboard/internal/fetcher"
	"homeboard/internal/model"
)

// DefaultTTL bounds staleness of every resolution stage.
const DefaultTTL = time.Minute

// Address identifies the household by upstream names.
type Address struct {
	Region      string
	Street      string
	HouseNumber string
}

// Config configures a Resolver.
type Config struct {
	BaseURL  string
	Address  Address
	TTL      time.Duration
	Location *time.Location
	Now      func() time.Time
}

type region struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type street struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	HouseNumbers []houseNumber `json:"hausNrList"`
}

type houseNumber struct {
	ID int64  `json:"id"`
	Nr string `json:"nr"`
}

type district struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	ValidFrom  *string `json:"gueltigAb"`
	FractionID int     `json:"fraktionId"`
}

type appointment struct {
	ID       int64    `json:"id"`
	District district `json:"bezirk"`
	Date     string   `json:"datum"`
}

// Resolver turns the configured address into collection events through four
// dependent lookups: region, street, house number, dates. Each upstream
// response is cached for the configured TTL; the caches live as long as the
// Resolver.
type Resolver struct {
	fetcher *fetcher.Fetcher
	baseURL string
	addr    Address
	ttl     time.Duration
	loc     *time.Location
	now     func() time.Time
	log     *slog.Logger

	regions *cache.TTL[string, []region]
	streets *cache.TTL[int64, []street]
	houses  *cache.TTL[int64, street]
	events  *cache.TTL[int64, []model.CollectionEvent]
}

// NewResolver creates a Resolver. Cache options are applied to every stage.
func NewResolver(f *fetcher.Fetcher, cfg Config, log *slog.Logger, opts ...cache.Option) *Resolver {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	opts = append([]cache.Option{cache.WithClock(cfg.Now)}, opts...)

	return &Resolver{
		fetcher: f,
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/",
		addr:    cfg.Address,
		ttl:     cfg.TTL,
		loc:     cfg.Location,
		now:     cfg.Now,
		log:     log,
		regions: cache.New[string, []region]("waste_regions", opts...),
		streets: cache.New[int64, []street]("waste_streets", opts...),
		houses:  cache.New[int64, street]("waste_house_numbers", opts...),
		events:  cache.New[int64, []model.CollectionEvent]("waste_events", opts...),
	}
}

// Today returns the current date in the resolver's time zone.
func (r *Resolver) Today() time.Time {
	return dates.Of(r.now(), r.loc)
}

// Events resolves the full chain and returns all upstream collection events
// unfiltered and in upstream order. Any stage failure aborts the chain.
func (r *Resolver) Events(ctx context.Context) ([]model.CollectionEvent, error) {
	regionID, err := r.regionID(ctx)
	if err != nil {
		return nil, err
	}
	streetID, err := r.streetID(ctx, regionID)
	if err != nil {
		return nil, err
	}
	houseID, err := r.houseNumberID(ctx, streetID)
	if err != nil {
		return nil, err
	}
	return r.collectionEvents(ctx, houseID)
}

// Schedule returns events dated from today up to today plus months,
// ascending by date.
func (r *Resolver) Schedule(ctx context.Context, months int) ([]model.CollectionEvent, error) {
	events, err := r.Events(ctx)
	if err != nil {
		return nil, err
	}
	today := r.Today()
	out := Window(events, today, dates.AddMonths(today, months))
	r.log.Info("filtered collection events", "total", len(events), "kept", len(out), "months", months)
	return out, nil
}

// ThisWeek returns the events of the Monday to Sunday week containing
// tomorrow, taken from a one month schedule.
func (r *Resolver) ThisWeek(ctx context.Context) ([]model.CollectionEvent, error) {
	events, err := r.Schedule(ctx, 1)
	if err != nil {
		return nil, err
	}
	start, end := dates.Week(r.Today().AddDate(0, 0, 1))
	out := Window(events, start, end)
	r.log.Debug("filtered week", "start", start.Format(dates.Layout), "end", end.Format(dates.Layout), "kept", len(out))
	return out, nil
}

// Window returns the events with from <= date <= to, sorted ascending by
// date. The input slice is not modified.
func Window(events []model.CollectionEvent, from, to time.Time) []model.CollectionEvent {
	out := make([]model.CollectionEvent, 0, len(events))
	for _, e := range events {
		if dates.Within(e.Date, from, to) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b model.CollectionEvent) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

func (r *Resolver) regionID(ctx context.Context) (int64, error) {
	regions, err := r.regions.GetOrCompute(ctx, "orte", r.ttl, func(ctx context.Context) ([]region, error) {
		var out []region
		if err := r.fetcher.GetJSON(ctx, r.baseURL+"orte", &out); err != nil {
			return nil, fmt.Errorf("list regions: %w", err)
		}
		r.log.Info("retrieved regions", "count", len(out))
		return out, nil
	})
	if err != nil {
		return 0, err
	}
	return findID(regions, "region", r.addr.Region, func(x region) (int64, string) { return x.ID, x.Name })
}

func (r *Resolver) streetID(ctx context.Context, regionID int64) (int64, error) {
	streets, err := r.streets.GetOrCompute(ctx, regionID, r.ttl, func(ctx context.Context) ([]street, error) {
		var out []street
		if err := r.fetcher.GetJSON(ctx, fmt.Sprintf("%sorte/%d/strassen", r.baseURL, regionID), &out); err != nil {
			return nil, fmt.Errorf("list streets of region %d: %w", regionID, err)
		}
		r.log.Info("retrieved streets", "region_id", regionID, "count", len(out))
		return out, nil
	})
	if err != nil {
		return 0, err
	}
	return findID(streets, "street", r.addr.Street, func(x street) (int64, string) { return x.ID, x.Name })
}

func (r *Resolver) houseNumberID(ctx context.Context, streetID int64) (int64, error) {
	s, err := r.houses.GetOrCompute(ctx, streetID, r.ttl, func(ctx context.Context) (street, error) {
		var out street
		if err := r.fetcher.GetJSON(ctx, fmt.Sprintf("%sstrassen/%d", r.baseURL, streetID), &out); err != nil {
			return street{}, fmt.Errorf("get house numbers of street %d: %w", streetID, err)
		}
		r.log.Info("retrieved house numbers", "street_id", streetID, "count", len(out.HouseNumbers))
		return out, nil
	})
	if err != nil {
		return 0, err
	}
	return findID(s.HouseNumbers, "house number", r.addr.HouseNumber, func(x houseNumber) (int64, string) { return x.ID, x.Nr })
}

func (r *Resolver) collectionEvents(ctx context.Context, houseID int64) ([]model.CollectionEvent, error) {
	return r.events.GetOrCompute(ctx, houseID, r.ttl, func(ctx context.Context) ([]model.CollectionEvent, error) {
		var raw []appointment
		u := fmt.Sprintf("%shausnummern/%d/termine", r.baseURL, houseID)
		if err := r.fetcher.GetJSON(ctx, u, &raw); err != nil {
			return nil, fmt.Errorf("list collection dates of house number %d: %w", houseID, err)
		}

		events := make([]model.CollectionEvent, 0, len(raw))
		for _, a := range raw {
			d, err := dates.Parse(a.Date)
			if err != nil {
				return nil, fmt.Errorf("collection %d: %w: %w", a.ID, model.ErrInvalidResponse, err)
			}
			events = append(events, model.CollectionEvent{
				ID:         a.ID,
				DistrictID: a.District.ID,
				District:   a.District.Name,
				Category:   model.CategoryFromFraction(a.District.FractionID),
				Date:       d,
			})
		}
		r.log.Info("retrieved collection dates", "house_number_id", houseID, "count", len(events))
		return events, nil
	})
}

// findID returns the id of the first entry whose name equals want exactly.
func findID[T any](items []T, what, want string, key func(T) (int64, string)) (int64, error) {
	for _, it := range items {
		if id, name := key(it); name == want {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%s %q: %w", what, want, model.ErrNotFound)
}
