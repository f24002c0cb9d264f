// Package calendar collects appointments from several calendars of the
// scheduling backend.
package calendar

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"homeboard/internal/model"
)

// DefaultWorkers bounds concurrent calendar fetches.
const DefaultWorkers = 6

// Lister lists the appointments of one calendar starting within daysAhead
// days from today.
type Lister interface {
	List(ctx context.Context, src model.CalendarSource, daysAhead int) ([]model.Appointment, error)
}

// Result is the merged view over all calendars that answered.
type Result struct {
	Appointments []model.Appointment
	Days         []model.DateGroup
	// Failed names the sources that were excluded, in source order.
	Failed []string
	// Errors holds the cause for every name in Failed.
	Errors map[string]error
}

// Aggregator fans out to all sources and merges what comes back.
type Aggregator struct {
	lister  Lister
	workers int
	log     *slog.Logger
}

// NewAggregator creates an Aggregator running at most workers fetches at a
// time.
func NewAggregator(l Lister, workers int, log *slog.Logger) *Aggregator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Aggregator{lister: l, workers: workers, log: log}
}

type outcome struct {
	index        int
	appointments []model.Appointment
	err          error
	took         time.Duration
}

// Collect fetches every source concurrently. A failing source is logged and
// contributes nothing; it never affects the others. The merged sequence is
// ordered by start instant, ties keep source order, whatever the completion
// order was.
func (a *Aggregator) Collect(ctx context.Context, sources []model.CalendarSource, daysAhead int) Result {
	results := make(chan outcome, len(sources))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			started := time.Now()
			appts, err := a.lister.List(ctx, src, daysAhead)
			results <- outcome{index: i, appointments: appts, err: err, took: time.Since(started)}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	bySource := make([]outcome, len(sources))
	for o := range results {
		bySource[o.index] = o
	}

	var res Result
	for i, o := range bySource {
		src := sources[i]
		if o.err != nil {
			a.log.Warn("calendar source failed", "source", src.Name, "kind", model.Kind(o.err), "duration", o.took, "error", o.err)
			res.Failed = append(res.Failed, src.Name)
			if res.Errors == nil {
				res.Errors = make(map[string]error)
			}
			res.Errors[src.Name] = o.err
			continue
		}
		a.log.Debug("calendar source listed", "source", src.Name, "count", len(o.appointments), "duration", o.took)
		res.Appointments = append(res.Appointments, o.appointments...)
	}

	slices.SortStableFunc(res.Appointments, func(x, y model.Appointment) int {
		return x.Start.Compare(y.Start)
	})
	res.Days = GroupByDate(res.Appointments)

	a.log.Info("collected calendars", "sources", len(sources), "failed", len(res.Failed), "appointments", len(res.Appointments))
	return res
}

// GroupByDate buckets appointments by start date. Buckets are ordered by
// date and keep the input order within a date.
func GroupByDate(appts []model.Appointment) []model.DateGroup {
	var days []model.DateGroup
	index := make(map[int64]int)
	for _, ap := range appts {
		if i, ok := index[ap.StartDate.Unix()]; ok {
			days[i].Appointments = append(days[i].Appointments, ap)
			continue
		}
		index[ap.StartDate.Unix()] = len(days)
		days = append(days, model.DateGroup{Date: ap.StartDate, Appointments: []model.Appointment{ap}})
	}
	slices.SortStableFunc(days, func(x, y model.DateGroup) int {
		return x.Date.Compare(y.Date)
	})
	return days
}
