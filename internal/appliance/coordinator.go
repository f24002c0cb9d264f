package appliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"homeboard/internal/model"
)

// Appliance is one DNS filter.
type Appliance interface {
	Name() string
	Status(ctx context.Context) (model.BlockingStatus, error)
	Disable(ctx context.Context, d time.Duration) (model.BlockingStatus, error)
}

// Coordinator keeps a primary and a backup appliance in lock-step.
type Coordinator struct {
	primary Appliance
	backup  Appliance
	log     *slog.Logger
	onFail  func(primary, backup model.BlockingStatus)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConsistencyObserver registers fn to be called with both reported
// states whenever DisableFor detects that the appliances did not converge.
func WithConsistencyObserver(fn func(primary, backup model.BlockingStatus)) Option {
	return func(c *Coordinator) { c.onFail = fn }
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(primary, backup Appliance, log *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{primary: primary, backup: backup, log: log}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Status returns the primary's blocking state.
func (c *Coordinator) Status(ctx context.Context) (model.BlockingStatus, error) {
	return c.primary.Status(ctx)
}

// DisableFor disables blocking for d, at least one second, on the primary and
// then on the backup.
// Any failure aborts the operation. Afterwards both appliances must report
// blocking as off; anything else is a model.ErrConsistency. On success the
// primary's state is returned.
func (c *Coordinator) DisableFor(ctx context.Context, d time.Duration) (model.BlockingStatus, error) {
	if d < time.Second {
		return model.BlockingStatus{}, errors.New("disable blocking: duration must be at least one second")
	}

	p, err := c.primary.Disable(ctx, d)
	if err != nil {
		return model.BlockingStatus{}, fmt.Errorf("primary: %w", err)
	}
	b, err := c.backup.Disable(ctx, d)
	if err != nil {
		return model.BlockingStatus{}, fmt.Errorf("backup: %w", err)
	}

	switch {
	case p.Blocking != b.Blocking:
		err = fmt.Errorf("%s reports blocking=%t, %s reports blocking=%t: %w",
			c.primary.Name(), p.Blocking, c.backup.Name(), b.Blocking, model.ErrConsistency)
	case p.Blocking:
		err = fmt.Errorf("blocking still enabled on %s and %s: %w", c.primary.Name(), c.backup.Name(), model.ErrConsistency)
	}
	if err != nil {
		c.log.Error("appliances diverged", "primary", p.Blocking, "backup", b.Blocking)
		if c.onFail != nil {
			c.onFail(p, b)
		}
		return model.BlockingStatus{}, err
	}

	c.log.Info("disabled blocking on both appliances", "duration", d)
	return p, nil
}
