package pipeline

import (
	"context"
	"errors"
	"time"

	"white-traffic-console/internal/client"

	"github.com/sirupsen/logrus"
)

// Source is a store that can be refetched on demand.
type Source interface {
	Refresh(ctx context.Context) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) error

func (f SourceFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

// Refresher pulls every source on a fixed interval and hands control to
// onCycle after each round. It stops on context cancellation or when the
// session expires.
type Refresher struct {
	sources  map[string]Source
	order    []string
	interval time.Duration
	logger   *logrus.Logger
}

func NewRefresher(interval time.Duration, logger *logrus.Logger) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Refresher{
		sources:  make(map[string]Source),
		interval: interval,
		logger:   logger,
	}
}

// Add registers a named source. Sources refresh in registration order.
func (r *Refresher) Add(name string, src Source) {
	if _, exists := r.sources[name]; !exists {
		r.order = append(r.order, name)
	}
	r.sources[name] = src
}

// Cycle refreshes every source once and returns the per-source errors.
func (r *Refresher) Cycle(ctx context.Context) map[string]error {
	errs := make(map[string]error)
	for _, name := range r.order {
		if err := r.sources[name].Refresh(ctx); err != nil {
			errs[name] = err
			if ctx.Err() == nil {
				r.logger.Warnf("Failed to refresh %s: %v", name, err)
			}
		}
	}
	return errs
}

// Run cycles until ctx is done. It returns client.ErrAuthExpired as soon as
// any source reports it, since further polling cannot succeed.
func (r *Refresher) Run(ctx context.Context, onCycle func(errs map[string]error)) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		errs := r.Cycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if onCycle != nil {
			onCycle(errs)
		}
		for _, err := range errs {
			if errors.Is(err, client.ErrAuthExpired) {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
