package alert

import (
	"context"
	"sync"

	"white-traffic-console/internal/model"

	"github.com/sirupsen/logrus"
)

// Gateway is the alerts resource group of the API.
type Gateway interface {
	ListAlerts(ctx context.Context, showResolved bool) ([]model.Alert, error)
	ResolveAlert(ctx context.Context, id model.ID) error
	DismissAlert(ctx context.Context, id model.ID) error
}

// Board holds the alerts visible under one visibility filter and applies
// resolve/dismiss optimistically, rolling back when the server refuses.
type Board struct {
	gw        Gateway
	logger    *logrus.Logger
	notifiers []Notifier

	mu           sync.Mutex
	showResolved bool
	// listedFor is the filter the current list was fetched with; listed is
	// false until a fetch has succeeded.
	listedFor bool
	listed    bool
	alerts    []model.Alert
	// gen changes whenever the list is replaced by a fetch; rollbacks only
	// apply to the generation they were taken from.
	gen     uint64
	seq     uint64
	cancel  context.CancelFunc
	lastErr string
}

func NewBoard(gw Gateway, logger *logrus.Logger) *Board {
	return &Board{
		gw:     gw,
		logger: logger,
		alerts: make([]model.Alert, 0),
	}
}

// RegisterNotifier adds a transition notifier.
func (b *Board) RegisterNotifier(n Notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifiers = append(b.notifiers, n)
}

// Load fetches the alerts for the current visibility filter.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	show := b.showResolved
	b.mu.Unlock()
	return b.fetch(ctx, show)
}

// SetShowResolved switches the visibility filter. A change always triggers
// exactly one fresh fetch that replaces the list. Setting the value the list
// was already fetched with does nothing; after a failed switch the same call
// retries the fetch.
func (b *Board) SetShowResolved(ctx context.Context, show bool) error {
	b.mu.Lock()
	if b.showResolved == show && b.listed && b.listedFor == show {
		b.mu.Unlock()
		return nil
	}
	b.showResolved = show
	b.mu.Unlock()
	return b.fetch(ctx, show)
}

func (b *Board) ShowResolved() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.showResolved
}

func (b *Board) fetch(ctx context.Context, show bool) error {
	b.mu.Lock()
	b.seq++
	token := b.seq
	if b.cancel != nil {
		b.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()
	defer cancel()

	alerts, err := b.gw.ListAlerts(fetchCtx, show)

	b.mu.Lock()
	defer b.mu.Unlock()
	if token != b.seq {
		b.logger.Debugf("Discarding superseded alert fetch (showResolved=%v)", show)
		return nil
	}
	b.cancel = nil
	if err != nil {
		b.lastErr = err.Error()
		b.logger.Warnf("Failed to fetch alerts: %v", err)
		return err
	}
	if alerts == nil {
		alerts = make([]model.Alert, 0)
	}
	b.alerts = alerts
	b.listedFor = show
	b.listed = true
	b.gen++
	b.lastErr = ""
	b.logger.Debugf("Loaded %d alerts (showResolved=%v)", len(alerts), show)
	return nil
}

// Alerts returns the visible alerts in server order.
func (b *Board) Alerts() []model.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Alert, len(b.alerts))
	copy(out, b.alerts)
	return out
}

// Resolve marks the alert resolved locally, then confirms with the server.
// An id that is not on the board is not flipped; the server's answer is
// surfaced as is.
func (b *Board) Resolve(ctx context.Context, id model.ID) error {
	b.mu.Lock()
	i := b.indexOf(id)
	present := i >= 0
	gen := b.gen
	prev := model.Alert{ID: id}
	if present {
		prev = b.alerts[i]
		b.alerts[i].Resolved = true
	}
	b.mu.Unlock()

	if err := b.gw.ResolveAlert(ctx, id); err != nil {
		b.mu.Lock()
		if present && gen == b.gen {
			if j := b.indexOf(id); j >= 0 {
				b.alerts[j] = prev
			}
		}
		b.lastErr = err.Error()
		b.mu.Unlock()
		b.logger.Warnf("Failed to resolve alert %s: %v", id, err)
		return err
	}

	b.mu.Lock()
	b.lastErr = ""
	b.mu.Unlock()

	if !present {
		b.logger.Infof("Resolved alert %s (not on the board)", id)
		return nil
	}
	prev.Resolved = true
	b.notify(prev, model.AlertStateResolved)
	return nil
}

// Dismiss removes the alert locally, then confirms with the server. On
// failure the alert is put back where it was.
func (b *Board) Dismiss(ctx context.Context, id model.ID) error {
	b.mu.Lock()
	i := b.indexOf(id)
	present := i >= 0
	gen := b.gen
	prev := model.Alert{ID: id}
	if present {
		prev = b.alerts[i]
		b.alerts = append(b.alerts[:i:i], b.alerts[i+1:]...)
	}
	b.mu.Unlock()

	if err := b.gw.DismissAlert(ctx, id); err != nil {
		b.mu.Lock()
		if present && gen == b.gen && b.indexOf(id) < 0 {
			at := i
			if at > len(b.alerts) {
				at = len(b.alerts)
			}
			b.alerts = append(b.alerts[:at], append([]model.Alert{prev}, b.alerts[at:]...)...)
		}
		b.lastErr = err.Error()
		b.mu.Unlock()
		b.logger.Warnf("Failed to dismiss alert %s: %v", id, err)
		return err
	}

	b.mu.Lock()
	b.lastErr = ""
	b.mu.Unlock()

	if !present {
		b.logger.Infof("Dismissed alert %s (not on the board)", id)
		return nil
	}
	b.notify(prev, model.AlertStateDismissed)
	return nil
}

// Err returns the latest surfaced error, "" after a successful operation.
func (b *Board) Err() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

type Counts struct {
	Open       int                    `json:"open"`
	Resolved   int                    `json:"resolved"`
	BySeverity map[model.Severity]int `json:"by_severity"`
}

// Counts summarizes the visible alerts.
func (b *Board) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := Counts{BySeverity: make(map[model.Severity]int)}
	for i := range b.alerts {
		if b.alerts[i].Resolved {
			c.Resolved++
		} else {
			c.Open++
		}
		c.BySeverity[b.alerts[i].Severity]++
	}
	return c
}

func (b *Board) indexOf(id model.ID) int {
	for i := range b.alerts {
		if b.alerts[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) notify(a model.Alert, to model.AlertState) {
	b.mu.Lock()
	notifiers := make([]Notifier, len(b.notifiers))
	copy(notifiers, b.notifiers)
	b.mu.Unlock()

	for _, n := range notifiers {
		if err := n.SendTransition(a, to); err != nil {
			b.logger.Errorf("Failed to send alert transition: %v", err)
		}
	}
}
