package traffic

import (
	"context"
	"sync"

	"white-traffic-console/internal/client"
	"white-traffic-console/internal/model"

	"github.com/sirupsen/logrus"
)

// Gateway is the traffic resource group of the API.
type Gateway interface {
	TrafficAnalysis(ctx context.Context, r model.TimeRange) (model.TrafficSnapshot, error)
}

// View holds the selected time range and the last snapshot fetched for it.
// Every fetch carries a token; only the response to the latest token is
// applied, so the displayed snapshot always matches the last selection.
type View struct {
	gw     Gateway
	logger *logrus.Logger

	mu       sync.Mutex
	rng      model.TimeRange
	snapshot model.TrafficSnapshot
	// shown is the range the current snapshot was fetched for.
	shown   model.TimeRange
	loaded  bool
	seq     uint64
	cancel  context.CancelFunc
	pending bool
	lastErr string
}

// NewView creates a view. An empty initial range selects the default (24h).
func NewView(gw Gateway, initial model.TimeRange, logger *logrus.Logger) *View {
	if initial == "" {
		initial = model.DefaultRange
	}
	return &View{
		gw:     gw,
		logger: logger,
		rng:    initial,
	}
}

// SetRange selects r and fetches its snapshot, superseding any fetch still in
// flight for an earlier selection.
func (v *View) SetRange(ctx context.Context, r model.TimeRange) error {
	if _, err := model.ParseTimeRange(string(r)); err != nil {
		verr := client.NewValidationError("range", err.Error())
		v.mu.Lock()
		v.lastErr = verr.Error()
		v.mu.Unlock()
		return verr
	}
	return v.fetch(ctx, &r)
}

// Refresh refetches the currently selected range.
func (v *View) Refresh(ctx context.Context) error {
	return v.fetch(ctx, nil)
}

// fetch selects the range when one is given, then fetches the selected range.
// Selection and token are taken together so the latest token always belongs
// to the latest selection.
func (v *View) fetch(ctx context.Context, selected *model.TimeRange) error {
	v.mu.Lock()
	if selected != nil {
		v.rng = *selected
	}
	r := v.rng
	v.seq++
	token := v.seq
	if v.cancel != nil {
		v.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.pending = true
	v.mu.Unlock()
	defer cancel()

	snap, err := v.gw.TrafficAnalysis(fetchCtx, r)

	v.mu.Lock()
	defer v.mu.Unlock()
	if token != v.seq {
		v.logger.Debugf("Discarding stale traffic snapshot for %s", r)
		return nil
	}
	v.cancel = nil
	v.pending = false
	if err != nil {
		// The previous snapshot stays on display.
		v.lastErr = err.Error()
		v.logger.Warnf("Failed to fetch traffic analysis for %s: %v", r, err)
		return err
	}
	v.snapshot = snap.Clone()
	v.shown = r
	v.loaded = true
	v.lastErr = ""
	v.logger.Debugf("Loaded traffic snapshot for %s (total=%d)", r, snap.Total)
	return nil
}

// Range returns the selected range.
func (v *View) Range() model.TimeRange {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rng
}

// Snapshot returns the displayed snapshot: the last one fetched
// successfully, or a zeroed one when none has arrived yet.
func (v *View) Snapshot() model.TrafficSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loaded {
		return model.TrafficSnapshot{Trends: []model.TrendPoint{}, Sources: []model.SourceCount{}}
	}
	return v.snapshot.Clone()
}

// SnapshotRange reports which range the displayed snapshot belongs to.
// It differs from Range while a fetch is pending or after a failed fetch.
func (v *View) SnapshotRange() (model.TimeRange, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shown, v.loaded
}

// Loading reports whether a fetch for the selected range is in flight.
func (v *View) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending
}

// Err returns the latest surfaced error, "" after a successful fetch.
func (v *View) Err() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}
