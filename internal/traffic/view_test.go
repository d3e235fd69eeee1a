package traffic

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"white-traffic-console/internal/client"
	"white-traffic-console/internal/model"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// gatedGateway answers each range only when its gate is released. It
// ignores cancellation so late answers really arrive late.
type gatedGateway struct {
	mu      sync.Mutex
	gates   map[model.TimeRange]chan struct{}
	started chan model.TimeRange
	errs    map[model.TimeRange]error
	calls   int
}

func newGatedGateway() *gatedGateway {
	return &gatedGateway{
		gates:   make(map[model.TimeRange]chan struct{}),
		started: make(chan model.TimeRange, 8),
		errs:    make(map[model.TimeRange]error),
	}
}

func (g *gatedGateway) gate(r model.TimeRange) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[r]
	if !ok {
		ch = make(chan struct{})
		g.gates[r] = ch
	}
	return ch
}

func (g *gatedGateway) TrafficAnalysis(ctx context.Context, r model.TimeRange) (model.TrafficSnapshot, error) {
	g.mu.Lock()
	g.calls++
	err := g.errs[r]
	g.mu.Unlock()
	g.started <- r
	<-g.gate(r)
	if err != nil {
		return model.TrafficSnapshot{}, err
	}
	return snapshotFor(r), nil
}

func snapshotFor(r model.TimeRange) model.TrafficSnapshot {
	d, _ := r.Duration()
	total := int64(d / time.Hour)
	return model.TrafficSnapshot{
		Total:   total,
		White:   total,
		Trends:  []model.TrendPoint{{Time: string(r), Total: total, White: total}},
		Sources: []model.SourceCount{{Source: "10.0.0.1", Count: total}},
	}
}

func open(g *gatedGateway, r model.TimeRange) {
	close(g.gate(r))
}

func TestDefaultRangeAndEmptySnapshot(t *testing.T) {
	v := NewView(newGatedGateway(), "", quietLogger())
	if v.Range() != model.Range24h {
		t.Errorf("Range() = %q", v.Range())
	}
	s := v.Snapshot()
	if s.Total != 0 || s.Trends == nil || s.Sources == nil {
		t.Errorf("empty snapshot = %+v", s)
	}
	if _, loaded := v.SnapshotRange(); loaded {
		t.Error("nothing loaded yet")
	}
}

func TestLateResponseIsDiscarded(t *testing.T) {
	gw := newGatedGateway()
	v := NewView(gw, model.Range24h, quietLogger())
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() { slow <- v.SetRange(ctx, model.Range7d) }()
	<-gw.started

	fast := make(chan error, 1)
	go func() { fast <- v.SetRange(ctx, model.Range1h) }()
	<-gw.started

	open(gw, model.Range1h)
	if err := <-fast; err != nil {
		t.Fatal(err)
	}
	open(gw, model.Range7d)
	if err := <-slow; err != nil {
		t.Fatalf("superseded fetch should not report an error, got %v", err)
	}

	if v.Range() != model.Range1h {
		t.Errorf("Range() = %q", v.Range())
	}
	if got := v.Snapshot(); got.Total != 1 {
		t.Errorf("snapshot total = %d, want the 1h snapshot", got.Total)
	}
	if r, _ := v.SnapshotRange(); r != model.Range1h {
		t.Errorf("SnapshotRange() = %q", r)
	}
	if v.Loading() {
		t.Error("still loading")
	}
}

func TestFailureKeepsPreviousSnapshot(t *testing.T) {
	gw := newGatedGateway()
	gw.errs[model.Range30d] = &client.TransportError{Op: client.OpTrafficAnalyze, Err: errors.New("timeout")}
	open(gw, model.Range24h)
	open(gw, model.Range30d)

	v := NewView(gw, model.Range24h, quietLogger())
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-gw.started

	if err := v.SetRange(context.Background(), model.Range30d); err == nil {
		t.Fatal("SetRange succeeded")
	}
	<-gw.started

	if v.Snapshot().Total != 24 {
		t.Errorf("snapshot total = %d, want previous 24h snapshot", v.Snapshot().Total)
	}
	if v.Err() == "" {
		t.Error("error not surfaced")
	}
	if r, _ := v.SnapshotRange(); r != model.Range24h {
		t.Errorf("SnapshotRange() = %q", r)
	}
}

type instantGateway struct{}

func (instantGateway) TrafficAnalysis(ctx context.Context, r model.TimeRange) (model.TrafficSnapshot, error) {
	return model.TrafficSnapshot{Total: int64(len(r))}, nil
}

func TestRefreshRacingSetRangeKeepsSelection(t *testing.T) {
	for i := 0; i < 200; i++ {
		v := NewView(instantGateway{}, model.Range24h, quietLogger())
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = v.Refresh(context.Background())
		}()
		go func() {
			defer wg.Done()
			_ = v.SetRange(context.Background(), model.Range1h)
		}()
		wg.Wait()

		if v.Range() != model.Range1h {
			t.Fatalf("Range() = %q", v.Range())
		}
		if r, ok := v.SnapshotRange(); !ok || r != model.Range1h {
			t.Fatalf("iteration %d: snapshot range = %q, want %q", i, r, model.Range1h)
		}
	}
}

func TestSetRangeRejectsUnknownRange(t *testing.T) {
	gw := newGatedGateway()
	v := NewView(gw, model.Range24h, quietLogger())
	err := v.SetRange(context.Background(), "2h")
	if !client.IsValidation(err) {
		t.Fatalf("err = %v", err)
	}
	if gw.calls != 0 {
		t.Error("invalid range reached the network")
	}
	if v.Range() != model.Range24h {
		t.Error("invalid range was selected")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	gw := newGatedGateway()
	open(gw, model.Range1h)
	v := NewView(gw, model.Range1h, quietLogger())
	if err := v.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := v.Snapshot()
	s.Trends[0].Total = 999
	if v.Snapshot().Trends[0].Total == 999 {
		t.Error("Snapshot exposes internal state")
	}
}
