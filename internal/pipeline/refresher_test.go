package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"white-traffic-console/internal/client"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestCycleRefreshesInOrder(t *testing.T) {
	var order []string
	r := NewRefresher(time.Second, quietLogger())
	r.Add("alerts", SourceFunc(func(ctx context.Context) error {
		order = append(order, "alerts")
		return nil
	}))
	r.Add("traffic", SourceFunc(func(ctx context.Context) error {
		order = append(order, "traffic")
		return errors.New("down")
	}))

	errs := r.Cycle(context.Background())
	if len(order) != 2 || order[0] != "alerts" || order[1] != "traffic" {
		t.Errorf("order = %v", order)
	}
	if len(errs) != 1 || errs["traffic"] == nil {
		t.Errorf("errs = %v", errs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cycles := 0
	r := NewRefresher(time.Millisecond, quietLogger())
	r.Add("alerts", SourceFunc(func(ctx context.Context) error { return nil }))

	err := r.Run(ctx, func(map[string]error) {
		cycles++
		if cycles == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if cycles != 3 {
		t.Errorf("cycles = %d", cycles)
	}
}

func TestRunStopsOnExpiredSession(t *testing.T) {
	r := NewRefresher(time.Millisecond, quietLogger())
	r.Add("alerts", SourceFunc(func(ctx context.Context) error { return client.ErrAuthExpired }))

	cycles := 0
	err := r.Run(context.Background(), func(map[string]error) { cycles++ })
	if !errors.Is(err, client.ErrAuthExpired) {
		t.Errorf("err = %v", err)
	}
	if cycles != 1 {
		t.Errorf("cycles = %d", cycles)
	}
}
