package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"white-traffic-console/internal/model"

	"github.com/sirupsen/logrus"
)

func newTestStorage(now time.Time) *Storage {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewStorage(logger)
	s.SetClock(func() time.Time { return now })
	return s
}

func TestRuleIDsIncrement(t *testing.T) {
	s := newTestStorage(time.Now())
	a := s.AddRule(model.NewRuleInput{Name: "a", Conditions: "{}"})
	b := s.AddRule(model.NewRuleInput{Name: "b", Conditions: "{}"})
	if a.ID != "1" || b.ID != "2" {
		t.Errorf("ids = %s, %s", a.ID, b.ID)
	}
	if !s.DeleteRule("1") || s.DeleteRule("1") {
		t.Error("delete should succeed exactly once")
	}
	c := s.AddRule(model.NewRuleInput{Name: "c", Conditions: "{}"})
	if c.ID != "3" {
		t.Errorf("ids must not be reused, got %s", c.ID)
	}
}

func TestUpdateRuleKeepsID(t *testing.T) {
	s := newTestStorage(time.Now())
	s.AddRule(model.NewRuleInput{Name: "a", Conditions: "{}"})
	got, ok := s.UpdateRule("1", model.Rule{ID: "99", Name: "renamed", Conditions: "{}"})
	if !ok || got.ID != "1" || got.Name != "renamed" {
		t.Errorf("UpdateRule = %+v, %v", got, ok)
	}
	if _, ok := s.UpdateRule("5", model.Rule{}); ok {
		t.Error("update of unknown rule succeeded")
	}
}

func TestAlertVisibility(t *testing.T) {
	now := time.Now()
	s := newTestStorage(now)
	old := s.AddAlert(model.Alert{Title: "old", Severity: model.SeverityLow, Timestamp: now.Add(-time.Hour)})
	recent := s.AddAlert(model.Alert{Title: "recent", Severity: model.SeverityHigh, Timestamp: now})
	if old.ID.IsZero() || old.ID == recent.ID {
		t.Fatalf("ids not assigned: %q %q", old.ID, recent.ID)
	}

	open := s.GetAlerts(false)
	if len(open) != 2 || open[0].Title != "recent" {
		t.Fatalf("open = %+v, want newest first", open)
	}

	if !s.ResolveAlert(old.ID) {
		t.Fatal("resolve failed")
	}
	if n := len(s.GetAlerts(false)); n != 1 {
		t.Errorf("open after resolve = %d", n)
	}
	if n := len(s.GetAlerts(true)); n != 2 {
		t.Errorf("all after resolve = %d", n)
	}

	if !s.DismissAlert(old.ID) {
		t.Fatal("dismiss failed")
	}
	if s.DismissAlert(old.ID) {
		t.Error("second dismiss succeeded")
	}
	if s.ResolveAlert(old.ID) {
		t.Error("resolve of dismissed alert succeeded")
	}
	if n := len(s.GetAlerts(true)); n != 1 {
		t.Errorf("dismissed alert still listed: %d", n)
	}
}

func TestAnalyzeBucketsByRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStorage(now)
	s.AddSample(TrafficSample{Timestamp: now.Add(-10 * time.Minute), Source: "a", White: 10, Filtered: 2, Malicious: 1})
	s.AddSample(TrafficSample{Timestamp: now.Add(-3 * time.Hour), Source: "b", White: 100})
	s.AddSample(TrafficSample{Timestamp: now.Add(-3 * 24 * time.Hour), Source: "a", White: 1000})

	hour := s.Analyze(model.Range1h)
	if hour.Total != 13 || hour.White != 10 || hour.Filtered != 2 || hour.Malicious != 1 {
		t.Errorf("1h = %+v", hour)
	}
	if len(hour.Trends) != 12 {
		t.Errorf("1h buckets = %d", len(hour.Trends))
	}
	if hour.Trends[10].Total != 13 {
		t.Errorf("sample landed in the wrong bucket: %+v", hour.Trends)
	}

	day := s.Analyze(model.Range24h)
	if day.Total != 113 || len(day.Trends) != 24 {
		t.Errorf("24h total=%d buckets=%d", day.Total, len(day.Trends))
	}
	if len(day.Sources) != 2 || day.Sources[0].Source != "b" || day.Sources[0].Count != 100 {
		t.Errorf("sources = %+v, want descending by count", day.Sources)
	}

	week := s.Analyze(model.Range7d)
	if week.Total != 1113 || len(week.Trends) != 7 {
		t.Errorf("7d total=%d buckets=%d", week.Total, len(week.Trends))
	}
	var trendSum int64
	for _, p := range week.Trends {
		trendSum += p.Total
	}
	if trendSum != week.Total {
		t.Errorf("trend sum %d != total %d", trendSum, week.Total)
	}
}

func TestLoadSeedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	body := `
rules:
  - name: office
    conditions: '{"ip_range": "192.168.1.0/24"}'
    active: true
alerts:
  - title: spike
    severity: HIGH
    age: 15m
    details:
      source: 203.0.113.7
traffic:
  - { age: 10m, source: a, white: 5 }
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStorage(now)
	if err := s.Apply(seed); err != nil {
		t.Fatal(err)
	}
	if rules := s.GetRules(); len(rules) != 1 || rules[0].ID != "1" {
		t.Errorf("rules = %+v", rules)
	}
	alerts := s.GetAlerts(false)
	if len(alerts) != 1 || alerts[0].Severity != model.SeverityHigh || !alerts[0].HasDetails() {
		t.Fatalf("alerts = %+v", alerts)
	}
	if !alerts[0].Timestamp.Equal(now.Add(-15 * time.Minute)) {
		t.Errorf("timestamp = %v", alerts[0].Timestamp)
	}
	if s.Analyze(model.Range1h).White != 5 {
		t.Error("traffic sample not seeded")
	}
}

func TestApplyRejectsBadSeed(t *testing.T) {
	s := newTestStorage(time.Now())
	if err := s.Apply(&Seed{Alerts: []SeedAlert{{Title: "x", Severity: "critical"}}}); err == nil {
		t.Error("unknown severity accepted")
	}
	if err := s.Apply(&Seed{Traffic: []SeedSample{{Age: "yesterday"}}}); err == nil {
		t.Error("bad age accepted")
	}
}

func TestDefaultSeedApplies(t *testing.T) {
	s := newTestStorage(time.Now())
	if err := s.Apply(DefaultSeed()); err != nil {
		t.Fatal(err)
	}
	for _, r := range model.TimeRanges {
		if s.Analyze(r).Total == 0 {
			t.Errorf("default seed has no traffic in %s", r)
		}
	}
}
