package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"white-traffic-console/api/internal/storage"
	"white-traffic-console/internal/alert"
	"white-traffic-console/internal/client"
	"white-traffic-console/internal/model"
	"white-traffic-console/internal/rules"
	"white-traffic-console/internal/session"
	"white-traffic-console/internal/traffic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

const testToken = "sandbox-token"

type sandbox struct {
	url     string
	store   *storage.Storage
	metrics *ServerMetrics
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newSandbox(t *testing.T) *sandbox {
	t.Helper()
	logger := quietLogger()
	store := storage.NewStorage(logger)
	now := time.Now()
	store.AddAlert(model.Alert{ID: "7", Title: "spike", Severity: model.SeverityHigh, Timestamp: now})
	store.AddAlert(model.Alert{ID: "8", Title: "agent", Severity: model.SeverityMedium, Timestamp: now.Add(-time.Minute)})
	store.AddAlert(model.Alert{ID: "9", Title: "old", Severity: model.SeverityLow, Timestamp: now.Add(-time.Hour), Resolved: true})
	store.AddSample(storage.TrafficSample{Timestamp: now.Add(-10 * time.Minute), Source: "10.0.0.1", White: 90, Filtered: 8, Malicious: 2})
	store.AddSample(storage.TrafficSample{Timestamp: now.Add(-5 * time.Hour), Source: "10.0.0.2", White: 1000})

	reg := prometheus.NewRegistry()
	metrics := NewServerMetrics(reg)
	h := NewHandlers(store, Credentials{Token: testToken, Username: "admin", Password: "admin"}, logger)
	srv := httptest.NewServer(NewRouter(h, metrics, reg))
	t.Cleanup(srv.Close)
	return &sandbox{url: srv.URL, store: store, metrics: metrics}
}

func (s *sandbox) gateway(t *testing.T, sess *session.Session) *client.Gateway {
	t.Helper()
	gw, err := client.NewGateway(client.Config{BaseURL: s.url, Timeout: 5 * time.Second}, sess, quietLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return gw
}

func TestLoginThenRuleLifecycle(t *testing.T) {
	sb := newSandbox(t)
	ctx := context.Background()
	sess := session.New(nil, quietLogger())
	gw := sb.gateway(t, sess)

	if _, err := sess.Login(ctx, gw, session.Credentials{Username: "admin", Password: "nope"}); err == nil {
		t.Fatal("login with wrong password succeeded")
	}
	user, err := sess.Login(ctx, gw, session.Credentials{Username: "admin", Password: "admin"})
	if err != nil {
		t.Fatal(err)
	}
	if user.Token != testToken || sess.Token() != testToken {
		t.Fatalf("token = %q", user.Token)
	}

	reg := rules.NewRegistry(gw, quietLogger())
	if err := reg.Load(ctx); err != nil {
		t.Fatal(err)
	}

	form := reg.Form()
	_ = reg.UpdateField(form, rules.FieldName, "block-bots")
	_ = reg.UpdateField(form, rules.FieldConditions, "not json")
	if _, err := reg.Create(ctx); err == nil || err.Error() != "Filter conditions must be valid JSON" {
		t.Fatalf("create err = %v", err)
	}

	_ = reg.UpdateField(form, rules.FieldConditions, `{"user_agent": "bot"}`)
	created, err := reg.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != "1" {
		t.Errorf("id = %q", created.ID)
	}

	out, err := reg.Test(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Message, "user_agent") {
		t.Errorf("test message = %q", out.Message)
	}

	d, err := reg.BeginEdit(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	_ = reg.UpdateField(d, rules.FieldActive, false)
	if _, err := reg.CommitEdit(ctx, d); err != nil {
		t.Fatal(err)
	}
	if stored := sb.store.GetRuleByID("1"); stored == nil || stored.Active || stored.Name != "block-bots" {
		t.Errorf("stored = %+v", stored)
	}

	if err := reg.Remove(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if err := reg.Remove(ctx, created.ID); !client.IsNotFound(err) {
		t.Errorf("second remove err = %v", err)
	}
	if len(reg.List()) != 0 {
		t.Errorf("list = %+v", reg.List())
	}
}

func TestRegister(t *testing.T) {
	sb := newSandbox(t)
	ctx := context.Background()
	sess := session.New(nil, quietLogger())
	gw := sb.gateway(t, sess)

	if _, err := sess.Register(ctx, gw, session.Credentials{Username: "ops", Password: "pw", Confirm: "pw"}); err != nil {
		t.Fatal(err)
	}
	_, err := session.New(nil, quietLogger()).Register(ctx, gw, session.Credentials{Username: "ops", Password: "pw", Confirm: "pw"})
	if err == nil || err.Error() != "Username already exists" {
		t.Errorf("duplicate register err = %v", err)
	}
	if _, err := session.New(nil, quietLogger()).Login(ctx, gw, session.Credentials{Username: "ops", Password: "pw"}); err != nil {
		t.Errorf("login after register: %v", err)
	}
}

func TestBadTokenInvalidatesSession(t *testing.T) {
	sb := newSandbox(t)
	fired := 0
	sess := session.NewWithToken("admin", "stale", func() { fired++ }, quietLogger())
	gw := sb.gateway(t, sess)

	board := alert.NewBoard(gw, quietLogger())
	if err := board.Load(context.Background()); !errors.Is(err, client.ErrAuthExpired) {
		t.Fatalf("err = %v", err)
	}
	if fired != 1 || sess.Authenticated() {
		t.Errorf("fired=%d authenticated=%v", fired, sess.Authenticated())
	}
}

func TestAlertTriage(t *testing.T) {
	sb := newSandbox(t)
	ctx := context.Background()
	gw := sb.gateway(t, session.NewWithToken("admin", testToken, nil, quietLogger()))

	board := alert.NewBoard(gw, quietLogger())
	if err := board.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(board.Alerts()); n != 2 {
		t.Fatalf("open alerts = %d", n)
	}

	if err := board.Resolve(ctx, "7"); err != nil {
		t.Fatal(err)
	}
	if err := board.Resolve(ctx, "77"); !client.IsNotFound(err) {
		t.Errorf("unknown resolve err = %v", err)
	}
	if err := board.Dismiss(ctx, "8"); err != nil {
		t.Fatal(err)
	}
	if err := board.Dismiss(ctx, "8"); !client.IsNotFound(err) {
		t.Errorf("second dismiss err = %v", err)
	}

	if err := board.SetShowResolved(ctx, true); err != nil {
		t.Fatal(err)
	}
	got := board.Alerts()
	if len(got) != 2 || got[0].ID != "7" || !got[0].Resolved || got[1].ID != "9" {
		t.Errorf("alerts = %+v", got)
	}
}

func TestTrafficAnalysis(t *testing.T) {
	sb := newSandbox(t)
	gw := sb.gateway(t, session.NewWithToken("admin", testToken, nil, quietLogger()))

	view := traffic.NewView(gw, "", quietLogger())
	if err := view.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := view.Snapshot()
	if s.Total != 1100 || len(s.Trends) != 24 || len(s.Sources) != 2 {
		t.Errorf("24h snapshot = total %d, %d trends, %d sources", s.Total, len(s.Trends), len(s.Sources))
	}

	if err := view.SetRange(context.Background(), model.Range1h); err != nil {
		t.Fatal(err)
	}
	if s := view.Snapshot(); s.Total != 100 || s.Malicious != 2 {
		t.Errorf("1h snapshot = %+v", s)
	}
}

func TestRawEndpoints(t *testing.T) {
	sb := newSandbox(t)

	tests := []struct {
		name   string
		method string
		path   string
		auth   bool
		status int
	}{
		{"health", "GET", "/health", false, http.StatusOK},
		{"metrics", "GET", "/metrics", false, http.StatusOK},
		{"no token", "GET", "/api/rules", false, http.StatusUnauthorized},
		{"bad range", "GET", "/api/traffic/analysis?range=2h", true, http.StatusBadRequest},
		{"bad flag", "GET", "/api/alerts?showResolved=maybe", true, http.StatusBadRequest},
		{"unknown rule", "PUT", "/api/rules/99", true, http.StatusBadRequest},
		{"preflight", "OPTIONS", "/health", false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, sb.url+tt.path, nil)
			if tt.auth {
				req.Header.Set("Authorization", "Bearer "+testToken)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	if got := testutil.ToFloat64(sb.metrics.Requests.WithLabelValues("GET", "/api/rules", "401")); got != 1 {
		t.Errorf("401 counter = %v", got)
	}
}
