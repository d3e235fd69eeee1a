package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"white-traffic-console/internal/model"

	"github.com/sirupsen/logrus"
)

const maxResponseBytes = 4 << 20

// Operation names, used in fallback messages and as metric labels.
const (
	OpLogin          = "log in"
	OpRegister       = "register"
	OpListRules      = "fetch rules"
	OpCreateRule     = "create rule"
	OpUpdateRule     = "update rule"
	OpDeleteRule     = "delete rule"
	OpTestRule       = "test rule"
	OpListAlerts     = "fetch alerts"
	OpResolveAlert   = "resolve alert"
	OpDismissAlert   = "dismiss alert"
	OpTrafficAnalyze = "fetch traffic analysis"
	OpGeneric        = "complete request"
)

// Authenticator supplies the bearer credential and is told when the backend
// rejects it. *session.Session implements it.
type Authenticator interface {
	Token() string
	Invalidate()
}

// Config configures the HTTP transport.
type Config struct {
	BaseURL string
	// Timeout bounds every request; zero keeps the transport default.
	Timeout   time.Duration
	UserAgent string
}

// Gateway wraps the backend REST API. It is safe for concurrent use.
type Gateway struct {
	baseURL   *url.URL
	client    *http.Client
	auth      Authenticator
	logger    *logrus.Logger
	metrics   *Metrics
	userAgent string
}

// NewGateway creates a gateway for cfg.BaseURL. metrics may be nil.
func NewGateway(cfg Config, auth Authenticator, logger *logrus.Logger, metrics *Metrics) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("API base URL cannot be empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse API base URL %s: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("API base URL %s must be absolute", cfg.BaseURL)
	}

	return &Gateway{
		baseURL: base,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		auth:      auth,
		logger:    logger,
		metrics:   metrics,
		userAgent: cfg.UserAgent,
	}, nil
}

type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (e *envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	// anonymous requests skip the bearer header and treat 401 as an
	// ordinary rejection (wrong credentials, not an expired session).
	anonymous bool
}

func (g *Gateway) do(ctx context.Context, req request) (*envelope, error) {
	start := time.Now()
	env, outcome, err := g.roundTrip(ctx, req)
	g.metrics.observe(req.op, outcome, time.Since(start))
	return env, err
}

func (g *Gateway) roundTrip(ctx context.Context, req request) (*envelope, string, error) {
	target := g.baseURL.String() + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, outcomeTransport, &TransportError{Op: req.op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, outcomeTransport, &TransportError{Op: req.op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if g.userAgent != "" {
		httpReq.Header.Set("User-Agent", g.userAgent)
	}
	if !req.anonymous && g.auth != nil {
		if token := g.auth.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	g.logger.Debugf("%s %s", req.method, req.path)
	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			g.logger.Debugf("Request to %s abandoned: %v", req.op, ctx.Err())
		} else {
			g.logger.Errorf("Failed to %s: %v", req.op, err)
		}
		return nil, outcomeTransport, &TransportError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, outcomeTransport, &TransportError{Op: req.op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.anonymous {
		g.logger.Warnf("Backend rejected credential during %s", req.op)
		if g.auth != nil {
			g.auth.Invalidate()
		}
		return nil, outcomeAuthExpired, ErrAuthExpired
	}

	env := &envelope{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if decodeErr := json.Unmarshal(raw, env); decodeErr != nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil, outcomeTransport, &TransportError{Op: req.op, Err: fmt.Errorf("failed to decode response: %w", decodeErr)}
			}
			// Non-JSON error bodies fall back to the generic message.
			env = &envelope{}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rej := &ServerRejection{Op: req.op, Status: resp.StatusCode, Message: env.message()}
		g.logger.Warnf("Backend rejected %s (%d): %s", req.op, resp.StatusCode, rej.Error())
		return env, outcomeRejected, rej
	}
	if env.Success != nil && !*env.Success {
		rej := &ServerRejection{Op: req.op, Status: resp.StatusCode, Message: env.message()}
		return env, outcomeRejected, rej
	}

	return env, outcomeOK, nil
}

func decodeData(op string, env *envelope, out any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to decode data: %w", err)}
	}
	return nil
}

func rulePath(id model.ID) string {
	return "/api/rules/" + url.PathEscape(id.String())
}

func alertPath(id model.ID, action string) string {
	return "/api/alerts/" + url.PathEscape(id.String()) + "/" + action
}

// Auth group

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges operator credentials for a bearer token.
func (g *Gateway) Login(ctx context.Context, username, password string) (model.User, error) {
	return g.authenticate(ctx, OpLogin, "/api/login", username, password)
}

// Register creates an operator account and logs it in.
func (g *Gateway) Register(ctx context.Context, username, password string) (model.User, error) {
	return g.authenticate(ctx, OpRegister, "/api/register", username, password)
}

func (g *Gateway) authenticate(ctx context.Context, op, path, username, password string) (model.User, error) {
	env, err := g.do(ctx, request{
		op:        op,
		method:    http.MethodPost,
		path:      path,
		body:      credentials{Username: username, Password: password},
		anonymous: true,
	})
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := decodeData(op, env, &user); err != nil {
		return model.User{}, err
	}
	if user.Token == "" {
		return model.User{}, &ServerRejection{Op: op, Status: http.StatusOK, Message: env.message()}
	}
	return user, nil
}

// Rules group

func (g *Gateway) ListRules(ctx context.Context) ([]model.Rule, error) {
	env, err := g.do(ctx, request{op: OpListRules, method: http.MethodGet, path: "/api/rules"})
	if err != nil {
		return nil, err
	}
	rules := make([]model.Rule, 0)
	if err := decodeData(OpListRules, env, &rules); err != nil {
		return nil, err
	}
	if rules == nil {
		rules = make([]model.Rule, 0)
	}
	return rules, nil
}

func (g *Gateway) CreateRule(ctx context.Context, in model.NewRuleInput) (model.Rule, error) {
	env, err := g.do(ctx, request{op: OpCreateRule, method: http.MethodPost, path: "/api/rules", body: in})
	if err != nil {
		return model.Rule{}, err
	}
	var rule model.Rule
	if err := decodeData(OpCreateRule, env, &rule); err != nil {
		return model.Rule{}, err
	}
	if rule.ID.IsZero() {
		return model.Rule{}, &TransportError{Op: OpCreateRule, Err: fmt.Errorf("response carried no rule id")}
	}
	return rule, nil
}

func (g *Gateway) UpdateRule(ctx context.Context, rule model.Rule) (model.Rule, error) {
	if rule.ID.IsZero() {
		return model.Rule{}, NewValidationError("id", "rule has no id")
	}
	env, err := g.do(ctx, request{op: OpUpdateRule, method: http.MethodPut, path: rulePath(rule.ID), body: rule})
	if err != nil {
		return model.Rule{}, err
	}
	var updated model.Rule
	if err := decodeData(OpUpdateRule, env, &updated); err != nil {
		return model.Rule{}, err
	}
	if updated.ID.IsZero() {
		updated.ID = rule.ID
	}
	return updated, nil
}

func (g *Gateway) DeleteRule(ctx context.Context, id model.ID) error {
	_, err := g.do(ctx, request{op: OpDeleteRule, method: http.MethodDelete, path: rulePath(id)})
	return err
}

func (g *Gateway) TestRule(ctx context.Context, id model.ID) (model.TestOutcome, error) {
	env, err := g.do(ctx, request{op: OpTestRule, method: http.MethodPost, path: "/api/rules/test/" + url.PathEscape(id.String())})
	if err != nil {
		return model.TestOutcome{}, err
	}
	return model.TestOutcome{RuleID: id, Message: env.message()}, nil
}

// Alerts group

func (g *Gateway) ListAlerts(ctx context.Context, showResolved bool) ([]model.Alert, error) {
	env, err := g.do(ctx, request{
		op:     OpListAlerts,
		method: http.MethodGet,
		path:   "/api/alerts",
		query:  url.Values{"showResolved": []string{strconv.FormatBool(showResolved)}},
	})
	if err != nil {
		return nil, err
	}
	alerts := make([]model.Alert, 0)
	if err := decodeData(OpListAlerts, env, &alerts); err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = make([]model.Alert, 0)
	}
	return alerts, nil
}

func (g *Gateway) ResolveAlert(ctx context.Context, id model.ID) error {
	_, err := g.do(ctx, request{op: OpResolveAlert, method: http.MethodPut, path: alertPath(id, "resolve")})
	return err
}

func (g *Gateway) DismissAlert(ctx context.Context, id model.ID) error {
	_, err := g.do(ctx, request{op: OpDismissAlert, method: http.MethodPut, path: alertPath(id, "dismiss")})
	return err
}

// Traffic group

func (g *Gateway) TrafficAnalysis(ctx context.Context, r model.TimeRange) (model.TrafficSnapshot, error) {
	env, err := g.do(ctx, request{
		op:     OpTrafficAnalyze,
		method: http.MethodGet,
		path:   "/api/traffic/analysis",
		query:  url.Values{"range": []string{string(r)}},
	})
	if err != nil {
		return model.TrafficSnapshot{}, err
	}
	var snap model.TrafficSnapshot
	if err := decodeData(OpTrafficAnalyze, env, &snap); err != nil {
		return model.TrafficSnapshot{}, err
	}
	return snap, nil
}

// Generic group

// Do issues an authenticated request against path and decodes the data
// member of the response envelope into out (which may be nil).
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	env, err := g.do(ctx, request{op: OpGeneric, method: method, path: path, body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeData(OpGeneric, env, out)
}
