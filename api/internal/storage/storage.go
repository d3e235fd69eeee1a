package storage

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"white-traffic-console/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TrafficSample is one aggregated observation for a traffic source.
type TrafficSample struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	White     int64     `json:"white"`
	Filtered  int64     `json:"filtered"`
	Malicious int64     `json:"malicious"`
}

// Storage is the sandbox backend's in-memory state.
type Storage struct {
	mu         sync.RWMutex
	rules      []model.Rule
	nextRuleID int64
	alerts     []model.Alert
	dismissed  map[model.ID]bool
	samples    []TrafficSample
	users      map[string]string
	maxAlerts  int
	maxSamples int
	logger     *logrus.Logger
	now        func() time.Time
}

func NewStorage(logger *logrus.Logger) *Storage {
	return &Storage{
		rules:      make([]model.Rule, 0),
		nextRuleID: 1,
		alerts:     make([]model.Alert, 0),
		dismissed:  make(map[model.ID]bool),
		samples:    make([]TrafficSample, 0),
		users:      make(map[string]string),
		maxAlerts:  10000, // Keep last 10k alerts
		maxSamples: 50000, // Keep last 50k samples
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the time source used for range bucketing.
func (s *Storage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// User methods

// AddUser registers an account. It reports false when the name is taken.
func (s *Storage) AddUser(username, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return false
	}
	s.users[username] = password
	return true
}

func (s *Storage) CheckUser(username, password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.users[username]
	return ok && stored == password
}

// Rule methods

func (s *Storage) GetRules() []model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

func (s *Storage) GetRuleByID(id model.ID) *model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			rule := s.rules[i]
			return &rule
		}
	}
	return nil
}

// AddRule stores a new rule under the next numeric id.
func (s *Storage) AddRule(in model.NewRuleInput) model.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule := model.Rule{
		ID:          model.ID(strconv.FormatInt(s.nextRuleID, 10)),
		Name:        in.Name,
		Description: in.Description,
		Conditions:  in.Conditions,
		Active:      in.Active,
	}
	s.nextRuleID++
	s.rules = append(s.rules, rule)
	s.logger.Debugf("Stored rule %s (%s)", rule.ID, rule.Name)
	return rule
}

// UpdateRule replaces every field of the rule but its id.
func (s *Storage) UpdateRule(id model.ID, updates model.Rule) (model.Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			updates.ID = id
			s.rules[i] = updates
			return updates, true
		}
	}
	return model.Rule{}, false
}

func (s *Storage) DeleteRule(id model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return true
		}
	}
	return false
}

type RulesStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

func (s *Storage) GetRulesStats() RulesStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := RulesStats{Total: len(s.rules)}
	for _, r := range s.rules {
		if r.Active {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}
	return stats
}

// Alert methods

// AddAlert stores an alert, assigning an id and timestamp when missing.
func (s *Storage) AddAlert(alert model.Alert) model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	if alert.ID.IsZero() {
		alert.ID = model.ID(uuid.NewString())
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = s.now()
	}

	s.alerts = append(s.alerts, alert)

	// Keep only last maxAlerts
	if len(s.alerts) > s.maxAlerts {
		s.alerts = s.alerts[len(s.alerts)-s.maxAlerts:]
	}
	return alert
}

// GetAlerts returns the non-dismissed alerts, newest first. Resolved alerts
// are included only when showResolved is set.
func (s *Storage) GetAlerts(showResolved bool) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if s.dismissed[a.ID] {
			continue
		}
		if a.Resolved && !showResolved {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (s *Storage) GetAlertByID(id model.ID) *model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dismissed[id] {
		return nil
	}
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			alert := s.alerts[i]
			return &alert
		}
	}
	return nil
}

// ResolveAlert marks an alert resolved. Dismissed alerts are not found.
func (s *Storage) ResolveAlert(id model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dismissed[id] {
		return false
	}
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Resolved = true
			return true
		}
	}
	return false
}

// DismissAlert hides an alert from every listing. A second dismiss of the
// same id is not found.
func (s *Storage) DismissAlert(id model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dismissed[id] {
		return false
	}
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.dismissed[id] = true
			return true
		}
	}
	return false
}

// Traffic methods

func (s *Storage) AddSample(sample TrafficSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = s.now()
	}
	s.samples = append(s.samples, sample)
	if len(s.samples) > s.maxSamples {
		s.samples = s.samples[len(s.samples)-s.maxSamples:]
	}
}

type bucketing struct {
	count  int
	width  time.Duration
	layout string
}

var rangeBuckets = map[model.TimeRange]bucketing{
	model.Range1h:  {count: 12, width: 5 * time.Minute, layout: "15:04"},
	model.Range24h: {count: 24, width: time.Hour, layout: "15:04"},
	model.Range7d:  {count: 7, width: 24 * time.Hour, layout: "01-02"},
	model.Range30d: {count: 30, width: 24 * time.Hour, layout: "01-02"},
}

// Analyze aggregates the samples that fall inside the range ending now.
// Sources are ordered by descending count, then name.
func (s *Storage) Analyze(r model.TimeRange) model.TrafficSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := rangeBuckets[r]
	if !ok {
		b = rangeBuckets[model.DefaultRange]
	}
	end := s.now()
	start := end.Add(-time.Duration(b.count) * b.width)

	snap := model.TrafficSnapshot{
		Trends:  make([]model.TrendPoint, b.count),
		Sources: make([]model.SourceCount, 0),
	}
	for i := range snap.Trends {
		snap.Trends[i].Time = start.Add(time.Duration(i) * b.width).Format(b.layout)
	}

	perSource := make(map[string]int64)
	for _, sample := range s.samples {
		if sample.Timestamp.Before(start) || !sample.Timestamp.Before(end) {
			continue
		}
		i := int(sample.Timestamp.Sub(start) / b.width)
		if i >= b.count {
			i = b.count - 1
		}
		total := sample.White + sample.Filtered + sample.Malicious
		p := &snap.Trends[i]
		p.White += sample.White
		p.Filtered += sample.Filtered
		p.Malicious += sample.Malicious
		p.Total += total

		snap.White += sample.White
		snap.Filtered += sample.Filtered
		snap.Malicious += sample.Malicious
		snap.Total += total
		perSource[sample.Source] += total
	}

	for src, count := range perSource {
		snap.Sources = append(snap.Sources, model.SourceCount{Source: src, Count: count})
	}
	sort.Slice(snap.Sources, func(i, j int) bool {
		if snap.Sources[i].Count != snap.Sources[j].Count {
			return snap.Sources[i].Count > snap.Sources[j].Count
		}
		return snap.Sources[i].Source < snap.Sources[j].Source
	})
	return snap
}
