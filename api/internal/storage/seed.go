package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"white-traffic-console/internal/model"

	prommodel "github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// Seed is the initial sandbox content. Ages are Prometheus durations
// measured back from load time so the data never goes stale.
type Seed struct {
	Rules   []SeedRule   `yaml:"rules" json:"rules"`
	Alerts  []SeedAlert  `yaml:"alerts" json:"alerts"`
	Traffic []SeedSample `yaml:"traffic" json:"traffic"`
}

type SeedRule struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Conditions  string `yaml:"conditions" json:"conditions"`
	Active      bool   `yaml:"active" json:"active"`
}

type SeedAlert struct {
	Title       string         `yaml:"title" json:"title"`
	Description string         `yaml:"description" json:"description"`
	Severity    string         `yaml:"severity" json:"severity"`
	Age         string         `yaml:"age" json:"age"`
	Resolved    bool           `yaml:"resolved" json:"resolved"`
	Details     map[string]any `yaml:"details,omitempty" json:"details,omitempty"`
	Suggestion  string         `yaml:"suggestion,omitempty" json:"suggestion,omitempty"`
}

type SeedSample struct {
	Age       string `yaml:"age" json:"age"`
	Source    string `yaml:"source" json:"source"`
	White     int64  `yaml:"white" json:"white"`
	Filtered  int64  `yaml:"filtered" json:"filtered"`
	Malicious int64  `yaml:"malicious" json:"malicious"`
}

// LoadSeedFromJSON loads a seed from a JSON file
func LoadSeedFromJSON(filename string) (*Seed, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// LoadSeedFromYAML loads a seed from a YAML file
func LoadSeedFromYAML(filename string) (*Seed, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML seed file: %w", err)
	}
	return &seed, nil
}

// LoadSeed detects the file format from the extension and loads the seed.
func LoadSeed(filename string) (*Seed, error) {
	if filename == "" {
		return nil, fmt.Errorf("seed file path is empty")
	}

	switch {
	case strings.HasSuffix(filename, ".yaml"), strings.HasSuffix(filename, ".yml"):
		return LoadSeedFromYAML(filename)
	case strings.HasSuffix(filename, ".json"):
		return LoadSeedFromJSON(filename)
	}

	// Default: try YAML first, fallback to JSON
	if seed, err := LoadSeedFromYAML(filename); err == nil {
		return seed, nil
	}
	return LoadSeedFromJSON(filename)
}

// Apply stores the seed content, resolving ages against the storage clock.
func (s *Storage) Apply(seed *Seed) error {
	s.mu.RLock()
	now := s.now()
	s.mu.RUnlock()

	for _, r := range seed.Rules {
		s.AddRule(model.NewRuleInput{
			Name:        r.Name,
			Description: r.Description,
			Conditions:  r.Conditions,
			Active:      r.Active,
		})
	}

	for _, a := range seed.Alerts {
		ts, err := ago(now, a.Age)
		if err != nil {
			return fmt.Errorf("alert %q: %w", a.Title, err)
		}
		sev := model.Severity(strings.ToLower(a.Severity))
		if !sev.Valid() {
			return fmt.Errorf("alert %q: unknown severity %q", a.Title, a.Severity)
		}
		alert := model.Alert{
			Title:       a.Title,
			Description: a.Description,
			Severity:    sev,
			Timestamp:   ts,
			Resolved:    a.Resolved,
			Suggestion:  a.Suggestion,
		}
		if len(a.Details) > 0 {
			raw, err := json.Marshal(a.Details)
			if err != nil {
				return fmt.Errorf("alert %q details: %w", a.Title, err)
			}
			alert.Details = raw
		}
		s.AddAlert(alert)
	}

	for _, t := range seed.Traffic {
		ts, err := ago(now, t.Age)
		if err != nil {
			return fmt.Errorf("traffic sample for %s: %w", t.Source, err)
		}
		s.AddSample(TrafficSample{
			Timestamp: ts,
			Source:    t.Source,
			White:     t.White,
			Filtered:  t.Filtered,
			Malicious: t.Malicious,
		})
	}

	s.logger.Infof("Seeded %d rules, %d alerts, %d traffic samples", len(seed.Rules), len(seed.Alerts), len(seed.Traffic))
	return nil
}

func ago(now time.Time, age string) (time.Time, error) {
	if age == "" {
		return now, nil
	}
	d, err := prommodel.ParseDuration(age)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid age %q: %w", age, err)
	}
	return now.Add(-time.Duration(d)), nil
}

// DefaultSeed returns a small deterministic data set covering every range.
func DefaultSeed() *Seed {
	seed := &Seed{
		Rules: []SeedRule{
			{
				Name:        "office-network",
				Description: "Allow traffic from the office subnet",
				Conditions:  `{"ip_range": "192.168.1.0/24"}`,
				Active:      true,
			},
			{
				Name:        "monitoring-agents",
				Description: "Allow uptime probes",
				Conditions:  `{"user_agent": "UptimeRobot"}`,
				Active:      false,
			},
		},
		Alerts: []SeedAlert{
			{
				Title:       "Traffic spike from 203.0.113.7",
				Description: "Request rate exceeded 5x the hourly baseline",
				Severity:    "high",
				Age:         "20m",
				Details:     map[string]any{"source": "203.0.113.7", "requests_per_minute": 4200},
				Suggestion:  "Block the source address or add a rate limit rule",
			},
			{
				Title:       "Unknown user agent",
				Description: "Requests with an unrecognised user agent were filtered",
				Severity:    "medium",
				Age:         "3h",
			},
			{
				Title:       "Rule set reloaded",
				Description: "Filter rules were reloaded after a configuration change",
				Severity:    "low",
				Age:         "2d",
				Resolved:    true,
			},
		},
	}

	sources := []string{"192.168.1.10", "192.168.1.24", "10.0.0.5", "203.0.113.7"}
	for h := 0; h < 30*24; h++ {
		for i, src := range sources {
			base := int64(40 + (h*7+i*13)%60)
			seed.Traffic = append(seed.Traffic, SeedSample{
				Age:       fmt.Sprintf("%dm", h*60+10+i*10),
				Source:    src,
				White:     base * int64(4-i),
				Filtered:  base / 4,
				Malicious: int64((h + i) % 5),
			})
		}
	}
	return seed
}
