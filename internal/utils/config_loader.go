package utils

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"white-traffic-console/internal/model"

	"github.com/kelseyhightower/envconfig"
	prommodel "github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "configs/console.yaml"

type ConsoleConfig struct {
	API     APIYAMLConfig     `yaml:"api"`
	Client  ClientYAMLConfig  `yaml:"client"`
	Console ViewYAMLConfig    `yaml:"console"`
	Logging LoggingYAMLConfig `yaml:"logging"`
	Sandbox SandboxYAMLConfig `yaml:"sandbox"`
}

type APIYAMLConfig struct {
	BaseURL string `yaml:"base_url"`
}

type ClientYAMLConfig struct {
	// RequestTimeout uses Prometheus duration syntax. "0" keeps the
	// transport default; empty means 30s.
	RequestTimeout string `yaml:"request_timeout"`
	UserAgent      string `yaml:"user_agent"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Token          string `yaml:"token"`
}

type ViewYAMLConfig struct {
	DefaultRange string `yaml:"default_range"`
	ShowResolved bool   `yaml:"show_resolved"`
	NoColor      bool   `yaml:"no_color"`
}

type LoggingYAMLConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SandboxYAMLConfig struct {
	Port     string `yaml:"port"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SeedFile string `yaml:"seed_file"`
}

// Secrets are read from the environment and win over file values.
type Secrets struct {
	Token    string `envconfig:"CONSOLE_TOKEN"`
	Username string `envconfig:"CONSOLE_USERNAME"`
	Password string `envconfig:"CONSOLE_PASSWORD"`
	APIURL   string `envconfig:"CONSOLE_API_URL"`
}

func LoadConsoleConfig(filename string) (*ConsoleConfig, error) {
	if filename == "" {
		filename = DefaultConfigPath
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var config ConsoleConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file %s: %w", filename, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// LoadConsoleConfigOrDefault falls back to the defaults when the file does
// not exist. Any other read or parse failure is returned.
func LoadConsoleConfigOrDefault(filename string) (*ConsoleConfig, error) {
	cfg, err := LoadConsoleConfig(filename)
	if errors.Is(err, os.ErrNotExist) {
		return GetDefaultConsoleConfig(), nil
	}
	return cfg, err
}

func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to load secrets from environment: %w", err)
	}
	return &s, nil
}

// ApplySecrets overlays the non-empty secrets onto the config.
func (c *ConsoleConfig) ApplySecrets(s *Secrets) error {
	if s == nil {
		return nil
	}
	if s.APIURL != "" {
		c.API.BaseURL = s.APIURL
	}
	if s.Token != "" {
		c.Client.Token = s.Token
	}
	if s.Username != "" {
		c.Client.Username = s.Username
	}
	if s.Password != "" {
		c.Client.Password = s.Password
	}
	return c.Validate()
}

func (c *ConsoleConfig) Validate() error {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:5001"
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api base_url %q must be an absolute URL", c.API.BaseURL)
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")

	if c.Client.RequestTimeout == "" {
		c.Client.RequestTimeout = "30s"
	}
	if _, err := prommodel.ParseDuration(c.Client.RequestTimeout); err != nil {
		return fmt.Errorf("client request_timeout: %w", err)
	}
	if c.Client.UserAgent == "" {
		c.Client.UserAgent = "traffic-console"
	}

	if c.Console.DefaultRange == "" {
		c.Console.DefaultRange = string(model.DefaultRange)
	}
	if _, err := model.ParseTimeRange(c.Console.DefaultRange); err != nil {
		return fmt.Errorf("console default_range: %w", err)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Sandbox.Port == "" {
		c.Sandbox.Port = "5001"
	}
	if c.Sandbox.Username == "" {
		c.Sandbox.Username = "admin"
	}

	return nil
}

// RequestTimeout returns the parsed client timeout.
func (c *ConsoleConfig) RequestTimeout() time.Duration {
	d, err := prommodel.ParseDuration(c.Client.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return time.Duration(d)
}

// DefaultRange returns the configured initial traffic range.
func (c *ConsoleConfig) DefaultRange() model.TimeRange {
	r, err := model.ParseTimeRange(c.Console.DefaultRange)
	if err != nil {
		return model.DefaultRange
	}
	return r
}

// GetSandboxPort extracts the port from the sandbox listen address.
func (c *ConsoleConfig) GetSandboxPort() string {
	port := c.Sandbox.Port
	if strings.Contains(port, ":") {
		parts := strings.Split(port, ":")
		port = parts[len(parts)-1]
	}
	return port
}

func GetDefaultConsoleConfig() *ConsoleConfig {
	return &ConsoleConfig{
		API: APIYAMLConfig{
			BaseURL: "http://localhost:5001",
		},
		Client: ClientYAMLConfig{
			RequestTimeout: "30s",
			UserAgent:      "traffic-console",
		},
		Console: ViewYAMLConfig{
			DefaultRange: string(model.DefaultRange),
		},
		Logging: LoggingYAMLConfig{
			Level:  "INFO",
			Format: "text",
		},
		Sandbox: SandboxYAMLConfig{
			Port:     "5001",
			Username: "admin",
		},
	}
}
