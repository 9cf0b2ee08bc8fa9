package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/nickicker/internal/domain"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "/etc/nickicker.conf"

// Probe methods.
const (
	ProbeICMP    = "icmp"
	ProbeTCP     = "tcp"
	ProbeICMPTCP = "icmp+tcp"
	ProbeDNS     = "dns"
)

var ErrNoEndpoints = errors.New("no endpoints configured")

type EndpointConfig struct {
	Name      string   `yaml:"name"`
	Addresses []string `yaml:"addresses"`
}

type ProbeConfig struct {
	Method       string   `yaml:"method"`       // icmp | tcp | icmp+tcp | dns
	Timeout      Duration `yaml:"timeout"`      // per address, must be < test_interval
	TCPPort      int      `yaml:"tcp_port"`     // used by tcp probing
	DNSQuery     string   `yaml:"dns_query"`    // name asked of each address with the dns method
	Retries      int      `yaml:"retries"`      // extra attempts per address
	RetryBackoff Duration `yaml:"retry_backoff"`
	Privileged   *bool    `yaml:"privileged"` // nil = let the pinger decide
	Concurrency  int      `yaml:"concurrency"`
}

type LogBundleConfig struct {
	Dir   string   `yaml:"dir"`
	Files []string `yaml:"files"`
}

type RebootConfig struct {
	Method  string   `yaml:"method"` // command | syscall
	Command []string `yaml:"command"`
}

type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

type WebhookConfig struct {
	URL string `yaml:"url"`
}

type Config struct {
	Endpoints       []EndpointConfig `yaml:"endpoints"`
	TestInterval    Duration         `yaml:"test_interval"`
	OutageThreshold Duration         `yaml:"outage_threshold"`
	Actions         []string         `yaml:"actions"`
	RecoveryActions []string         `yaml:"recovery_actions"`
	ActionTimeout   Duration         `yaml:"action_timeout"`

	Probe ProbeConfig `yaml:"probe"`

	LogDir      string `yaml:"log_dir"`
	LogLevel    string `yaml:"log_level"`
	HistorySize int    `yaml:"history_size"`

	StatusAddr string   `yaml:"status_addr"` // empty disables the status API
	APIKeys    []string `yaml:"api_keys"`
	// AllowedOrigins for CORS on the status API; empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	LogBundle LogBundleConfig `yaml:"logbundle"`
	Reboot    RebootConfig    `yaml:"reboot"`
	Email     EmailConfig     `yaml:"email"`
	Webhook   WebhookConfig   `yaml:"webhook"`

	// Source is the file the config was read from, or "" for built-in defaults.
	Source string `yaml:"-"`
}

// Default is used when no configuration file exists.
func Default() Config {
	return Config{
		Endpoints: []EndpointConfig{
			{Name: "a.root-servers.net", Addresses: []string{"198.41.0.4", "2001:503:ba3e::2:30"}},
			{Name: "b.root-servers.net", Addresses: []string{"170.247.170.2", "2801:1b8:10::b"}},
		},
		TestInterval:    Duration(30 * time.Minute),
		OutageThreshold: Duration(2 * time.Hour),
		Actions:         []string{"logbundle"},
		ActionTimeout:   Duration(5 * time.Minute),
		Probe: ProbeConfig{
			Method:       ProbeICMP,
			Timeout:      Duration(5 * time.Second),
			TCPPort:      53,
			DNSQuery:     ".",
			RetryBackoff: Duration(300 * time.Millisecond),
			Concurrency:  8,
		},
		LogDir:      "/var/log",
		LogLevel:    "info",
		HistorySize: 512,
		LogBundle: LogBundleConfig{
			Dir:   os.TempDir(),
			Files: []string{"/var/log/nickickerd.log", "/var/log/messages", "/var/log/syslog"},
		},
		Reboot: RebootConfig{Method: "command", Command: []string{"reboot"}},
		Email:  EmailConfig{Port: 587},
	}
}

// Load reads the YAML document at path. A missing file falls back to Default;
// a file that cannot be read or parsed is an error. The result is validated.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		applyEnv(&cfg)
		return cfg, cfg.Validate()
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return Config{}, err
	}
	cfg.Source = path
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a configuration document on top of the defaults. Endpoints and
// actions are never inherited from the defaults: a document without endpoints
// is invalid and one without actions runs none.
func Parse(content []byte) (Config, error) {
	cfg := Default()
	cfg.Endpoints = nil
	cfg.Actions = nil
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem found, combined into one error.
func (c Config) Validate() error {
	var err error

	if len(c.Endpoints) == 0 {
		err = multierr.Append(err, ErrNoEndpoints)
	}
	seen := make(map[string]bool, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		name := strings.TrimSpace(ep.Name)
		if name == "" {
			err = multierr.Append(err, fmt.Errorf("endpoint %d: name is required", i))
		} else if seen[name] {
			err = multierr.Append(err, fmt.Errorf("endpoint %q: duplicate name", name))
		}
		seen[name] = true
		for _, a := range ep.Addresses {
			if _, perr := netip.ParseAddr(strings.TrimSpace(a)); perr != nil {
				err = multierr.Append(err, fmt.Errorf("endpoint %q: invalid address %q", name, a))
			}
		}
	}

	if c.TestInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("test_interval: %w: must be positive", ErrInvalidDuration))
	}
	if c.OutageThreshold <= 0 {
		err = multierr.Append(err, fmt.Errorf("outage_threshold: %w: must be positive", ErrInvalidDuration))
	}
	if c.ActionTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("action_timeout: %w: must be positive", ErrInvalidDuration))
	}
	if c.Probe.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("probe.timeout: %w: must be positive", ErrInvalidDuration))
	} else if c.TestInterval > 0 && c.Probe.Timeout >= c.TestInterval {
		err = multierr.Append(err, fmt.Errorf("probe.timeout (%s) must be shorter than test_interval (%s)",
			c.Probe.Timeout, c.TestInterval))
	}

	switch c.Probe.Method {
	case ProbeICMP:
	case ProbeDNS:
		if strings.TrimSpace(c.Probe.DNSQuery) == "" {
			err = multierr.Append(err, errors.New("probe.dns_query: must not be empty"))
		}
	case ProbeTCP, ProbeICMPTCP:
		if c.Probe.TCPPort < 1 || c.Probe.TCPPort > 65535 {
			err = multierr.Append(err, fmt.Errorf("probe.tcp_port: %d out of range", c.Probe.TCPPort))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("probe.method: unknown method %q", c.Probe.Method))
	}
	if c.Probe.Retries < 0 {
		err = multierr.Append(err, fmt.Errorf("probe.retries: must be >= 0, got %d", c.Probe.Retries))
	}
	if c.Probe.Concurrency < 0 {
		err = multierr.Append(err, fmt.Errorf("probe.concurrency: must be >= 0, got %d", c.Probe.Concurrency))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if c.HistorySize < 1 {
		err = multierr.Append(err, fmt.Errorf("history_size: must be >= 1, got %d", c.HistorySize))
	}
	switch c.Reboot.Method {
	case "command":
		if len(c.Reboot.Command) == 0 {
			err = multierr.Append(err, errors.New("reboot.command: must not be empty"))
		}
	case "syscall":
	default:
		err = multierr.Append(err, fmt.Errorf("reboot.method: unknown method %q", c.Reboot.Method))
	}

	return err
}

// DomainEndpoints converts the validated endpoint list.
func (c Config) DomainEndpoints() []domain.Endpoint {
	out := make([]domain.Endpoint, 0, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		d := domain.Endpoint{Name: strings.TrimSpace(ep.Name)}
		for _, a := range ep.Addresses {
			if addr, err := netip.ParseAddr(strings.TrimSpace(a)); err == nil {
				d.Addresses = append(d.Addresses, addr)
			}
		}
		out = append(out, d)
	}
	return out
}

// applyEnv lets the environment override deployment-specific values.
func applyEnv(c *Config) {
	c.LogDir = getenv("NICKICKER_LOG_DIR", c.LogDir)
	c.LogLevel = getenv("NICKICKER_LOG_LEVEL", c.LogLevel)
	c.StatusAddr = getenv("NICKICKER_STATUS_ADDR", c.StatusAddr)
	c.Probe.Method = getenv("NICKICKER_PROBE_METHOD", c.Probe.Method)
	c.Probe.Timeout = Duration(mustDuration("NICKICKER_PROBE_TIMEOUT", c.Probe.Timeout.Std()))
	c.HistorySize = getenvInt("NICKICKER_HISTORY_SIZE", c.HistorySize)
	c.Email.Password = getenv("NICKICKER_SMTP_PASSWORD", c.Email.Password)
	c.Webhook.URL = getenv("NICKICKER_WEBHOOK_URL", c.Webhook.URL)
	if origins := splitAndTrim(os.Getenv("NICKICKER_ALLOWED_ORIGINS")); len(origins) > 0 {
		c.AllowedOrigins = origins
	}
	if keys := splitAndTrim(os.Getenv("NICKICKER_API_KEYS")); len(keys) > 0 {
		c.APIKeys = keys
	}
}

// helpers
func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
