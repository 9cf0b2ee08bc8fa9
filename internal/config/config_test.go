package config

import (
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hamed0406/nickicker/internal/domain"
)

const sampleConfig = `
endpoints:
  - name: a.root-servers.net
    addresses: [198.41.0.4, "2001:503:ba3e::2:30"]
  - name: b.root-servers.net
    addresses: [170.247.170.2]
test_interval: 30m
outage_threshold: 2h
actions: [logbundle, reboot]
probe:
  method: tcp
  timeout: 3s
  tcp_port: 443
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nickicker.conf")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_ParsesDocument(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != path {
		t.Fatalf("source = %q, want %q", cfg.Source, path)
	}
	if cfg.TestInterval.Std() != 30*time.Minute || cfg.OutageThreshold.Std() != 2*time.Hour {
		t.Fatalf("durations wrong: %s / %s", cfg.TestInterval, cfg.OutageThreshold)
	}
	if diff := cmp.Diff([]string{"logbundle", "reboot"}, cfg.Actions); diff != "" {
		t.Fatalf("actions (-want +got):\n%s", diff)
	}
	if cfg.Probe.Method != ProbeTCP || cfg.Probe.TCPPort != 443 || cfg.Probe.Timeout.Std() != 3*time.Second {
		t.Fatalf("probe config wrong: %+v", cfg.Probe)
	}
	// untouched keys keep their defaults
	if cfg.ActionTimeout.Std() != 5*time.Minute || cfg.Probe.Concurrency != 8 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	want := []domain.Endpoint{
		{Name: "a.root-servers.net", Addresses: []netip.Addr{
			netip.MustParseAddr("198.41.0.4"), netip.MustParseAddr("2001:503:ba3e::2:30"),
		}},
		{Name: "b.root-servers.net", Addresses: []netip.Addr{netip.MustParseAddr("170.247.170.2")}},
	}
	if diff := cmp.Diff(want, cfg.DomainEndpoints(), cmp.Comparer(func(a, b netip.Addr) bool { return a == b })); diff != "" {
		t.Fatalf("endpoints (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != "" {
		t.Fatalf("expected defaults, got source %q", cfg.Source)
	}
	if len(cfg.Endpoints) != 2 || cfg.TestInterval.Std() != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_MalformedDocumentIsError(t *testing.T) {
	path := writeConfig(t, "endpoints: [\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EmptyEndpointsIsFatal(t *testing.T) {
	cases := map[string]string{
		"omitted":  "test_interval: 30m\noutage_threshold: 2h\n",
		"explicit": "endpoints: []\ntest_interval: 30m\noutage_threshold: 2h\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if !errors.Is(err, ErrNoEndpoints) {
				t.Fatalf("want ErrNoEndpoints, got %v", err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Endpoints = []EndpointConfig{
		{Name: "x", Addresses: []string{"not-an-ip"}},
		{Name: "x", Addresses: []string{"10.0.0.1"}},
	}
	cfg.TestInterval = 0
	cfg.OutageThreshold = Duration(-time.Minute)
	cfg.Probe.Method = "carrier-pigeon"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("want ErrInvalidDuration in %v", err)
	}
	for _, frag := range []string{"invalid address", "duplicate name", "test_interval", "outage_threshold", "carrier-pigeon"} {
		if !strings.Contains(err.Error(), frag) {
			t.Errorf("error %q does not mention %q", err, frag)
		}
	}
}

func TestValidate_ProbeTimeoutMustBeShorterThanInterval(t *testing.T) {
	cfg := Default()
	cfg.TestInterval = Duration(5 * time.Second)
	cfg.Probe.Timeout = Duration(5 * time.Second)
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "shorter than test_interval") {
		t.Fatalf("want timeout/interval error, got %v", err)
	}
}

func TestValidate_EndpointWithoutAddressesIsAllowed(t *testing.T) {
	cfg := Default()
	cfg.Endpoints = append(cfg.Endpoints, EndpointConfig{Name: "empty"})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30m", 30 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"1h30m", 90 * time.Minute, false},
		{"45s", 45 * time.Second, false},
		{"1800", 30 * time.Minute, false},
		{"", 0, true},
		{"soon", 0, true},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("ParseDuration(%q) err=%v wantErr=%v", c.in, err, c.wantErr)
		}
		if got != c.want {
			t.Fatalf("ParseDuration(%q)=%s want %s", c.in, got, c.want)
		}
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv("NICKICKER_LOG_DIR", "./_testlogs")
	t.Setenv("NICKICKER_LOG_LEVEL", "debug")
	t.Setenv("NICKICKER_STATUS_ADDR", "127.0.0.1:9100")
	t.Setenv("NICKICKER_PROBE_TIMEOUT", "2s")
	t.Setenv("NICKICKER_API_KEYS", "k1, k2")
	t.Setenv("NICKICKER_WEBHOOK_URL", "https://hooks.example.com/x")

	cfg := Default()
	applyEnv(&cfg)

	if cfg.LogDir != "./_testlogs" || cfg.LogLevel != "debug" || cfg.StatusAddr != "127.0.0.1:9100" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Probe.Timeout.Std() != 2*time.Second {
		t.Fatalf("probe timeout = %s", cfg.Probe.Timeout)
	}
	if diff := cmp.Diff([]string{"k1", "k2"}, cfg.APIKeys); diff != "" {
		t.Fatalf("api keys (-want +got):\n%s", diff)
	}
	if cfg.Webhook.URL != "https://hooks.example.com/x" {
		t.Fatalf("webhook url = %q", cfg.Webhook.URL)
	}
}
