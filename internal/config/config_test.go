package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skywatch.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("default listen = %q", cfg.Server.Listen)
	}
	if !cfg.Scan.RequireDark {
		t.Fatalf("default scan does not require darkness")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Scan.Step.Duration != 30*time.Second {
		t.Fatalf("default step = %v", cfg.Scan.Step.Duration)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
listen = ":7000"

[observer]
latitude = 37.386
longitude = -122.084
altitude_km = 0.04

[scan]
rise_elevation_deg = 15.0
step = "10s"
horizon = "48h"

[weather]
provider = "http"
url = "http://wx.example.net/forecast"

[stream]
interval = "1s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Listen != ":7000" {
		t.Fatalf("listen = %q, want :7000", cfg.Server.Listen)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.MetricsListen != ":9090" {
		t.Fatalf("metrics_listen = %q, want default :9090", cfg.Server.MetricsListen)
	}
	if cfg.Observer.Latitude != 37.386 {
		t.Fatalf("latitude = %v", cfg.Observer.Latitude)
	}
	if cfg.Scan.Step.Duration != 10*time.Second {
		t.Fatalf("step = %v, want 10s", cfg.Scan.Step.Duration)
	}
	if cfg.Scan.Horizon.Duration != 48*time.Hour {
		t.Fatalf("horizon = %v, want 48h", cfg.Scan.Horizon.Duration)
	}
	if cfg.Weather.Provider != "http" || cfg.Weather.URL == "" {
		t.Fatalf("weather = %+v", cfg.Weather)
	}
	if cfg.Stream.Interval.Duration != time.Second {
		t.Fatalf("stream interval = %v", cfg.Stream.Interval.Duration)
	}

	pc := cfg.PassConfig()
	if pc.RiseElevationDeg != 15 || pc.Step != 10*time.Second {
		t.Fatalf("pass config = %+v", pc)
	}
	if !pc.RefineCrossings {
		t.Fatalf("pass config should refine crossings")
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "bad latitude",
			body: "[observer]\nlatitude = 95.0\n",
			want: "observer",
		},
		{
			name: "http without url",
			body: "[weather]\nprovider = \"http\"\n",
			want: "weather.url",
		},
		{
			name: "unknown provider",
			body: "[weather]\nprovider = \"psychic\"\n",
			want: "weather.provider",
		},
		{
			name: "zero step",
			body: "[scan]\nstep = \"0s\"\n",
			want: "scan.step",
		},
		{
			name: "horizon below step",
			body: "[scan]\nstep = \"1h\"\nhorizon = \"30m\"\n",
			want: "scan.horizon",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatalf("Load() accepted %q", tc.body)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %s", err, tc.want)
			}
		})
	}
}

func TestDurationSet(t *testing.T) {
	var d Duration
	if err := d.Set("90s"); err != nil {
		t.Fatalf("Set(90s) error = %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Fatalf("duration = %v", d.Duration)
	}
	if err := d.Set("soon"); err == nil {
		t.Fatalf("Set(soon) accepted")
	}
	if d.String() != "1m30s" {
		t.Fatalf("String() = %q", d.String())
	}
}
