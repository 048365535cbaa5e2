// Package config loads the daemon configuration from a TOML file and
// fills in workable defaults for everything the file leaves out.
package config

import (
	"fmt"
	"time"

	"github.com/midbel/toml"
	"github.com/signalsfoundry/skywatch/core"
	"github.com/signalsfoundry/skywatch/model"
)

// Duration decodes "90s" style strings from TOML and flags.
type Duration struct {
	time.Duration
}

// Set parses a Go duration string. It satisfies the setter interface
// the TOML decoder and the flag package share.
func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err == nil {
		d.Duration = v
	}
	return err
}

func (d *Duration) String() string {
	return d.Duration.String()
}

// Config is the complete daemon configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Observer Observer `toml:"observer"`
	Scan     Scan     `toml:"scan"`
	Weather  Weather  `toml:"weather"`
	Catalog  Catalog  `toml:"catalog"`
	Stream   Stream   `toml:"stream"`
	Log      Log      `toml:"log"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Listen        string   `toml:"listen"`
	MetricsListen string   `toml:"metrics_listen"`
	ReadTimeout   Duration `toml:"read_timeout"`
	ShutdownGrace Duration `toml:"shutdown_grace"`
}

// Observer is the initial observing site. It can be replaced at runtime
// through the API.
type Observer struct {
	Latitude   float64 `toml:"latitude"`
	Longitude  float64 `toml:"longitude"`
	AltitudeKm float64 `toml:"altitude_km"`
}

// Scan tunes pass prediction and the background cadences.
type Scan struct {
	RiseElevationDeg float64  `toml:"rise_elevation_deg"`
	MinDuration      Duration `toml:"min_duration"`
	Step             Duration `toml:"step"`
	Horizon          Duration `toml:"horizon"`
	RequireDark      bool     `toml:"require_dark"`
	RequireSunlit    bool     `toml:"require_sunlit"`

	// Every is the periodic full rescan cadence; LiveEvery drives the
	// live look-angle refresh.
	Every     Duration `toml:"every"`
	LiveEvery Duration `toml:"live_every"`
}

// Weather selects and tunes the cloud cover source.
type Weather struct {
	// Provider is static, http or off.
	Provider  string   `toml:"provider"`
	URL       string   `toml:"url"`
	StaticPct float64  `toml:"static_cover_pct"`
	CacheTTL  Duration `toml:"cache_ttl"`
	Refresh   Duration `toml:"refresh"`
}

// Catalog points at the target catalog file loaded on boot.
type Catalog struct {
	File string `toml:"file"`
}

// Stream tunes the SSE and WebSocket feeds.
type Stream struct {
	Interval  Duration `toml:"interval"`
	Keepalive Duration `toml:"keepalive"`
	// Rate and Burst gate new streams per client IP.
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

// Log mirrors the logging package's config.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is given: a
// Greenwich observer, static clear-sky weather and the standard
// visual-spotting scan.
func Default() Config {
	return Config{
		Server: Server{
			Listen:        ":8080",
			MetricsListen: ":9090",
			ReadTimeout:   Duration{10 * time.Second},
			ShutdownGrace: Duration{10 * time.Second},
		},
		Observer: Observer{
			Latitude:   51.4769,
			Longitude:  0.0005,
			AltitudeKm: 0.045,
		},
		Scan: Scan{
			RiseElevationDeg: core.DefaultRiseElevationDeg,
			MinDuration:      Duration{core.DefaultMinPassDuration},
			Step:             Duration{core.DefaultSampleStep},
			Horizon:          Duration{core.DefaultScanHorizon},
			RequireDark:      true,
			Every:            Duration{6 * time.Hour},
			LiveEvery:        Duration{5 * time.Second},
		},
		Weather: Weather{
			Provider:  "static",
			StaticPct: 0,
			CacheTTL:  Duration{30 * time.Minute},
			Refresh:   Duration{15 * time.Minute},
		},
		Stream: Stream{
			Interval:  Duration{2 * time.Second},
			Keepalive: Duration{15 * time.Second},
			Rate:      0.5,
			Burst:     4,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	if err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if err := c.Site().Validate(); err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	if c.Scan.RiseElevationDeg < 0 || c.Scan.RiseElevationDeg >= 90 {
		return fmt.Errorf("scan.rise_elevation_deg %.1f out of range [0, 90)", c.Scan.RiseElevationDeg)
	}
	if c.Scan.Step.Duration <= 0 {
		return fmt.Errorf("scan.step must be positive")
	}
	if c.Scan.Horizon.Duration < c.Scan.Step.Duration {
		return fmt.Errorf("scan.horizon shorter than scan.step")
	}
	switch c.Weather.Provider {
	case "static", "off":
	case "http":
		if c.Weather.URL == "" {
			return fmt.Errorf("weather.url required for the http provider")
		}
	default:
		return fmt.Errorf("weather.provider %q unknown, want static, http or off", c.Weather.Provider)
	}
	if c.Weather.StaticPct < 0 || c.Weather.StaticPct > 100 {
		return fmt.Errorf("weather.static_cover_pct %.1f out of range [0, 100]", c.Weather.StaticPct)
	}
	if c.Stream.Interval.Duration <= 0 {
		return fmt.Errorf("stream.interval must be positive")
	}
	return nil
}

// Site returns the configured observer as a model value.
func (c Config) Site() model.Observer {
	return model.Observer{
		Latitude:   c.Observer.Latitude,
		Longitude:  c.Observer.Longitude,
		AltitudeKm: c.Observer.AltitudeKm,
	}
}

// PassConfig maps the scan section onto the predictor configuration.
func (c Config) PassConfig() core.PassConfig {
	return core.PassConfig{
		RiseElevationDeg: c.Scan.RiseElevationDeg,
		MinDuration:      c.Scan.MinDuration.Duration,
		Step:             c.Scan.Step.Duration,
		Horizon:          c.Scan.Horizon.Duration,
		RequireDark:      c.Scan.RequireDark,
		RequireSunlit:    c.Scan.RequireSunlit,
		RefineCrossings:  true,
	}
}
