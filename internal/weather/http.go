package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/signalsfoundry/skywatch/model"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	forecastDateLayout = "2006-01-02"
)

// HTTPProvider fetches daily cloud cover from a JSON forecast endpoint.
// The endpoint receives lat, lon and date query parameters and answers
// with a forecast document; the point whose timestamp falls on the
// requested UTC day wins.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider for the given forecast endpoint.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// Name identifies the provider in logs.
func (p *HTTPProvider) Name() string { return "http" }

// forecastDocument mirrors the upstream JSON layout.
type forecastDocument struct {
	Provider  string          `json:"provider"`
	Location  string          `json:"location"`
	Forecasts []forecastPoint `json:"forecasts"`
	Updated   time.Time       `json:"updated"`
}

type forecastPoint struct {
	CloudCoverPct float64   `json:"cloudCoverPct"`
	Timestamp     time.Time `json:"timestamp"`
}

// CloudCover queries the endpoint for the observer's location and day.
// All failure modes wrap ErrUnavailable.
func (p *HTTPProvider) CloudCover(ctx context.Context, obs model.Observer, day time.Time) (float64, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return 0, fmt.Errorf("%w: bad endpoint %q: %v", ErrUnavailable, p.baseURL, err)
	}
	wantDate := day.UTC().Format(forecastDateLayout)
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(obs.Latitude, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(obs.Longitude, 'f', 4, 64))
	q.Set("date", wantDate)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: creating request: %v", ErrUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status %d from %s", ErrUnavailable, resp.StatusCode, p.baseURL)
	}

	var doc forecastDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return 0, fmt.Errorf("%w: decoding forecast: %v", ErrUnavailable, err)
	}

	for _, f := range doc.Forecasts {
		if f.Timestamp.UTC().Format(forecastDateLayout) != wantDate {
			continue
		}
		return clampPct(f.CloudCoverPct), nil
	}
	return 0, fmt.Errorf("%w: no forecast for %s", ErrUnavailable, wantDate)
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
