// Package weather fetches current conditions from weatherapi.com and keeps
// them in the shared cache for a few minutes.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/wedding-rsvp/internal/cache"
)

const (
	defaultBaseURL = "https://api.weatherapi.com"
	// CacheTTL bounds how stale the venue page's weather can be.
	CacheTTL = 10 * time.Minute
)

// ErrNoAPIKey means the client was built without a key.
var ErrNoAPIKey = errors.New("weather: no API key configured")

// Conditions is the current weather at a location.
type Conditions struct {
	TempC     float64 `json:"tempC"`
	Condition string  `json:"condition"`
	Icon      string  `json:"icon"`
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cache   cache.Cache
	logger  *slog.Logger
}

// NewClient builds a client. baseURL and httpClient may be empty/nil.
func NewClient(apiKey, baseURL string, httpClient *http.Client, c cache.Cache, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		cache:   c,
		logger:  logger,
	}
}

// Current returns the conditions at lat,lon, from the cache when fresh.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Conditions, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	q := fmt.Sprintf("%.4f,%.4f", lat, lon)
	key := "weather:" + q

	if raw, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var cond Conditions
		if err := json.Unmarshal(raw, &cond); err == nil {
			return &cond, nil
		}
	} else if err != nil {
		c.logger.Warn("weather cache read failed", slog.String("error", err.Error()))
	}

	cond, err := c.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(cond); err == nil {
		if err := c.cache.Set(ctx, key, raw, CacheTTL); err != nil {
			c.logger.Warn("weather cache write failed", slog.String("error", err.Error()))
		}
	}
	return cond, nil
}

func (c *Client) fetch(ctx context.Context, q string) (*Conditions, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", q)
	params.Set("days", "1")
	params.Set("aqi", "no")
	params.Set("alerts", "no")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: calling API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("weather: API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Current *struct {
			TempC     float64 `json:"temp_c"`
			Condition struct {
				Text string `json:"text"`
				Icon string `json:"icon"`
			} `json:"condition"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("weather: decoding response: %w", err)
	}
	if payload.Current == nil {
		return nil, errors.New("weather: response has no current conditions")
	}

	icon := payload.Current.Condition.Icon
	if strings.HasPrefix(icon, "//") {
		icon = "https:" + icon
	}
	return &Conditions{
		TempC:     payload.Current.TempC,
		Condition: payload.Current.Condition.Text,
		Icon:      icon,
	}, nil
}
