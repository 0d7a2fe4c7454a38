package retrieve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/terra-hawk/smartfarm/internal/farm/cache"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

var (
	ErrWeatherAPIKeyMissing = errors.New("weather api key not configured")
	ErrWeatherAPIKeyInvalid = errors.New("weather api key rejected")
	ErrUnknownLocation      = errors.New("weather location not found")
)

// WeatherClient fetches current conditions plus air quality from a
// weatherapi-compatible endpoint, caching per location so repeated
// runs within half an hour share one upstream call.
type WeatherClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	cache    *cache.Store
}

func NewWeatherClient(endpoint, apiKey string, store *cache.Store) *WeatherClient {
	return &WeatherClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
		cache:    store,
	}
}

// Current returns a JSON document with the observation fields the
// weather stage prompt consumes.
func (c *WeatherClient) Current(ctx context.Context, location string) (string, error) {
	if c.apiKey == "" {
		return "", ErrWeatherAPIKeyMissing
	}

	key := cache.Key("weather", location)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key, cache.Volatile); ok {
			logx.Debug().Str("location", location).Msg("weather served from cache")
			return cached, nil
		}
	}

	u := fmt.Sprintf("%s?key=%s&q=%s&aqi=yes", c.endpoint, url.QueryEscape(c.apiKey), url.QueryEscape(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", ErrWeatherAPIKeyInvalid
	case http.StatusBadRequest:
		return "", fmt.Errorf("%w: %q", ErrUnknownLocation, location)
	default:
		return "", fmt.Errorf("weather endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	doc, err := summarizeObservation(location, body)
	if err != nil {
		return "", err
	}
	if c.cache != nil {
		c.cache.Set(key, doc)
	}
	return doc, nil
}

type weatherResponse struct {
	Current struct {
		TempC     float64 `json:"temp_c"`
		FeelsLike float64 `json:"feelslike_c"`
		Humidity  float64 `json:"humidity"`
		WindKph   float64 `json:"wind_kph"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
		AirQuality map[string]float64 `json:"air_quality"`
	} `json:"current"`
}

func summarizeObservation(location string, body []byte) (string, error) {
	var wr weatherResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", fmt.Errorf("unexpected weather response format: %w", err)
	}
	out := map[string]any{
		"location":      location,
		"temperature_c": wr.Current.TempC,
		"feelslike_c":   wr.Current.FeelsLike,
		"condition":     wr.Current.Condition.Text,
		"humidity":      wr.Current.Humidity,
		"wind_kph":      wr.Current.WindKph,
		"air_quality": map[string]any{
			"us_epa_index": wr.Current.AirQuality["us-epa-index"],
			"pm2_5":        wr.Current.AirQuality["pm2_5"],
			"pm10":         wr.Current.AirQuality["pm10"],
			"o3":           wr.Current.AirQuality["o3"],
			"no2":          wr.Current.AirQuality["no2"],
			"so2":          wr.Current.AirQuality["so2"],
			"co":           wr.Current.AirQuality["co"],
		},
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
