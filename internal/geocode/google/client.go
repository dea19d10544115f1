// Package google implements the geocode.Geocoder port against the Google
// Geocoding API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"sightline/internal/geocode"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the Google Geocoding API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient
}

// Config defines settings for the geocoding client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// New creates a geocoding client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    base,
		httpClient: httpClient,
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress  string   `json:"formatted_address"`
		Types             []string `json:"types"`
		AddressComponents []struct {
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Geocode resolves free text through the Geocoding API. Zero matches is not
// an error; only transport and API-level failures are.
func (c *Client) Geocode(ctx context.Context, address string) ([]geocode.Candidate, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", c.apiKey)

	endpoint := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode API returned status %d", resp.StatusCode)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("geocode API status %s: %s", body.Status, body.ErrorMessage)
	}

	candidates := make([]geocode.Candidate, 0, len(body.Results))
	for _, result := range body.Results {
		candidate := geocode.Candidate{
			FormattedAddress: result.FormattedAddress,
			Lat:              result.Geometry.Location.Lat,
			Lng:              result.Geometry.Location.Lng,
			Types:            result.Types,
		}
		for _, component := range result.AddressComponents {
			for _, t := range component.Types {
				if t == "country" {
					candidate.Country = component.ShortName
				}
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}
