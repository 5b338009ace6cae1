// Package geo resolves free text and device positions into map locations.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/moodmap/internal/models"
)

// Place is a forward geocoding result.
type Place struct {
	Coords models.Coordinates
	Label  string
}

// Geocoder is the external geocoding provider.
type Geocoder interface {
	// Forward returns the best match for text, or a models.ErrNotFound failure.
	Forward(ctx context.Context, text string) (Place, error)
	// Reverse returns a label for coords, or "" when none is known.
	Reverse(ctx context.Context, coords models.Coordinates) (string, error)
}

// GoogleClient calls a Google-compatible geocoding JSON API.
type GoogleClient struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

// NewGoogleClient creates a client for the geocode endpoint at baseURL, e.g.
// https://maps.googleapis.com/maps/api/geocode/json.
func NewGoogleClient(baseURL, key string, httpClient *http.Client) *GoogleClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleClient{baseURL: baseURL, key: key, httpClient: httpClient}
}

type addressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

type geocodeResult struct {
	FormattedAddress  string             `json:"formatted_address"`
	AddressComponents []addressComponent `json:"address_components"`
	Geometry          struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

func (c *GoogleClient) query(ctx context.Context, params url.Values) ([]geocodeResult, error) {
	params.Set("key", c.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.Provider("geocoding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, models.Provider("geocoding request failed", fmt.Errorf("status %s", resp.Status))
	}
	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, models.Provider("geocoding response unreadable", err)
	}
	switch body.Status {
	case "OK":
		return body.Results, nil
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, models.Provider("geocoding rejected", fmt.Errorf("%s %s", body.Status, body.ErrorMessage))
	}
}

func (c *GoogleClient) Forward(ctx context.Context, text string) (Place, error) {
	results, err := c.query(ctx, url.Values{"address": {text}})
	if err != nil {
		return Place{}, err
	}
	if len(results) == 0 {
		return Place{}, models.NotFound(fmt.Sprintf("no place called %q", text))
	}
	best := results[0]
	return Place{
		Coords: models.Coordinates{Lat: best.Geometry.Location.Lat, Lng: best.Geometry.Location.Lng},
		Label:  labelOf(best),
	}, nil
}

func (c *GoogleClient) Reverse(ctx context.Context, coords models.Coordinates) (string, error) {
	latlng := strconv.FormatFloat(coords.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(coords.Lng, 'f', -1, 64)
	results, err := c.query(ctx, url.Values{"latlng": {latlng}})
	if err != nil || len(results) == 0 {
		return "", err
	}
	return labelOf(results[0]), nil
}

func labelOf(r geocodeResult) string {
	var locality, region, country string
	for _, comp := range r.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "locality", "postal_town":
				if locality == "" {
					locality = comp.LongName
				}
			case "administrative_area_level_1":
				region = comp.LongName
			case "country":
				country = comp.LongName
			}
		}
	}
	return FormatLabel(locality, region, country, r.FormattedAddress)
}

// FormatLabel joins locality, region and country. With fewer than two of them
// known it returns the provider's formatted address instead.
func FormatLabel(locality, region, country, formatted string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{locality, region, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return formatted
	}
	return strings.Join(parts, ", ")
}
