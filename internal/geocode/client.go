package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"coalition/internal/address"
)

// Client resolves addresses against a Census-style geocoding API. It maps
// provider failures onto the typed error kinds; retry policy belongs to the
// caller (the enrichment worker), not the client.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

// layer identifiers for congressional, state upper, and state lower districts.
const geographyLayers = "54,56,58"

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tracer:  otel.Tracer("coalition/geocode"),
	}
}

type censusResponse struct {
	Result struct {
		AddressMatches []censusMatch `json:"addressMatches"`
		Geographies    geographies   `json:"geographies"`
	} `json:"result"`
}

type censusMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	Geographies geographies `json:"geographies"`
}

type geographies map[string][]struct {
	Name   string `json:"NAME"`
	GeoID  string `json:"GEOID"`
	State  string `json:"STATE"`
	Stusab string `json:"STUSAB"`
}

func (c *Client) Resolve(ctx context.Context, addr address.Normalized) (*Enrichment, error) {
	ctx, span := c.tracer.Start(ctx, "geocode.Resolve")
	defer span.End()

	oneLine := fmt.Sprintf("%s, %s, %s %s", addr.Street, addr.City, addr.State, addr.ZIP)
	span.SetAttributes(attribute.String("geocode.state", addr.State))

	query := url.Values{
		"address":   {oneLine},
		"benchmark": {"Public_AR_Current"},
		"vintage":   {"Current_Current"},
		"layers":    {geographyLayers},
		"format":    {"json"},
	}
	var resp censusResponse
	if err := c.get(ctx, "/geocoder/geographies/onelineaddress", query, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result.AddressMatches) == 0 {
		return nil, newError(KindAddressNotFound, nil)
	}
	match := resp.Result.AddressMatches[0]
	enrichment := fromGeographies(match.Geographies)
	enrichment.Latitude = match.Coordinates.Y
	enrichment.Longitude = match.Coordinates.X
	return enrichment, nil
}

func (c *Client) Districts(ctx context.Context, lat, lng float64) (*Enrichment, error) {
	ctx, span := c.tracer.Start(ctx, "geocode.Districts")
	defer span.End()

	query := url.Values{
		"x":         {strconv.FormatFloat(lng, 'f', -1, 64)},
		"y":         {strconv.FormatFloat(lat, 'f', -1, 64)},
		"benchmark": {"Public_AR_Current"},
		"vintage":   {"Current_Current"},
		"layers":    {geographyLayers},
		"format":    {"json"},
	}
	var resp censusResponse
	if err := c.get(ctx, "/geocoder/geographies/coordinates", query, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result.Geographies) == 0 {
		return nil, newError(KindAddressNotFound, nil)
	}
	enrichment := fromGeographies(resp.Result.Geographies)
	enrichment.Latitude = lat
	enrichment.Longitude = lng
	return enrichment, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return newError(KindServiceUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return newError(KindServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return newError(KindRateLimited, nil)
	case resp.StatusCode >= 500:
		return newError(KindServiceUnavailable, fmt.Errorf("provider returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return newError(KindAddressNotFound, fmt.Errorf("provider returned %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(KindServiceUnavailable, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// fromGeographies picks the district layers out of the provider response by
// layer-name substring, tolerating vintage renames ("118th Congressional
// Districts" vs "119th ...").
func fromGeographies(geos geographies) *Enrichment {
	e := &Enrichment{}
	for layer, entries := range geos {
		if len(entries) == 0 {
			continue
		}
		entry := entries[0]
		switch {
		case strings.Contains(layer, "Congressional"):
			e.CongressionalDistrict = entry.Name
		case strings.Contains(layer, "Upper"):
			e.StateSenateDistrict = entry.Name
		case strings.Contains(layer, "Lower"):
			e.StateHouseDistrict = entry.Name
		case strings.Contains(layer, "Counties"):
			e.County = entry.Name
		case strings.Contains(layer, "States"):
			e.State = entry.Stusab
		}
	}
	return e
}
