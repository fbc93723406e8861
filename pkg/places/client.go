// Package places queries the business search provider's nearby-search API.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Rowan-T/clover/pkg/httpclient"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// statuses the provider treats as a successful response
const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// StatusError is a non-OK provider status for a single search. The engine
// treats it as a per-term failure, not a run failure.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("places search returned status %s", e.Status)
	}
	return fmt.Sprintf("places search returned status %s: %s", e.Status, e.Message)
}

// Config holds search provider configuration
type Config struct {
	BaseURL string
	APIKey  string
}

// Client performs nearby searches against the provider
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger logging.Logger
}

// NewClient creates a new places Client
func NewClient(cfg Config, http *httpclient.Client, logger logging.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   http,
		logger: logger,
	}
}

// searchResponse mirrors the provider's nearby-search JSON response
type searchResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Results      []searchResult `json:"results"`
}

type searchResult struct {
	PlaceID  string  `json:"place_id"`
	Name     string  `json:"name"`
	Rating   float64 `json:"rating"`
	Ratings  int     `json:"user_ratings_total"`
	Vicinity string  `json:"vicinity"`
	Geometry struct {
		Location models.LatLng `json:"location"`
	} `json:"geometry"`
}

// SearchNearby returns businesses matching the keyword within radiusMeters of
// the anchor. A ZERO_RESULTS status is an empty slice, not an error; any
// other non-OK status is a StatusError.
func (c *Client) SearchNearby(ctx context.Context, keyword string, anchor models.LatLng, radiusMeters float64) ([]models.BusinessCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacesClient.SearchNearby")
	defer span.End()

	params := url.Values{}
	params.Set("keyword", keyword)
	params.Set("location", fmt.Sprintf("%f,%f", anchor.Lat, anchor.Lng))
	params.Set("radius", fmt.Sprintf("%.0f", radiusMeters))
	params.Set("key", c.cfg.APIKey)

	reqURL := c.cfg.BaseURL + "/nearbysearch/json?" + params.Encode()

	resp, err := c.http.Get(ctx, reqURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("nearby search %q failed: %w", keyword, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nearby search %q returned HTTP %d", keyword, resp.StatusCode)
	}

	var apiResp searchResponse
	if err := json.Unmarshal(resp.Body, &apiResp); err != nil {
		return nil, fmt.Errorf("nearby search %q returned invalid JSON: %w", keyword, err)
	}

	switch apiResp.Status {
	case statusOK:
	case statusZeroResults:
		return []models.BusinessCandidate{}, nil
	default:
		c.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"keyword": keyword,
			"status":  apiResp.Status,
		}).Warn("nearby search rejected by provider")
		return nil, &StatusError{Status: apiResp.Status, Message: apiResp.ErrorMessage}
	}

	candidates := make([]models.BusinessCandidate, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if r.PlaceID == "" {
			continue
		}

		candidate := models.BusinessCandidate{
			ExternalPlaceID: r.PlaceID,
			Name:            r.Name,
			Category:        keyword,
			Location:        r.Geometry.Location,
		}
		if r.Rating > 0 {
			rating := r.Rating
			candidate.Rating = &rating
		}
		if r.Vicinity != "" {
			vicinity := r.Vicinity
			candidate.Address = &vicinity
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}
