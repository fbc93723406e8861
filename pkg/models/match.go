package models

import (
	"math"
	"time"
)

// MetersPerMile is the statute-mile conversion factor. Meters is the
// canonical distance unit everywhere; miles are derived on read.
const MetersPerMile = 1609.34

// LatLng is a geographic point
type LatLng struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// BusinessCandidate is an unpersisted discovery result from the search
// provider. Identity is ExternalPlaceID; Category is the search term that
// produced the hit.
type BusinessCandidate struct {
	ExternalPlaceID string   `json:"external_place_id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Rating          *float64 `json:"rating,omitempty"`
	Address         *string  `json:"address,omitempty"`
	Location        LatLng   `json:"location"`
}

// MatchRecord is a persisted candidate scoped to a subject. One row per
// (subject_id, external_place_id).
type MatchRecord struct {
	ID              string    `json:"id" db:"id"`
	SubjectID       string    `json:"subject_id" db:"subject_id"`
	ExternalPlaceID string    `json:"external_place_id" db:"external_place_id"`
	Name            string    `json:"name" db:"name"`
	Category        string    `json:"category" db:"category"`
	Rating          *float64  `json:"rating,omitempty" db:"rating"`
	Address         *string   `json:"address,omitempty" db:"address"`
	Lat             float64   `json:"lat" db:"lat"`
	Lng             float64   `json:"lng" db:"lng"`
	MatchScore      float64   `json:"match_score" db:"match_score"`
	MatchReason     *string   `json:"match_reason,omitempty" db:"match_reason"`
	DistanceMeters  *float64  `json:"distance_meters,omitempty" db:"distance_meters"`
	DistanceMiles   *float64  `json:"distance_miles,omitempty" db:"-"`
	Saved           bool      `json:"saved" db:"saved"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// MilesFromMeters derives a miles value from a canonical meters value,
// rounded to one decimal. A nil meters value stays nil, never 0.
func MilesFromMeters(meters *float64) *float64 {
	if meters == nil {
		return nil
	}
	miles := math.Round(*meters/MetersPerMile*10) / 10
	return &miles
}

// DiscoveryRequest is the engine boundary request
type DiscoveryRequest struct {
	Anchor       LatLng   `json:"anchor" validate:"required"`
	RadiusMeters *float64 `json:"radius_meters,omitempty" validate:"omitempty,gt=0"`
	MaxResults   *int     `json:"max_results,omitempty" validate:"omitempty,gt=0"`
}

// DiscoveryResponse reports the persisted matches from a discovery run. A
// zero Count with no error is a legitimate no-matches outcome, distinct
// from a failed run.
type DiscoveryResponse struct {
	Count int           `json:"count"`
	Items []MatchRecord `json:"items"`
}

// MatchListResponse is a page of match records plus the subject's total
type MatchListResponse struct {
	Count int           `json:"count"`
	Items []MatchRecord `json:"items"`
}

// SetSavedRequest toggles the saved flag on a match record
type SetSavedRequest struct {
	Saved bool `json:"saved"`
}

// DiscoveryAnchor remembers the last discovery parameters for a subject so
// scheduled re-discovery can repeat the run.
type DiscoveryAnchor struct {
	SubjectID    string    `json:"subject_id" db:"subject_id"`
	Lat          float64   `json:"lat" db:"lat"`
	Lng          float64   `json:"lng" db:"lng"`
	RadiusMeters float64   `json:"radius_meters" db:"radius_meters"`
	MaxResults   int       `json:"max_results" db:"max_results"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
