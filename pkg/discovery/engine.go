// Package discovery runs the adaptive keyword search that turns a subject's
// profile into persisted business matches.
package discovery

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/Rowan-T/clover/internal/repositories/matchrecord"
	"github.com/Rowan-T/clover/pkg/events"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// ErrAllTermsFailed means every provider request failed. Distinct from a run
// that completed and legitimately found nothing.
var ErrAllTermsFailed = errors.New("all search terms failed")

// defaults applied when the discovery request leaves them unset
const (
	DefaultRadiusMeters = 15 * models.MetersPerMile
	DefaultMaxResults   = 20
)

// defaultMatchScore is used when the provider reports no rating
const defaultMatchScore = 0.5

// Searcher issues one keyword-bounded nearby search
type Searcher interface {
	SearchNearby(ctx context.Context, keyword string, anchor models.LatLng, radiusMeters float64) ([]models.BusinessCandidate, error)
}

// MatchStore persists discovery results
type MatchStore interface {
	UpsertBatch(ctx context.Context, subjectID string, records []models.MatchRecord) (*matchrecord.UpsertResult, error)
}

// AnchorStore remembers the run parameters for scheduled re-discovery
type AnchorStore interface {
	Upsert(ctx context.Context, anchor *models.DiscoveryAnchor) error
}

// Config holds engine tuning
type Config struct {
	MaxResults int // default result cap when the request leaves it unset
	MaxTerms   int // primary term set cap
}

// Engine executes discovery runs
type Engine struct {
	searcher Searcher
	store    MatchStore
	anchors  AnchorStore
	emitter  events.ChangeEmitter
	cfg      Config
	logger   logging.Logger
}

// NewEngine creates a new discovery engine
func NewEngine(searcher Searcher, store MatchStore, anchors AnchorStore, emitter events.ChangeEmitter, cfg Config, logger logging.Logger) *Engine {
	if cfg.MaxResults < 1 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.MaxTerms < 1 {
		cfg.MaxTerms = MaxTerms
	}
	return &Engine{
		searcher: searcher,
		store:    store,
		anchors:  anchors,
		emitter:  emitter,
		cfg:      cfg,
		logger:   logger,
	}
}

// termResult carries one term's search outcome, slotted by term position so
// concurrent completions still merge in term-declaration order.
type termResult struct {
	candidates []models.BusinessCandidate
	err        error
}

// Discover runs the adaptive search for a subject and persists the surviving
// candidates. Per-term provider failures are tolerated; if the primary term
// set yields nothing the fixed fallback set is tried before giving up. A nil
// error with zero results means there genuinely were none.
func (e *Engine) Discover(ctx context.Context, subjectID string, profile *models.SearchProfile, narrative *models.NarrativeProfile, req models.DiscoveryRequest) (*models.DiscoveryResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "discovery.Engine.Discover")
	defer span.End()

	radius := DefaultRadiusMeters
	if req.RadiusMeters != nil && *req.RadiusMeters > 0 {
		radius = *req.RadiusMeters
	} else if profile != nil && profile.PreferredRadiusMiles > 0 {
		radius = profile.PreferredRadiusMeters()
	}

	maxResults := e.cfg.MaxResults
	if req.MaxResults != nil && *req.MaxResults > 0 {
		maxResults = *req.MaxResults
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"subject_id":    subjectID,
		"radius_meters": radius,
	})

	terms := buildTermSet(narrative, profile, e.cfg.MaxTerms)
	candidates, failures := e.searchTerms(ctx, terms, req.Anchor, radius)

	// Fallback rule: only when the primary set produced nothing at all.
	if len(candidates) == 0 && !equalTerms(terms, fallbackTerms) {
		log.WithField("terms", strings.Join(terms, ",")).Info("Primary terms yielded no results, trying fallback set")
		fallbackCandidates, fallbackFailures := e.searchTerms(ctx, fallbackTerms, req.Anchor, radius)
		candidates = fallbackCandidates
		terms = append(terms, fallbackTerms...)
		failures += fallbackFailures
	}

	if len(candidates) == 0 && failures == len(terms) {
		log.Warn("Every search term failed")
		return nil, ErrAllTermsFailed
	}

	candidates = dedupeCandidates(candidates)
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	records := make([]models.MatchRecord, 0, len(candidates))
	for _, candidate := range candidates {
		records = append(records, buildRecord(subjectID, candidate, req.Anchor, radius))
	}

	result, err := e.store.UpsertBatch(ctx, subjectID, records)
	if err != nil {
		return nil, err
	}

	if err := e.emitter.EmitMatchesUpserted(ctx, subjectID, result.InsertedPlaceIDs, result.UpdatedPlaceIDs); err != nil {
		// The store is already consistent; subscribers will catch up on the
		// next refresh.
		log.WithError(err).Warn("Failed to emit discovery change events")
	}

	if err := e.anchors.Upsert(ctx, &models.DiscoveryAnchor{
		SubjectID:    subjectID,
		Lat:          req.Anchor.Lat,
		Lng:          req.Anchor.Lng,
		RadiusMeters: radius,
		MaxResults:   maxResults,
	}); err != nil {
		log.WithError(err).Warn("Failed to record discovery anchor")
	}

	log.WithFields(map[string]any{
		"candidates": len(records),
		"inserted":   len(result.InsertedPlaceIDs),
		"updated":    len(result.UpdatedPlaceIDs),
	}).Info("Discovery run complete")

	return &models.DiscoveryResponse{
		Count: len(records),
		Items: records,
	}, nil
}

// searchTerms runs one search per term concurrently and merges the results
// in term-declaration order. Returns the merged candidates and how many
// terms failed.
func (e *Engine) searchTerms(ctx context.Context, terms []string, anchor models.LatLng, radius float64) ([]models.BusinessCandidate, int) {
	results := make([]termResult, len(terms))

	var wg sync.WaitGroup
	for i, term := range terms {
		wg.Add(1)
		go func(slot int, keyword string) {
			defer wg.Done()
			candidates, err := e.searcher.SearchNearby(ctx, keyword, anchor, radius)
			results[slot] = termResult{candidates: candidates, err: err}
		}(i, term)
	}
	wg.Wait()

	var merged []models.BusinessCandidate
	failures := 0
	for i, result := range results {
		if result.err != nil {
			failures++
			e.logger.WithContext(ctx).WithError(result.err).WithField("term", terms[i]).Warn("Search term failed")
			continue
		}
		merged = append(merged, result.candidates...)
	}

	return merged, failures
}

// dedupeCandidates drops duplicate place ids, keeping the first occurrence.
// Input is in term-declaration order, so earlier terms win.
func dedupeCandidates(candidates []models.BusinessCandidate) []models.BusinessCandidate {
	seen := make(map[string]bool, len(candidates))
	deduped := make([]models.BusinessCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if seen[candidate.ExternalPlaceID] {
			continue
		}
		seen[candidate.ExternalPlaceID] = true
		deduped = append(deduped, candidate)
	}
	return deduped
}

func buildRecord(subjectID string, candidate models.BusinessCandidate, anchor models.LatLng, radius float64) models.MatchRecord {
	distance := haversineMeters(anchor, candidate.Location)
	reason := candidate.Category + " within " + formatMeters(radius)

	return models.MatchRecord{
		SubjectID:       subjectID,
		ExternalPlaceID: candidate.ExternalPlaceID,
		Name:            candidate.Name,
		Category:        candidate.Category,
		Rating:          candidate.Rating,
		Address:         candidate.Address,
		Lat:             candidate.Location.Lat,
		Lng:             candidate.Location.Lng,
		MatchScore:      scoreFromRating(candidate.Rating),
		MatchReason:     &reason,
		DistanceMeters:  &distance,
	}
}

// scoreFromRating maps the provider's 0..5 rating onto [0,1]. Unrated places
// get a neutral score.
func scoreFromRating(rating *float64) float64 {
	if rating == nil {
		return defaultMatchScore
	}
	score := *rating / 5
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

const earthRadiusMeters = 6371000

// haversineMeters computes the great-circle distance between two points
func haversineMeters(a, b models.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

func formatMeters(radius float64) string {
	return fmt.Sprintf("%.1f mi", radius/models.MetersPerMile)
}

func equalTerms(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
