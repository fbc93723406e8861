// Package matches exposes discovery and match list endpoints
package matches

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Rowan-T/clover/internal/repositories/matchrecord"
	"github.com/Rowan-T/clover/internal/repositories/narrativeprofile"
	"github.com/Rowan-T/clover/pkg/cache"
	"github.com/Rowan-T/clover/pkg/context"
	"github.com/Rowan-T/clover/pkg/discovery"
	"github.com/Rowan-T/clover/pkg/events"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// Handler handles discovery and match routes
type Handler struct {
	engine     *discovery.Engine
	records    *matchrecord.Repository
	narratives *narrativeprofile.Repository
	snapshots  *cache.SnapshotCache
	emitter    events.ChangeEmitter
	pageSize   int
	logger     logging.Logger
}

// NewHandler creates a new match handler
func NewHandler(engine *discovery.Engine, records *matchrecord.Repository, narratives *narrativeprofile.Repository, snapshots *cache.SnapshotCache, emitter events.ChangeEmitter, pageSize int, logger logging.Logger) *Handler {
	if pageSize < 1 {
		pageSize = 20
	}
	return &Handler{
		engine:     engine,
		records:    records,
		narratives: narratives,
		snapshots:  snapshots,
		emitter:    emitter,
		pageSize:   pageSize,
		logger:     logger,
	}
}

func isNotFound(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}

// Register registers match routes on the subject group
func (h *Handler) Register(g *echo.Group) {
	g.POST("/discover", h.Discover)
	g.GET("/matches", h.ListMatches)
	g.PUT("/matches/:placeId/saved", h.SetSaved)
	g.DELETE("/matches", h.ClearMatches)
}

// Discover runs a discovery pass for the subject and persists the results
func (h *Handler) Discover(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "matches.Discover")
	defer span.End()

	subjectID := context.GetSubjectID(ctx)
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject id is required")
	}

	var req models.DiscoveryRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// A narrative is optional; discovery falls back to generic terms without
	// one. Only a 404 means no narrative, anything else is a real failure.
	narrative, err := h.narratives.GetLatest(ctx, subjectID)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		narrative = nil
	}

	resp, err := h.engine.Discover(ctx, subjectID, narrative.SearchProfile(), narrative, req)
	if err != nil {
		if errors.Is(err, discovery.ErrAllTermsFailed) {
			return httperror.NewHTTPError(http.StatusBadGateway, "search provider unavailable")
		}
		return err
	}

	if err := h.snapshots.Set(ctx, subjectID, resp.Items); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to write match snapshot")
	}

	return c.JSON(http.StatusOK, resp)
}

// ListMatches returns a page of the subject's matches ordered by score
func (h *Handler) ListMatches(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "matches.ListMatches")
	defer span.End()

	subjectID := context.GetSubjectID(ctx)
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject id is required")
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 200 {
		limit = h.pageSize
	}

	records, err := h.records.ListBySubject(ctx, subjectID, offset, limit)
	if err != nil {
		return err
	}
	count, err := h.records.CountBySubject(ctx, subjectID)
	if err != nil {
		return err
	}

	for i := range records {
		records[i].DistanceMiles = models.MilesFromMeters(records[i].DistanceMeters)
	}

	return c.JSON(http.StatusOK, models.MatchListResponse{
		Count: count,
		Items: records,
	})
}

// SetSaved toggles the saved flag on one of the subject's matches
func (h *Handler) SetSaved(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "matches.SetSaved")
	defer span.End()

	subjectID := context.GetSubjectID(ctx)
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject id is required")
	}
	placeID := c.Param("placeId")
	if placeID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "place id is required")
	}

	var req models.SetSavedRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	record, err := h.records.SetSaved(ctx, subjectID, placeID, req.Saved)
	if err != nil {
		return err
	}

	if err := h.emitter.EmitMatchSaved(ctx, subjectID, placeID); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to emit saved change event")
	}

	record.DistanceMiles = models.MilesFromMeters(record.DistanceMeters)
	return c.JSON(http.StatusOK, record)
}

// ClearMatches deletes all of the subject's matches. The caller must confirm
// explicitly via the confirm query parameter.
func (h *Handler) ClearMatches(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "matches.ClearMatches")
	defer span.End()

	subjectID := context.GetSubjectID(ctx)
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject id is required")
	}
	if c.QueryParam("confirm") != "true" {
		return httperror.NewHTTPError(http.StatusBadRequest, "confirm=true is required to delete all matches")
	}

	deleted, err := h.records.DeleteAllForSubject(ctx, subjectID)
	if err != nil {
		return err
	}

	if err := h.snapshots.Clear(ctx, subjectID); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to clear match snapshot")
	}
	if err := h.emitter.EmitMatchesCleared(ctx, subjectID); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to emit clear change event")
	}

	return c.JSON(http.StatusOK, map[string]any{"deleted": deleted})
}
