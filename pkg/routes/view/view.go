// Package view exposes the synchronized match view: cache-hydrated,
// reconciled against the store, refreshed on change events, and paged with
// cross-page dedup.
package view

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Rowan-T/clover/pkg/context"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/matchview"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// Handler handles match view routes
type Handler struct {
	manager *matchview.Manager
	logger  logging.Logger
}

// NewHandler creates a new view handler
func NewHandler(manager *matchview.Manager, logger logging.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// Register registers view routes on the subject group
func (h *Handler) Register(g *echo.Group) {
	g.GET("/view", h.GetView)
	g.POST("/view/more", h.LoadMore)
	g.PUT("/view/:placeId/saved", h.SetSaved)
	g.DELETE("/view", h.ReleaseView)
}

// ViewResponse is the synchronized view plus its controller state
type ViewResponse struct {
	State             matchview.State      `json:"state"`
	LiveUpdatePending bool                 `json:"live_update_pending"`
	Items             []models.MatchRecord `json:"items"`
}

func (h *Handler) respond(c echo.Context, controller *matchview.Controller) error {
	return c.JSON(http.StatusOK, ViewResponse{
		State:             controller.State(),
		LiveUpdatePending: controller.LiveUpdatePending(),
		Items:             controller.Records(),
	})
}

// GetView returns the subject's synchronized view, activating it on first use
func (h *Handler) GetView(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "view.GetView")
	defer span.End()

	subjectID := context.GetSubjectID(ctx)
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject id is required")
	}

	controller, err := h.manager.Get(ctx, subjectID)
	if err != nil {
		return err
	}

	return h.respond(c, controller)
}

// LoadMore appends the next page to the subject's view
func (h *Handler) LoadMore(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "view.LoadMore")
	defer span.End()

	subjectID := context.GetSubjectID(ctx)
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject id is required")
	}

	controller, err := h.manager.Get(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := controller.LoadMore(ctx); err != nil {
		return err
	}

	return h.respond(c, controller)
}

// SetSaved toggles a saved flag through the view's confirm-then-update path
func (h *Handler) SetSaved(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "view.SetSaved")
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

	controller, err := h.manager.Get(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := controller.SetSaved(ctx, placeID, req.Saved); err != nil {
		return err
	}

	return h.respond(c, controller)
}

// ReleaseView tears down the subject's view: timers cleared, subscription
// released
func (h *Handler) ReleaseView(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "view.ReleaseView")
	defer span.End()

	subjectID := context.GetSubjectID(ctx)
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject id is required")
	}

	if err := h.manager.Release(subjectID); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Failed to release match view")
	}

	return c.NoContent(http.StatusNoContent)
}
