// Package profiles exposes questionnaire intake and narrative endpoints
package profiles

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Rowan-T/clover/internal/repositories/narrativeprofile"
	"github.com/Rowan-T/clover/pkg/context"
	"github.com/Rowan-T/clover/pkg/intake"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/narrative"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// Handler handles profile routes
type Handler struct {
	synthesizer *narrative.Synthesizer
	narratives  *narrativeprofile.Repository
	logger      logging.Logger
}

// NewHandler creates a new profile handler
func NewHandler(synthesizer *narrative.Synthesizer, narratives *narrativeprofile.Repository, logger logging.Logger) *Handler {
	return &Handler{
		synthesizer: synthesizer,
		narratives:  narratives,
		logger:      logger,
	}
}

// Register registers profile routes on the subject group
func (h *Handler) Register(g *echo.Group) {
	g.POST("/profile", h.CreateProfile)
	g.GET("/profile", h.GetLatestProfile)
}

// CreateProfile normalizes questionnaire answers and synthesizes a narrative
func (h *Handler) CreateProfile(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "profiles.CreateProfile")
	defer span.End()

	subjectID := context.GetSubjectID(ctx)
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject id is required")
	}

	var req models.CreateProfileRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile := intake.Normalize(req.Answers)
	narrativeProfile := h.synthesizer.Synthesize(ctx, subjectID, req.QuestionnaireID, profile, req.Answers)

	created, err := h.narratives.Create(ctx, &narrativeProfile)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"subject_id": subjectID,
		"source":     created.Source,
	}).Info("Created narrative profile")

	return c.JSON(http.StatusCreated, models.CreateProfileResponse{
		Profile:   profile,
		Narrative: created,
	})
}

// GetLatestProfile returns the subject's most recent narrative profile
func (h *Handler) GetLatestProfile(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "profiles.GetLatestProfile")
	defer span.End()

	subjectID := context.GetSubjectID(ctx)
	if subjectID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "subject id is required")
	}

	profile, err := h.narratives.GetLatest(ctx, subjectID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, profile)
}
