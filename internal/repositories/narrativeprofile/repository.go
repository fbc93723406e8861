// Package narrativeprofile stores the append-only narrative history
package narrativeprofile

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Rowan-T/clover/pkg/database"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// Repository handles narrative profile persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new narrative profile repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create appends a narrative profile row. Rows are never mutated; each
// generation produces a new one.
func (r *Repository) Create(ctx context.Context, profile *models.NarrativeProfile) (*models.NarrativeProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "narrativeprofile.Repository.Create")
	defer span.End()

	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	profile.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("narrative_profiles")
	sb.Cols("id", "subject_id", "questionnaire_id", "profile", "summary", "traits", "interests", "suggested_categories", "source", "created_at")
	sb.Values(profile.ID, profile.SubjectID, profile.QuestionnaireID, profile.Profile, profile.Summary, profile.Traits, profile.Interests, profile.SuggestedCategories, profile.Source, profile.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"subject_id": profile.SubjectID}).Error("Failed to create narrative profile")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create narrative profile")
	}

	return profile, nil
}

// GetLatest returns the subject's most recent narrative profile
func (r *Repository) GetLatest(ctx context.Context, subjectID string) (*models.NarrativeProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "narrativeprofile.Repository.GetLatest")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "subject_id", "questionnaire_id", "profile", "summary", "traits", "interests", "suggested_categories", "source", "created_at")
	sb.From("narrative_profiles")
	sb.Where(sb.Equal("subject_id", subjectID))
	sb.OrderBy("created_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var profile models.NarrativeProfile
	if err := r.db.GetContext(ctx, &profile, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no narrative profile for subject %s", subjectID))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get narrative profile")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get narrative profile")
	}

	return &profile, nil
}
