// Package discoveryanchor remembers each subject's last discovery
// parameters so scheduled re-discovery can repeat the run.
package discoveryanchor

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Rowan-T/clover/pkg/database"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
	"github.com/Rowan-T/clover/pkg/tracing"
)

// Repository handles discovery anchor persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new discovery anchor repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert records the subject's latest discovery parameters, one row per
// subject.
func (r *Repository) Upsert(ctx context.Context, anchor *models.DiscoveryAnchor) error {
	ctx, span := tracing.StartSpan(ctx, "discoveryanchor.Repository.Upsert")
	defer span.End()

	anchor.UpdatedAt = time.Now().UTC()

	sb := database.NewInsertBuilder()
	sb.InsertInto("discovery_anchors")
	sb.Cols("subject_id", "lat", "lng", "radius_meters", "max_results", "updated_at")
	sb.Values(anchor.SubjectID, anchor.Lat, anchor.Lng, anchor.RadiusMeters, anchor.MaxResults, anchor.UpdatedAt)

	ub := sb.OnConflict("subject_id")
	ub.Set(
		ub.Assign("lat", database.Excluded("lat")),
		ub.Assign("lng", database.Excluded("lng")),
		ub.Assign("radius_meters", database.Excluded("radius_meters")),
		ub.Assign("max_results", database.Excluded("max_results")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"subject_id": anchor.SubjectID}).Error("Failed to upsert discovery anchor")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert discovery anchor")
	}

	return nil
}

// ListOlderThan returns anchors not refreshed since the cutoff, oldest first
func (r *Repository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.DiscoveryAnchor, error) {
	ctx, span := tracing.StartSpan(ctx, "discoveryanchor.Repository.ListOlderThan")
	defer span.End()

	if limit < 1 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("subject_id", "lat", "lng", "radius_meters", "max_results", "updated_at")
	sb.From("discovery_anchors")
	sb.Where(sb.LessThan("updated_at", cutoff))
	sb.OrderBy("updated_at ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var anchors []models.DiscoveryAnchor
	if err := r.db.SelectContext(ctx, &anchors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list stale discovery anchors")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list discovery anchors")
	}

	return anchors, nil
}

// Delete removes the subject's anchor
func (r *Repository) Delete(ctx context.Context, subjectID string) error {
	ctx, span := tracing.StartSpan(ctx, "discoveryanchor.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("discovery_anchors")
	sb.Where(sb.Equal("subject_id", subjectID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete discovery anchor")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete discovery anchor")
	}

	return nil
}
