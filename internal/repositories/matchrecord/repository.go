// Package matchrecord persists discovered business matches per subject
package matchrecord

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

const listMaxLimit = 200

// Repository handles match record persistence
type Repository struct {
	db     database.DB
	logger logging.Logger
}

// NewRepository creates a new match record repository
func NewRepository(db database.DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// UpsertResult reports what a batch upsert actually changed
type UpsertResult struct {
	InsertedPlaceIDs []string
	UpdatedPlaceIDs  []string
}

// Count returns how many rows the upsert touched
func (r *UpsertResult) Count() int {
	return len(r.InsertedPlaceIDs) + len(r.UpdatedPlaceIDs)
}

// UpsertBatch persists candidates as match records for the subject. Rows are
// keyed on (subject_id, external_place_id): re-running discovery with
// overlapping candidates refreshes mutable fields but never creates
// duplicate rows and never touches the saved flag.
func (r *Repository) UpsertBatch(ctx context.Context, subjectID string, records []models.MatchRecord) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matchrecord.Repository.UpsertBatch")
	defer span.End()

	if len(records) == 0 {
		return &UpsertResult{}, nil
	}

	query, args := buildUpsertStatement(subjectID, records, time.Now().UTC())
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"subject_id": subjectID}).Error("Failed to upsert match records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert match records")
	}
	defer rows.Close()

	result := &UpsertResult{}
	for rows.Next() {
		var placeID string
		var inserted bool
		if err := rows.Scan(&placeID, &inserted); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to scan upsert result")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert match records")
		}
		if inserted {
			result.InsertedPlaceIDs = append(result.InsertedPlaceIDs, placeID)
		} else {
			result.UpdatedPlaceIDs = append(result.UpdatedPlaceIDs, placeID)
		}
	}
	if err := rows.Err(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read upsert results")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert match records")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"subject_id": subjectID,
		"inserted":   len(result.InsertedPlaceIDs),
		"updated":    len(result.UpdatedPlaceIDs),
	}).Debug("Upserted match records")

	return result, nil
}

// buildUpsertStatement renders the multi-row insert for UpsertBatch. The
// conflict SET list refreshes mutable fields only; saved is user state and
// stays as is. xmax = 0 distinguishes freshly inserted rows from updated ones.
func buildUpsertStatement(subjectID string, records []models.MatchRecord, now time.Time) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("match_records")
	sb.Cols("id", "subject_id", "external_place_id", "name", "category", "rating", "address", "lat", "lng", "match_score", "match_reason", "distance_meters", "saved", "created_at", "updated_at")

	for _, record := range records {
		id := record.ID
		if id == "" {
			id = uuid.New().String()
		}
		sb.Values(id, subjectID, record.ExternalPlaceID, record.Name, record.Category, record.Rating, record.Address, record.Lat, record.Lng, record.MatchScore, record.MatchReason, record.DistanceMeters, false, now, now)
	}

	query, args := sb.Build()
	query += ` ON CONFLICT (subject_id, external_place_id) DO UPDATE SET
		name = EXCLUDED.name,
		category = EXCLUDED.category,
		rating = EXCLUDED.rating,
		address = EXCLUDED.address,
		lat = EXCLUDED.lat,
		lng = EXCLUDED.lng,
		match_score = EXCLUDED.match_score,
		match_reason = EXCLUDED.match_reason,
		distance_meters = EXCLUDED.distance_meters,
		updated_at = EXCLUDED.updated_at
		RETURNING external_place_id, (xmax = 0) AS inserted`

	return query, args
}

// ListBySubject returns a page of the subject's match records ordered by
// match score, with creation order and id as tie-breaks so pagination stays
// stable across ties.
func (r *Repository) ListBySubject(ctx context.Context, subjectID string, offset, limit int) ([]models.MatchRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "matchrecord.Repository.ListBySubject")
	defer span.End()

	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > listMaxLimit {
		limit = 20
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "subject_id", "external_place_id", "name", "category", "rating", "address", "lat", "lng", "match_score", "match_reason", "distance_meters", "saved", "created_at", "updated_at")
	sb.From("match_records")
	sb.Where(sb.Equal("subject_id", subjectID))
	sb.OrderBy("match_score DESC", "created_at ASC", "id ASC")
	sb.Offset(offset)
	sb.Limit(limit)

	query, args := sb.Build()
	var records []models.MatchRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list match records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match records")
	}

	return records, nil
}

// CountBySubject returns the subject's total match record count
func (r *Repository) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "matchrecord.Repository.CountBySubject")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("match_records")
	sb.Where(sb.Equal("subject_id", subjectID))

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count match records")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count match records")
	}

	return count, nil
}

// SetSaved toggles the saved flag on one of the subject's match records and
// returns the updated row.
func (r *Repository) SetSaved(ctx context.Context, subjectID, externalPlaceID string, saved bool) (*models.MatchRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "matchrecord.Repository.SetSaved")
	defer span.End()

	query := `
		UPDATE match_records
		SET saved = $1, updated_at = $2
		WHERE subject_id = $3 AND external_place_id = $4
		RETURNING id, subject_id, external_place_id, name, category, rating, address, lat, lng, match_score, match_reason, distance_meters, saved, created_at, updated_at
	`

	var record models.MatchRecord
	err := r.db.GetContext(ctx, &record, query, saved, time.Now().UTC(), subjectID, externalPlaceID)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match record %s not found", externalPlaceID))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update saved flag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update saved flag")
	}

	return &record, nil
}

// DeleteAllForSubject removes every match record for the subject and returns
// the number of rows deleted.
func (r *Repository) DeleteAllForSubject(ctx context.Context, subjectID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "matchrecord.Repository.DeleteAllForSubject")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("match_records")
	sb.Where(sb.Equal("subject_id", subjectID))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete match records")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete match records")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}
