// Package scheduler re-runs discovery for subjects whose results have gone
// stale, using each subject's recorded anchor.
package scheduler

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/Rowan-T/clover/internal/repositories/discoveryanchor"
	"github.com/Rowan-T/clover/internal/repositories/narrativeprofile"
	"github.com/Rowan-T/clover/pkg/discovery"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
)

const staleBatchSize = 100

// Config holds scheduler tuning
type Config struct {
	CronSpec string
	MaxAge   time.Duration
}

// Scheduler wraps robfig/cron and manages the re-discovery loop
type Scheduler struct {
	cron       *cron.Cron
	engine     *discovery.Engine
	anchors    *discoveryanchor.Repository
	narratives *narrativeprofile.Repository
	cfg        Config
	logger     logging.Logger
}

// New creates a Scheduler
func New(engine *discovery.Engine, anchors *discoveryanchor.Repository, narratives *narrativeprofile.Repository, cfg Config, logger logging.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		engine:     engine,
		anchors:    anchors,
		narratives: narratives,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start registers the re-discovery job and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "failed to schedule re-discovery job")
	}

	s.cron.Start()
	s.logger.WithContext(ctx).WithField("spec", s.cfg.CronSpec).Info("Re-discovery scheduler started")
	return nil
}

// Stop shuts down the scheduler and waits for a running cycle to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Re-discovery scheduler stopped")
}

// runCycle refreshes every subject whose anchor is older than MaxAge. A
// failure on one subject does not stop the rest.
func (s *Scheduler) runCycle(ctx context.Context) {
	log := s.logger.WithContext(ctx)
	cutoff := time.Now().UTC().Add(-s.cfg.MaxAge)

	anchors, err := s.anchors.ListOlderThan(ctx, cutoff, staleBatchSize)
	if err != nil {
		log.WithError(err).Error("Failed to load stale discovery anchors")
		return
	}

	if len(anchors) == 0 {
		return
	}

	log.WithField("count", len(anchors)).Info("Re-discovery cycle started")
	for _, anchor := range anchors {
		if err := s.rediscover(ctx, anchor); err != nil {
			log.WithError(err).WithField("subject_id", anchor.SubjectID).Warn("Re-discovery failed for subject")
		}
	}
	log.Info("Re-discovery cycle complete")
}

func (s *Scheduler) rediscover(ctx context.Context, anchor models.DiscoveryAnchor) error {
	narrative, err := s.narratives.GetLatest(ctx, anchor.SubjectID)
	if err != nil {
		// A subject without a narrative still re-discovers on fallback
		// terms; any other lookup failure aborts this subject's refresh.
		if !(httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound) {
			return err
		}
		narrative = nil
	}

	radius := anchor.RadiusMeters
	maxResults := anchor.MaxResults
	req := models.DiscoveryRequest{
		Anchor:       models.LatLng{Lat: anchor.Lat, Lng: anchor.Lng},
		RadiusMeters: &radius,
		MaxResults:   &maxResults,
	}

	_, err = s.engine.Discover(ctx, anchor.SubjectID, narrative.SearchProfile(), narrative, req)
	return err
}
