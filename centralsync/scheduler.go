package centralsync

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler triggers extra replication passes on a cron expression, on top
// of the replicator's steady poll loop. Useful for "sync on the hour"
// policies where connectivity windows are known.
type Scheduler struct {
	cron       *cron.Cron
	replicator *Replicator
	logger     *logrus.Logger
}

func NewScheduler(replicator *Replicator, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		replicator: replicator,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.replicator.SyncOnce(ctx); err != nil && s.logger != nil {
			s.logger.WithFields(logrus.Fields{
				"module":   "centralsync",
				"funcName": "Scheduler",
				"spec":     spec,
			}).Warn("scheduled replication pass failed: " + err.Error())
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
