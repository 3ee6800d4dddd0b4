/*
scheduler.go - Cron wrapper for the aging job

PURPOSE:
  Runs the aging sweep on a cron cadence (daily at midnight by default). The
  job itself is single-flight, so a tick that arrives while a manual run is
  in flight is rejected and simply waits for the next cadence.
*/
package api

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/manfad/cowcard/herd"
)

// Scheduler owns the cron instance driving the aging job.
type Scheduler struct {
	cron *cron.Cron
	job  *herd.AgingJob
	log  *zap.Logger
}

// NewScheduler registers the aging job on the given cron spec.
func NewScheduler(job *herd.AgingJob, spec string, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		job:  job,
		log:  log,
	}
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.job.Run(context.Background()); err != nil {
			s.log.Error("scheduled aging run failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("aging scheduler started")
}

// Stop halts scheduling and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("aging scheduler stopped")
}
