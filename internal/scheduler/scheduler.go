package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Refresher starts a new fetch epoch over everything registered so far.
type Refresher interface {
	Refresh() bool
}

// Scheduler periodically refreshes the aggregator's cached response.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Refresher
	interval  time.Duration
	log       zerolog.Logger
}

// New creates a new Scheduler. An interval <= 0 disables it.
func New(target Refresher, interval time.Duration, log zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		target:    target,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info().Msg("scheduler: refresh interval not set; periodic refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.run)
	if err != nil {
		return err
	}

	s.log.Info().Dur("interval", s.interval).Msg("scheduler: periodic refresh enabled")
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	if s.target.Refresh() {
		s.log.Debug().Msg("scheduler: refresh triggered")
		return
	}
	s.log.Debug().Msg("scheduler: nothing to refresh")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
