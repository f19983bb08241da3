package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/swio-meteo/cyclone-archive/internal/archive"
)

// Scheduler periodically runs the archive job.
type Scheduler struct {
	scheduler *gocron.Scheduler
	archiver  *archive.Archiver
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. A nil archiver disables scheduling entirely
// (viewer-only mode over an existing archive).
func New(archiver *archive.Archiver, interval, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		archiver:  archiver,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.archiver == nil {
		log.Println("scheduler: no upstream configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running archive job")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.archiver.Run(ctx); err != nil {
			log.Printf("scheduler: archive run failed: %v", err)
			return
		}
		log.Println("scheduler: completed archive job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
