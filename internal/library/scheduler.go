package library

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"localsub/pkg/log"
)

// EnqueueFunc hands one scan result to the job queue.
type EnqueueFunc func(item Item)

// Scheduler runs library scans on a cron expression and enqueues every
// item that still needs a target-language subtitle. Overlapping ticks
// collapse into one scan.
type Scheduler struct {
	scanner  *Scanner
	enqueue  EnqueueFunc
	cron     *cron.Cron
	schedule string
	group    singleflight.Group
}

func NewScheduler(scanner *Scanner, schedule string, enqueue EnqueueFunc) (*Scheduler, error) {
	s := &Scheduler{
		scanner:  scanner,
		enqueue:  enqueue,
		cron:     cron.New(),
		schedule: schedule,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunScan(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid scan schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	log.Info("Library scan scheduled: %s", s.schedule)
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunScan scans once and enqueues all actionable items. Concurrent calls
// share a single scan.
func (s *Scheduler) RunScan(ctx context.Context) (int, error) {
	v, err, _ := s.group.Do("scan", func() (any, error) {
		return s.scanOnce(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *Scheduler) scanOnce(ctx context.Context) (int, error) {
	items, err := s.scanner.Scan(ctx)
	if err != nil {
		log.Error("Library scan failed: %v", err)
		return 0, err
	}

	enqueued := 0
	for _, item := range items {
		if !item.Translatable && !item.NeedsTranscription {
			continue
		}
		s.enqueue(item)
		enqueued++
	}
	log.Info("Library scan: %d videos, %d need subtitles", len(items), enqueued)
	return enqueued, nil
}
