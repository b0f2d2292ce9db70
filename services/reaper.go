package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"ticketing-chatbot-platform/internal/logger"
)

// ReaperService periodically fails documents stuck in PROCESSING, so a
// crashed worker cannot leave documents in a non-terminal state forever.
type ReaperService struct {
	docs      *DocumentStore
	scheduler *gocron.Scheduler
	interval  time.Duration
	maxAge    time.Duration
}

func NewReaperService(docs *DocumentStore, interval, maxAge time.Duration) *ReaperService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	return &ReaperService{
		docs:      docs,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		maxAge:    maxAge,
	}
}

func (r *ReaperService) Start() error {
	_, err := r.scheduler.Every(r.interval).Do(r.sweep)
	if err != nil {
		return err
	}

	r.scheduler.StartAsync()
	logger.Info("Stale document reaper started",
		"interval", r.interval.String(), "max_age", r.maxAge.String())
	return nil
}

func (r *ReaperService) Stop() {
	r.scheduler.Stop()
}

func (r *ReaperService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	failed, err := r.docs.FailStale(ctx, r.maxAge)
	if err != nil {
		logger.Error("Stale document sweep failed", "error", err)
		return
	}
	if failed > 0 {
		logger.Warn("Marked stale documents as failed", "count", failed)
	}
}
