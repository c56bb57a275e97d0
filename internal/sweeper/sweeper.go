package sweeper

import (
	"context"
	"time"

	"reserva/internal/reservations/repository"
	"reserva/internal/reservations/service"
	"reserva/pkg/config"
)

// Sweeper finalizes bookings whose slot has ended. Each pass pages through
// due bookings and completes them one by one through the lifecycle CAS, so a
// sweep racing a live cancel or a second sweeper instance loses gracefully
// per booking instead of failing the pass.
type Sweeper struct {
	repo      repository.BookingRepository
	lifecycle service.LifecycleManager
	cfg       *config.Config
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func New(repo repository.BookingRepository, lifecycle service.LifecycleManager, cfg *config.Config) *Sweeper {
	return &Sweeper{
		repo:      repo,
		lifecycle: lifecycle,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Run blocks, sweeping on the configured interval until Stop is called.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.doneCh)

	s.cfg.Log.Info("Sweeper started",
		"interval", s.cfg.SweepInterval,
		"batch_size", s.cfg.SweepBatchSize,
	)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopCh:
			s.cfg.Log.Info("Sweeper stopped")
			return
		case <-ctx.Done():
			s.cfg.Log.Info("Sweeper context cancelled")
			return
		}
	}
}

// Sweep runs one pass. Batches repeat until a batch comes back short, so a
// backlog after downtime drains in a single pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()
	var completed, skipped int

	for {
		due, err := s.repo.FindDueForCompletion(ctx, now, s.cfg.SweepBatchSize)
		if err != nil {
			s.cfg.Log.Error("Sweep query failed", "error", err)
			return
		}
		if len(due) == 0 {
			break
		}

		progressed := 0
		for _, booking := range due {
			if err := s.lifecycle.Complete(ctx, booking.ID); err != nil {
				s.cfg.Log.Warn("Sweep completion skipped",
					"booking_id", booking.ID,
					"slot_key", booking.SlotKey,
					"error", err,
				)
				skipped++
				continue
			}
			completed++
			progressed++
		}

		if len(due) < s.cfg.SweepBatchSize {
			break
		}
		// every remaining due booking errored; do not spin on it
		if progressed == 0 {
			break
		}
	}

	if completed > 0 || skipped > 0 {
		s.cfg.Log.Info("Sweep pass finished", "completed", completed, "skipped", skipped)
	}
}

// Stop signals the run loop and waits for the in-flight pass to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}
