package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"terrace-booking/internal/logger"
	"terrace-booking/internal/models"
)

type expirer interface {
	SweepExpired(ctx context.Context, now time.Time) ([]models.Booking, error)
}

// SweeperStats is a point-in-time copy of the sweeper counters.
type SweeperStats struct {
	Runs         int64
	Failures     int64
	TotalExpired int64
	LastRun      time.Time
	LastExpired  int
}

// Sweeper periodically releases bookings whose end time has passed.
type Sweeper struct {
	service  expirer
	interval time.Duration
	now      func() time.Time
	log      *logger.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stats   SweeperStats
}

func NewSweeper(service expirer, interval time.Duration, now func() time.Time, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		now:      now,
		log:      log,
	}
}

func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sweeper already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	w.log.LogSweep(fmt.Sprintf("Starting expiry sweeper (every %s)", w.interval))

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *Sweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	w.log.LogSweep("Expiry sweeper stopped")
}

func (w *Sweeper) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and records the outcome.
func (w *Sweeper) RunOnce(ctx context.Context) []models.Booking {
	now := w.now()
	freed, err := w.service.SweepExpired(ctx, now)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.LastRun = now
	if err != nil {
		w.stats.Failures++
	} else {
		w.stats.LastExpired = len(freed)
		w.stats.TotalExpired += int64(len(freed))
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Error("SWEEP", fmt.Sprintf("expiry sweep failed: %v", err))
		return nil
	}
	if len(freed) > 0 {
		w.log.LogSweep(fmt.Sprintf("Released %d expired booking(s)", len(freed)))
	}
	return freed
}

func (w *Sweeper) Stats() SweeperStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
