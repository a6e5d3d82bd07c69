package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"folio/internal/models"
)

const (
	DefaultSyncInterval = 5 * time.Minute
	DefaultSyncDelay    = time.Second
)

// QuoteRefresher is the provider path of the oracle.
type QuoteRefresher interface {
	Refresh(ctx context.Context, symbol string) (models.MarketQuote, error)
}

// Scheduler registers recurring jobs.
type Scheduler interface {
	Add(spec string, job func(context.Context)) (cron.EntryID, error)
	Remove(id cron.EntryID)
}

// PriceSyncService refreshes a fixed symbol set on an interval and broadcasts
// each refreshed quote. Symbols are processed one at a time with Delay between
// them to stay under the provider's rate limit.
type PriceSyncService struct {
	Oracle    QuoteRefresher
	Publisher Publisher
	Scheduler Scheduler
	Symbols   []string
	Interval  time.Duration
	// Delay is the pause between symbols. Zero means DefaultSyncDelay and a
	// negative value disables the pause.
	Delay  time.Duration
	Logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	entryID cron.EntryID
	running bool
	passes  sync.WaitGroup
}

type SyncResult struct {
	OK     int
	Failed int
}

// Start replaces any previous run: it cancels it, launches one immediate pass
// and schedules the recurring pass.
func (s *PriceSyncService) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	if s.Scheduler != nil {
		id, err := s.Scheduler.Add(everySpec(s.interval()), func(context.Context) {
			s.runPass(runCtx)
		})
		if err != nil {
			cancel()
			s.cancel = nil
			s.running = false
			return err
		}
		s.entryID = id
	}

	s.passes.Add(1)
	go func() {
		defer s.passes.Done()
		s.runPass(runCtx)
	}()

	s.logger().Info("price sync started",
		zap.Int("symbols", len(s.Symbols)),
		zap.Duration("interval", s.interval()),
		zap.Duration("delay", s.delay()),
	)
	return nil
}

// Stop cancels the schedule. A provider call already in flight completes;
// no further symbol is started.
func (s *PriceSyncService) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	wasRunning := s.running
	s.stopLocked()
	s.mu.Unlock()
	if wasRunning {
		s.logger().Info("price sync stopped")
	}
}

// Wait blocks until the passes launched by Start have returned.
func (s *PriceSyncService) Wait() {
	if s == nil {
		return
	}
	s.passes.Wait()
}

func (s *PriceSyncService) Running() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *PriceSyncService) stopLocked() {
	if s.Scheduler != nil && s.entryID != 0 {
		s.Scheduler.Remove(s.entryID)
	}
	s.entryID = 0
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.running = false
}

func (s *PriceSyncService) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	res := s.SyncAll(ctx)
	s.logger().Info("price sync pass finished",
		zap.Int("ok", res.OK),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)),
	)
}

// SyncAll refreshes each symbol in order. Failures are logged and skipped.
// Cancellation is checked between symbols.
func (s *PriceSyncService) SyncAll(ctx context.Context) SyncResult {
	var res SyncResult
	if s == nil || s.Oracle == nil {
		return res
	}
	pub := publisherOrNop(s.Publisher)
	for i, symbol := range s.Symbols {
		if i > 0 && !sleepCtx(ctx, s.delay()) {
			return res
		}
		if ctx.Err() != nil {
			return res
		}
		// The refresh runs detached from cancellation so a stop lets the
		// current symbol complete.
		q, err := s.Oracle.Refresh(context.WithoutCancel(ctx), symbol)
		if err != nil {
			res.Failed++
			s.logger().Warn("price sync: refresh failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		res.OK++
		pub.PublishMarketUpdate(q)
	}
	return res
}

func (s *PriceSyncService) interval() time.Duration {
	if s.Interval <= 0 {
		return DefaultSyncInterval
	}
	return s.Interval
}

func (s *PriceSyncService) delay() time.Duration {
	if s.Delay < 0 {
		return 0
	}
	if s.Delay == 0 {
		return DefaultSyncDelay
	}
	return s.Delay
}

func (s *PriceSyncService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
