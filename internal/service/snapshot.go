package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"folio/internal/models"
	"folio/internal/repository"
)

// SnapshotService records hourly value history for every portfolio using the
// last known holding prices.
type SnapshotService struct {
	Repo    repository.Repository
	Auditor Auditor
	Logger  *zap.Logger
	Now     func() time.Time
}

// SnapshotAll writes one snapshot per portfolio for the current hour. A rerun
// within the same hour overwrites that hour's row. It returns the number of
// snapshots written.
func (s *SnapshotService) SnapshotAll(ctx context.Context) (int, error) {
	if s == nil || s.Repo == nil {
		return 0, nil
	}
	at := s.now().Truncate(time.Hour)
	written := 0
	offset := 0
	for {
		page, err := s.Repo.ListPortfolios(ctx, repository.ListPortfoliosParams{Limit: 200, Offset: offset})
		if err != nil {
			return written, err
		}
		for _, p := range page {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			if err := s.snapshot(ctx, p.ID, at); err != nil {
				s.logger().Warn("portfolio snapshot failed", zap.Uint64("portfolio_id", p.ID), zap.Error(err))
				continue
			}
			written++
		}
		if len(page) < 200 {
			break
		}
		offset += len(page)
	}
	return written, nil
}

func (s *SnapshotService) snapshot(ctx context.Context, portfolioID uint64, at time.Time) error {
	p, err := s.Repo.GetPortfolioWithHoldings(ctx, portfolioID)
	if err != nil || p == nil {
		return err
	}
	holdingsValue := p.HoldingsValue()
	return s.Repo.UpsertPortfolioSnapshot(ctx, &models.PortfolioSnapshot{
		PortfolioID:   p.ID,
		SnapshotAt:    at,
		Cash:          p.Cash,
		HoldingsValue: holdingsValue,
		TotalValue:    p.Cash.Add(holdingsValue),
	})
}

// Run is the cron job entry point.
func (s *SnapshotService) Run(ctx context.Context) {
	n, err := s.SnapshotAll(ctx)
	if err != nil {
		s.logger().Warn("snapshot run failed", zap.Int("written", n), zap.Error(err))
		s.audit("folio_cron_snapshot_failed", "warn", map[string]any{"written": n, "error": err.Error()})
		return
	}
	s.logger().Info("snapshot run finished", zap.Int("written", n))
	s.audit("folio_cron_snapshot_ok", "info", map[string]any{"portfolios": n})
}

func (s *SnapshotService) audit(action, level string, details map[string]any) {
	if s.Auditor != nil {
		s.Auditor.LogBestEffort(action, level, details)
	}
}

func (s *SnapshotService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return nowUTC()
}

func (s *SnapshotService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
