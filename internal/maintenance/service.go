package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/session"
)

type Config struct {
	Interval  time.Duration
	IdleTTL   time.Duration
	BatchSize int
	// MaxBatches bounds a single cycle so one sweep cannot hold the store forever.
	MaxBatches int
}

// Service removes sessions that have been idle for longer than IdleTTL.
type Service struct {
	Pruner session.Pruner
	Config Config
	Logger *slog.Logger
	Clock  func() time.Time
}

type PruneSummary struct {
	Cutoff         time.Time `json:"cutoff"`
	Batches        int       `json:"batches"`
	SessionsPruned int64     `json:"sessions_pruned"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()
	if s.Pruner == nil {
		return errors.New("session pruner is required")
	}

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.Logger.ErrorContext(ctx, "janitor cycle failed", slog.Any("error", err), slog.Any("summary", summary))
				continue
			}
			s.Logger.InfoContext(ctx, "janitor cycle completed", slog.Any("summary", summary))
		}
	}
}

// RunOnce prunes idle sessions in batches until a batch comes back short.
func (s *Service) RunOnce(ctx context.Context) (PruneSummary, error) {
	s.ensureDefaults()
	if s.Pruner == nil {
		return PruneSummary{}, errors.New("session pruner is required")
	}

	summary := PruneSummary{Cutoff: s.Clock().UTC().Add(-s.Config.IdleTTL)}
	for summary.Batches < s.Config.MaxBatches {
		if err := ctx.Err(); err != nil {
			janitorRunsTotal.WithLabelValues("failed").Inc()
			return summary, err
		}
		count, err := s.Pruner.PruneIdle(ctx, summary.Cutoff, s.Config.BatchSize)
		if err != nil {
			janitorRunsTotal.WithLabelValues("failed").Inc()
			return summary, fmt.Errorf("prune idle sessions: %w", err)
		}
		summary.Batches++
		summary.SessionsPruned += count
		observability.AddSessionsPruned(count)
		if count < int64(s.Config.BatchSize) {
			break
		}
	}
	janitorRunsTotal.WithLabelValues("completed").Inc()
	return summary, nil
}

func (s *Service) ensureDefaults() {
	if s.Config.Interval <= 0 {
		s.Config.Interval = 10 * time.Minute
	}
	if s.Config.IdleTTL <= 0 {
		s.Config.IdleTTL = 7 * 24 * time.Hour
	}
	if s.Config.BatchSize <= 0 {
		s.Config.BatchSize = 500
	}
	if s.Config.MaxBatches <= 0 {
		s.Config.MaxBatches = 100
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.DiscardHandler)
	}
}
