package token

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval — периодичность фоновой чистки
const DefaultSweepInterval = time.Hour

// Sweeper периодически удаляет просроченные сессионные токены.
// Запускается один раз при старте процесса и живет до отмены контекста,
// поэтому тесты и graceful shutdown могут остановить его детерминированно.
type Sweeper struct {
	logger   *slog.Logger
	manager  *Manager
	interval time.Duration
}

// NewSweeper creates a new background sweeper
// interval <= 0 falls back to DefaultSweepInterval
func NewSweeper(logger *slog.Logger, manager *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		logger:   logger,
		manager:  manager,
		interval: interval,
	}
}

// Run блокируется до отмены ctx. Ошибка одной итерации логируется
// и не останавливает цикл: следующий тик выполнится в любом случае.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("session token sweeper started",
		slog.String("interval", s.interval.String()),
		slog.String("ttl", s.manager.TTL().String()))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session token sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.manager.Sweep(ctx)
	if err != nil {
		s.logger.Error("session token sweep failed", slog.Any("error", err))
		return
	}

	if deleted > 0 {
		s.logger.Info("swept stale session tokens", slog.Int("tokens_deleted", deleted))
	}
}
