// Package server собирает хранилище, менеджер токенов, обработчики
// и фоновые задачи в один HTTP сервис.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/accountd/internal/server/config"
	"github.com/iudanet/accountd/internal/server/files"
	"github.com/iudanet/accountd/internal/server/handlers"
	"github.com/iudanet/accountd/internal/server/mail"
	"github.com/iudanet/accountd/internal/server/middleware"
	"github.com/iudanet/accountd/internal/server/storage/sqlite"
	"github.com/iudanet/accountd/internal/server/token"
)

// Server — собранное приложение
type Server struct {
	logger  *slog.Logger
	cfg     *config.Config
	storage *sqlite.Storage
	httpSrv *http.Server
	sweeper *token.Sweeper
	limiter *middleware.RateLimiter
}

// New инициализирует все зависимости. version попадает в health check.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*Server, error) {
	store, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	images, err := files.NewStore(cfg.ImageDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to init image store: %w", err)
	}

	tokens := token.NewManager(logger, store, cfg.TokenTTL)
	sweeper := token.NewSweeper(logger, tokens, cfg.SweepInterval)

	mailer := mail.NewMailer(mail.Config{
		Host:    cfg.SMTP.Host,
		Port:    cfg.SMTP.Port,
		User:    cfg.SMTP.User,
		Pass:    cfg.SMTP.Pass,
		From:    cfg.SMTP.From,
		BaseURL: cfg.BaseURL,
	}, logger)

	authHandler := handlers.NewAuthHandler(logger, store, tokens)
	usersHandler := handlers.NewUsersHandler(logger, store, tokens, mailer, images)
	healthHandler := handlers.NewHealthHandler(logger, version)

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth", authHandler.Login)
	mux.HandleFunc("POST /api/v1/logout", authHandler.Logout)
	mux.HandleFunc("POST /api/v1/users", usersHandler.Register)
	mux.HandleFunc("GET /api/v1/users", usersHandler.List)
	mux.HandleFunc("POST /api/v1/users/activation/{token}", usersHandler.Activate)
	mux.HandleFunc("POST /api/v1/users/reset", usersHandler.RequestPasswordReset)
	mux.HandleFunc("POST /api/v1/users/password", usersHandler.UpdatePassword)
	mux.HandleFunc("GET /api/v1/users/{id}", usersHandler.Get)
	mux.HandleFunc("PUT /api/v1/users/{id}", usersHandler.Update)
	mux.HandleFunc("DELETE /api/v1/users/{id}", usersHandler.Delete)
	mux.HandleFunc("POST /api/v1/users/{id}/image", usersHandler.UploadImage)
	mux.HandleFunc("GET /api/v1/users/{id}/image", usersHandler.GetImage)
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	// Цепочка: recovery — самый внешний, затем логирование,
	// rate limit и шлюз аутентификации
	var handler http.Handler = mux
	handler = middleware.AuthMiddleware(logger, tokens, store)(handler)
	handler = limiter.Middleware()(handler)
	handler = middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		logger:  logger,
		cfg:     cfg,
		storage: store,
		httpSrv: httpSrv,
		sweeper: sweeper,
		limiter: limiter,
	}, nil
}

// Run запускает фоновую чистку токенов и HTTP сервер, блокируется
// до отмены ctx, после чего делает graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Sweeper принадлежит жизненному циклу сервера: стартует один раз
	// здесь и останавливается отменой того же контекста
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go s.sweeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", slog.String("addr", s.cfg.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http shutdown failed", slog.Any("error", err))
	}

	s.limiter.Stop()

	if err := s.storage.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	return nil
}

// Handler возвращает корневой http.Handler (для httptest)
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Close освобождает ресурсы без запуска Run (для тестов)
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.storage.Close()
}
