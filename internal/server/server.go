// Пакет server — HTTP-сервер Media Store с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/mediastore/internal/api/handlers"
	"github.com/bigkaa/mediastore/internal/api/middleware"
	"github.com/bigkaa/mediastore/internal/config"
)

// Server — HTTP-сервер Media Store.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, h *handlers.APIHandler) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/media", func(r chi.Router) {
			r.Post("/", h.CreateMedia)
			r.Post("/search", h.SearchMedia)
			r.Post("/bulk", h.BulkUpdate)
			r.Post("/upload", h.UploadMedia)

			// PID передаётся URL-encoded сегментом (DOI содержат "/").
			r.Route("/{pid}", func(r chi.Router) {
				r.Get("/", h.GetMedia)
				r.Patch("/", h.UpdateMedia)
				r.Delete("/", h.DeleteMedia)
				r.Patch("/tags", h.UpdateMediaTags)
				r.Patch("/store-key", h.UpdateMediaStoreKey)
				r.Patch("/identifiers", h.UpdateMediaIdentifiers)
				r.Patch("/metadata", h.UpdateMediaMetadata)
				r.Post("/upload/confirm", h.ConfirmUpload)
				r.Get("/download", h.DownloadMedia)
			})
		})

		r.Route("/store-configs", func(r chi.Router) {
			r.Post("/", h.CreateStoreConfig)
			r.Get("/", h.ListStoreConfigs)
			r.Get("/{pk}", h.GetStoreConfig)
		})

		r.Route("/s3-configs", func(r chi.Router) {
			r.Post("/", h.CreateS3Config)
			r.Get("/", h.ListS3Configs)
		})

		r.Route("/identifier-types", func(r chi.Router) {
			r.Post("/", h.CreateIdentifierType)
			r.Get("/", h.ListIdentifierTypes)
			r.Get("/{name}", h.GetIdentifierType)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
