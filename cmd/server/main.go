package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"rag-chatbot/internal/app"
	"rag-chatbot/internal/httputil"
	"rag-chatbot/internal/logger"
	"rag-chatbot/internal/queue"
)

const (
	uploadTimeout   = 2 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx)
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	if err := run(ctx, deps); err != nil {
		deps.Log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, deps *app.Deps) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           routes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeInvalidateCache, invalidateHandler(deps))
	})
	g.Go(func() error {
		<-ctx.Done()
		deps.Log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func routes(deps *app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log)

	r.Get("/health", httputil.HealthHandler(logger.ServiceName))
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	r.With(middleware.Timeout(uploadTimeout)).Post("/upload/pdf", uploadHandler(deps))
	r.Route("/chat", func(r chi.Router) {
		r.Post("/stream", chatStreamHandler(deps))
	})
	return r
}

// invalidateHandler drops cached retrievals once a document changes.
func invalidateHandler(deps *app.Deps) queue.Handler {
	return func(ctx context.Context, task queue.Task) error {
		p, err := queue.DecodeDocument(task)
		if err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if err := deps.Cache.InvalidateDocument(ctx, p.Name); err != nil {
			return fmt.Errorf("invalidate cache for %q: %w", p.Name, err)
		}
		deps.Log.Debug("retrieval cache invalidated", "name", p.Name, "task_id", task.ID)
		return nil
	}
}
