package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"propbook/pkg/config"
	"propbook/pkg/contracts"
	"propbook/pkg/middleware"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"
)

// Worker is a long-running loop that returns when ctx is cancelled.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// Application runs a process's background workers next to its health
// server and stops them together on SIGINT/SIGTERM.
type Application struct {
	cfg     *config.Config
	server  *http.Server
	workers []Worker
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

func (a *Application) SetHealth(healthHandler contracts.Handler) {
	router := httprouter.New()
	healthHandler.RegisterRoutes(router)

	var handler http.Handler = router
	handler = middleware.RequestTimeout(a.cfg.ReadTimeout)(handler)
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      handler,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}
	a.cfg.Log.Info("Health server configured", "port", a.cfg.Port)
}

func (a *Application) AddWorker(name string, run func(ctx context.Context) error) {
	a.workers = append(a.workers, Worker{Name: name, Run: run})
}

func (a *Application) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.RunContext(ctx); err != nil {
		a.cfg.Log.Fatal("Application stopped with error", "error", err)
	}
}

// RunContext blocks until ctx is done or a worker or the server fails, then
// shuts everything down. The first failure is returned.
func (a *Application) RunContext(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, w := range a.workers {
		g.Go(func() error {
			a.cfg.Log.Info("Starting worker", "worker", w.Name)
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("worker %s: %w", w.Name, err)
			}
			a.cfg.Log.Info("Worker stopped", "worker", w.Name)
			return nil
		})
	}

	if a.server != nil {
		g.Go(func() error {
			a.cfg.Log.Info("Starting health server", "address", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
	}

	<-gctx.Done()
	if ctx.Err() != nil {
		a.cfg.Log.Info("Shutdown signal received")
	}
	return a.gracefulShutdown(ctx, gctx, g)
}

func (a *Application) gracefulShutdown(parent, gctx context.Context, g *errgroup.Group) error {
	a.cfg.Log.Info("Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cfg.Log.Error("Server shutdown failed", "error", err)
			if err := a.server.Close(); err != nil {
				a.cfg.Log.Error("Could not stop server gracefully", "error", err)
			}
		}
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			a.cfg.Log.Error("Component failed, shut down", "error", err)
			return err
		}
		a.cfg.Log.Info("Background workers stopped")
		return nil
	case <-shutdownCtx.Done():
		a.cfg.Log.Warn("Timed out waiting for background workers")
		if parent.Err() != nil {
			return nil
		}
		return context.Cause(gctx)
	}
}
