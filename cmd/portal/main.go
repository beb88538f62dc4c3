package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saedportal.org/internal/ai"
	"saedportal.org/internal/config"
	"saedportal.org/internal/directory"
	"saedportal.org/internal/gateway"
	"saedportal.org/internal/gateway/pg"
	"saedportal.org/internal/httpapi"
	"saedportal.org/internal/obs"
	"saedportal.org/internal/review"
	"saedportal.org/internal/session"
)

var version = "0.3.0"

func main() {
	obs.Init()
	cfg := config.Load()

	var (
		store gateway.Store
		auth  gateway.Auth
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()

		pgAuth, err := pg.NewAuth(pgStore.DB(), cfg.AuthSecret,
			pg.WithSessionTTL(cfg.SessionTTL),
			pg.WithEmailConfirmation(cfg.RequireEmailConfirm),
		)
		if err != nil {
			log.Fatalf("auth: %v", err)
		}
		store, auth = pgStore, pgAuth
	} else {
		// No DSN: run on the in-memory gateway, the demo deployment mode.
		mem := gateway.NewInMemory()
		store, auth = mem, mem
	}

	dir := directory.New(store)

	// The demo probe closes over the controller, which in turn needs the
	// review gateway as its profile syncer; bind late.
	var ctrl *session.Controller
	reviews := review.New(store, dir,
		review.WithDemoCheck(func() bool { return ctrl != nil && ctrl.State().Demo }),
		review.WithNotifier(func(msg string) {
			obs.LogJSON(map[string]any{"level": "info", "component": "review", "msg": msg})
		}),
	)
	ctrl = session.New(store, auth, dir, reviews)

	advisor := ai.NewClient(cfg.AIAPIKey, ai.WithModel(cfg.AIModel))

	api := httpapi.New(store, auth, ctrl, dir, reviews, advisor, version)
	api.SetRateLimit(int(cfg.RateLimitRPS*2), cfg.RateLimitRPS)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ctrl.Boot(ctx)
		ctrl.Watch(ctx)
	}()

	log.Printf("Starting saed-portal %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}
