package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mlinzi.dev/internal/audit"
	"mlinzi.dev/internal/authz"
	"mlinzi.dev/internal/config"
	"mlinzi.dev/internal/httpapi"
	"mlinzi.dev/internal/obs"
	"mlinzi.dev/internal/store/pg"
	"mlinzi.dev/internal/tenant"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	evaluator, err := authz.NewEvaluator(authz.DefaultCatalog(), authz.AllowUnmapped)
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}

	opts := httpapi.Options{
		Version:       version,
		Evaluator:     evaluator,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSecond,
	}

	// Without a DSN the service still answers decision checks; the data and
	// role endpoints report unavailable.
	var pgStore *pg.Store
	if cfg.PGDSN != "" {
		pgStore, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		guard, err := tenant.NewGuard(pgStore)
		if err != nil {
			log.Fatalf("guard: %v", err)
		}
		opts.Probe = httpapi.ReadyProbe{DB: pgStore.DB()}
		opts.Data = pgStore
		opts.Guard = guard
		opts.Roles = pgStore
		opts.Recorder = audit.NewRecorder(pgStore, audit.WithTimeout(cfg.AuditTimeout))
	} else {
		opts.Recorder = audit.NewRecorder(nil)
	}

	api, err := httpapi.New(opts)
	if err != nil {
		log.Fatalf("api: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting mlinzi-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if opts.Recorder != nil {
		opts.Recorder.Wait()
	}
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
