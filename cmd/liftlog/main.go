package main

import (
	"context"
	"errors"
	"flag"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/liftlog/internal/bodyweight"
	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/generator"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/localstate"
	lmcp "github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/plans"
	"github.com/claude/liftlog/internal/reconcile"
	"github.com/claude/liftlog/internal/scheduler"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// A missing .env is normal outside development.
	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		config.LogConfig{Level: "info", Format: "text"}.NewLogger(os.Stderr).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stdout)
	log.Info("LiftLog starting", "version", Version)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn("reading .env failed", "error", envErr)
	}

	loc, err := cfg.App.Location()
	if err != nil {
		log.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	state, err := localstate.Open(cfg.State.Dir)
	if err != nil {
		log.Error("failed to open local state", "dir", cfg.State.Dir, "error", err)
		os.Exit(1)
	}
	defer state.Close()

	lib, err := catalog.Default()
	if err != nil {
		log.Error("failed to load exercise catalog", "error", err)
		os.Exit(1)
	}
	templates, err := catalog.DefaultTemplates()
	if err != nil {
		log.Error("failed to load workout templates", "error", err)
		os.Exit(1)
	}

	seed := cfg.App.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	m := metrics.New()
	gen := generator.NewSeeded(lib, seed)
	rec := reconcile.New(db, state, loc, m, log)
	sessions := session.NewManager(state, rec, log)
	planSvc := plans.NewService(gen, lib, db, state, m, log)
	importer := alpha.NewImporter(rec, loc, log)
	weights := bodyweight.NewService(db, loc, log)

	sched, err := scheduler.New(rec, loc, cfg.Reconcile.RetrySchedule, cfg.Reconcile.ResyncSchedule, log)
	if err != nil {
		log.Error("invalid reconcile schedule", "error", err)
		os.Exit(1)
	}
	sched.Start()

	srv := server.New(server.Deps{
		Sessions:  sessions,
		Plans:     planSvc,
		Workouts:  rec,
		Catalog:   lib,
		Templates: templates,
		Weights:   weights,
		Users:     db,
		Stats:     db,
		Importer:  importer,
		Metrics:   m,
		APIKey:    cfg.Auth.APIKey,
		DevUser:   server.UserInfo{Login: cfg.Auth.DevLogin, DisplayName: cfg.Auth.DevName},
		RateLimit: rate.Limit(cfg.Server.RateLimit.RPS),
		Burst:     cfg.Server.RateLimit.Burst,
	}, log)

	mcpSrv := lmcp.New(&lmcp.Local{History: rec, Plans: planSvc, Catalog: lib, Stats: db}, Version, log)
	srv.MountMCP(mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return lmcp.WithUserID(ctx, server.UserIDFromContext(r.Context()))
		}),
	))

	// Start server over tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := cfg.Server.Addr()
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)", "dev_user", cfg.Auth.DevLogin)
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	sched.Stop(shutdownCtx)
	log.Info("server stopped")
}
