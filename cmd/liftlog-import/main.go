package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/localstate"
	"github.com/claude/liftlog/internal/reconcile"
	"github.com/claude/liftlog/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	login := flag.String("user", "", "login of the user to import for (defaults to the dev login)")
	csvPath := flag.String("path", "", "path to an Alpha Progression CSV export (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the database")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-import -config config.yaml -path export.csv [-user login] [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stdout)

	loc, err := cfg.App.Location()
	if err != nil {
		log.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Error("opening export", "path", *csvPath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	state, err := localstate.Open(cfg.State.Dir)
	if err != nil {
		log.Error("failed to open local state", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	if *login == "" {
		*login = cfg.Auth.DevLogin
	}
	uid, err := db.GetOrCreateUser(ctx, *login, *login)
	if err != nil {
		log.Error("resolving user", "login", *login, "error", err)
		os.Exit(1)
	}

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
	}

	rec := reconcile.New(db, state, loc, nil, log)
	imp := alpha.NewImporter(rec, loc, log)

	start := time.Now()
	res, importErr := imp.Import(ctx, uid, f, *dryRun)
	if res != nil {
		printResult(log, res)
	}
	if !*dryRun {
		logImport(ctx, db, uid, res, importErr, time.Since(start), log)
	}
	if importErr != nil {
		log.Error("import failed", "error", importErr)
		os.Exit(1)
	}
	log.Info("import complete")
}

func printResult(log *slog.Logger, res *alpha.Result) {
	log.Info("import stats",
		"sessions_received", res.SessionsReceived,
		"workouts_imported", res.WorkoutsImported,
		"workouts_skipped", res.WorkoutsSkipped,
		"sets_imported", res.SetsImported,
		"warmups_skipped", res.WarmupsSkipped,
		"aggregates_pending", res.AggregatesPending,
	)
}

func logImport(ctx context.Context, db *storage.DB, uid int, res *alpha.Result, importErr error, elapsed time.Duration, log *slog.Logger) {
	ms := int(elapsed.Milliseconds())
	entry := storage.ImportLog{UserID: uid, Source: "alpha-cli", Status: "success", DurationMs: &ms}
	if importErr != nil {
		entry.Status = "error"
		msg := importErr.Error()
		entry.ErrorMessage = &msg
	}
	if res != nil {
		entry.SessionsReceived = res.SessionsReceived
		entry.WorkoutsImported = res.WorkoutsImported
		entry.WorkoutsSkipped = res.WorkoutsSkipped
		entry.SetsImported = res.SetsImported
	}
	if _, err := db.InsertImportLog(ctx, entry); err != nil {
		log.Warn("failed to log import", "error", err)
	}
}
