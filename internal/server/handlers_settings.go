package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// maxImportBytes bounds an uploaded export file.
const maxImportBytes = 32 << 20

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Stats.GetDataStats(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, models.Unavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrainingSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bucket := r.URL.Query().Get("bucket")
	switch bucket {
	case "", "week", "month":
	default:
		s.writeError(w, r, &models.ValidationError{Field: "bucket", Reason: "want week or month"})
		return
	}
	periods, err := s.Stats.TrainingSummary(r.Context(), UserIDFromContext(r.Context()), start, end, bucket)
	if err != nil {
		s.writeError(w, r, models.Unavailable(err))
		return
	}
	if periods == nil {
		periods = []storage.TrainingSummaryPeriod{}
	}
	writeJSON(w, http.StatusOK, periods)
}

func (s *Server) handleExerciseStats(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.Stats.ExerciseStats(r.Context(), UserIDFromContext(r.Context()), start, end, r.URL.Query().Get("exercise"))
	if err != nil {
		s.writeError(w, r, models.Unavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.Stats.QueryImportLogs(r.Context(), UserIDFromContext(r.Context()), limit)
	if err != nil {
		s.writeError(w, r, models.Unavailable(err))
		return
	}
	if logs == nil {
		logs = []storage.ImportLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	uid := UserIDFromContext(r.Context())
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	start := time.Now()
	result, err := s.Importer.Import(r.Context(), uid, http.MaxBytesReader(w, r.Body, maxImportBytes), dryRun)
	if !dryRun {
		s.logImport(uid, "alpha", result, err, int(time.Since(start).Milliseconds()))
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// logImport records an import's result in the import log.
func (s *Server) logImport(uid int, source string, result *alpha.Result, importErr error, durationMs int) {
	entry := storage.ImportLog{
		UserID:     uid,
		Source:     source,
		Status:     "success",
		DurationMs: &durationMs,
	}
	if importErr != nil {
		entry.Status = "error"
		msg := importErr.Error()
		entry.ErrorMessage = &msg
	}
	if result != nil {
		entry.SessionsReceived = result.SessionsReceived
		entry.WorkoutsImported = result.WorkoutsImported
		entry.WorkoutsSkipped = result.WorkoutsSkipped
		entry.SetsImported = result.SetsImported
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()

	if _, err := s.Stats.InsertImportLog(ctx, entry); err != nil {
		s.log.Error("failed to log import", "source", source, "error", err)
	}
}

// contextWithTimeout returns a background context with a 5-second timeout,
// so the log entry is written even when the request was cancelled.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
}
