package upload

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/liftlog/internal/ingest/alpha"
)

// Sender delivers one export to the server.
type Sender interface {
	SendExport(ctx context.Context, data []byte, dryRun bool) (*alpha.Result, error)
}

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	WorkoutsImported int
	WorkoutsSkipped  int
	SetsImported     int
}

// Uploader walks a directory of Alpha Progression CSV exports and sends each
// one not yet imported to the LiftLog server.
type Uploader struct {
	sender Sender
	state  *StateDB
	dir    string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader.
func New(sender Sender, state *StateDB, dir string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		sender: sender,
		state:  state,
		dir:    dir,
		dryRun: dryRun,
		log:    log,
	}
}

// Run uploads every new export under the directory, oldest name first. A
// failed file is counted and logged; the remaining files are still sent.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := findExports(u.dir)
	if err != nil {
		return &u.stats, err
	}
	u.stats.FilesTotal = len(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		if err := u.uploadFile(ctx, path); err != nil {
			u.stats.FilesErrored++
			u.log.Error("upload failed", "file", path, "error", err)
		}
	}
	return &u.stats, nil
}

func (u *Uploader) uploadFile(ctx context.Context, path string) error {
	rel, err := filepath.Rel(u.dir, path)
	if err != nil {
		rel = path
	}

	hash, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}
	done, err := u.state.IsUploaded(ctx, hash)
	if err != nil {
		return err
	}
	if done {
		u.stats.FilesSkipped++
		u.log.Debug("already uploaded", "file", rel)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	res, err := u.sender.SendExport(ctx, data, u.dryRun)
	if err != nil {
		return err
	}

	u.stats.WorkoutsImported += res.WorkoutsImported
	u.stats.WorkoutsSkipped += res.WorkoutsSkipped
	u.stats.SetsImported += res.SetsImported
	u.log.Info("export sent",
		"file", rel,
		"sessions", res.SessionsReceived,
		"imported", res.WorkoutsImported,
		"skipped", res.WorkoutsSkipped,
		"dry_run", u.dryRun,
	)
	if u.dryRun {
		return nil
	}
	u.stats.FilesUploaded++
	return u.state.MarkUploaded(ctx, hash, rel, res.WorkoutsImported)
}

// findExports returns the .csv files under dir, sorted by path.
func findExports(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
