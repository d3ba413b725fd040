package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"daystart/internal/config"
	"daystart/internal/content"
	"daystart/internal/logging"
	"daystart/internal/queue"
)

// Report summarizes one sweep. Skipped is set when the minimum interval
// since the previous sweep has not elapsed.
type Report struct {
	Skipped          bool  `json:"skipped"`
	FilesScanned     int   `json:"files_scanned"`
	FilesDeleted     int   `json:"files_deleted"`
	CacheRowsDeleted int64 `json:"cache_rows_deleted"`
	JobsDeleted      int64 `json:"jobs_deleted"`
	Errors           int   `json:"errors"`
}

// Sweeper deletes expired artifacts, cache rows, and terminal jobs.
type Sweeper struct {
	store       *queue.Store
	cache       *content.Manager
	audioDir    string
	retention   time.Duration
	minInterval time.Duration
	logger      *slog.Logger
}

// New builds a sweeper from configuration.
func New(store *queue.Store, cache *content.Manager, cfg *config.Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:       store,
		cache:       cache,
		audioDir:    cfg.Paths.AudioDir,
		retention:   time.Duration(cfg.Cleanup.RetentionDays) * 24 * time.Hour,
		minInterval: time.Duration(cfg.Cleanup.MinIntervalHours) * time.Hour,
		logger:      logging.NewComponentLogger(logger, "cleanup"),
	}
}

// Sweep runs one cleanup pass. A second call inside the minimum interval is
// a cheap no-op. Storage errors are counted and logged; the sweep keeps
// going so one bad file never blocks retention.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	logID, started, err := s.begin(ctx)
	if err != nil {
		return Report{}, err
	}
	if !started {
		return Report{Skipped: true}, nil
	}

	report := Report{}
	cutoff := time.Now().UTC().Add(-s.retention)

	s.sweepArtifacts(cutoff, &report)

	if rows, err := s.cache.PurgeExpired(ctx); err != nil {
		report.Errors++
		s.logger.Warn("cache purge failed", logging.Error(err))
	} else {
		report.CacheRowsDeleted = rows
	}

	if jobs, err := s.store.PurgeTerminal(ctx, cutoff); err != nil {
		report.Errors++
		s.logger.Warn("job purge failed", logging.Error(err))
	} else {
		report.JobsDeleted = jobs
	}

	if err := s.finish(ctx, logID, report); err != nil {
		s.logger.Warn("cleanup log not updated", logging.Error(err))
	}
	s.logger.Info("sweep finished",
		logging.Int("files_deleted", report.FilesDeleted),
		logging.Int64("cache_rows_deleted", report.CacheRowsDeleted),
		logging.Int64("jobs_deleted", report.JobsDeleted),
		logging.Int("errors", report.Errors))
	return report, nil
}

// begin records the sweep start unless another sweep ran inside the minimum
// interval. The existence check and the insert are one statement, so two
// concurrent triggers cannot both start.
func (s *Sweeper) begin(ctx context.Context) (int64, bool, error) {
	now := time.Now().UTC()
	threshold := now.Add(-s.minInterval).Format(time.RFC3339Nano)

	res, err := s.store.DB().ExecContext(
		ctx,
		`INSERT INTO cleanup_log (started_at)
         SELECT ? WHERE NOT EXISTS (
             SELECT 1 FROM cleanup_log WHERE started_at > ?)`,
		now.Format(time.RFC3339Nano), threshold,
	)
	if err != nil {
		return 0, false, fmt.Errorf("record sweep start: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("sweep start rows affected: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("sweep log id: %w", err)
	}
	return id, true, nil
}

func (s *Sweeper) finish(ctx context.Context, logID int64, report Report) error {
	_, err := s.store.DB().ExecContext(
		ctx,
		`UPDATE cleanup_log
         SET finished_at = ?, files_scanned = ?, files_deleted = ?,
             cache_rows_deleted = ?, jobs_deleted = ?, error_count = ?
         WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		report.FilesScanned, report.FilesDeleted,
		report.CacheRowsDeleted, report.JobsDeleted, report.Errors,
		logID,
	)
	return err
}

func (s *Sweeper) sweepArtifacts(cutoff time.Time, report *Report) {
	entries, err := os.ReadDir(s.audioDir)
	if err != nil {
		if !os.IsNotExist(err) {
			report.Errors++
			s.logger.Warn("audio directory unreadable", logging.Error(err))
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		report.FilesScanned++
		info, err := entry.Info()
		if err != nil {
			report.Errors++
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.audioDir, entry.Name())
		if err := os.Remove(path); err != nil {
			report.Errors++
			s.logger.Warn("artifact not removed", logging.String("path", path), logging.Error(err))
			continue
		}
		report.FilesDeleted++
	}
}
