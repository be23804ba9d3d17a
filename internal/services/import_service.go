package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/djeeyo/nmreggae/internal/calendar"
	"github.com/djeeyo/nmreggae/internal/csvimport"
	"github.com/djeeyo/nmreggae/internal/messaging"
	"github.com/djeeyo/nmreggae/internal/metrics"
	"github.com/djeeyo/nmreggae/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ImportResult reports a preview or a committed replace-all
type ImportResult struct {
	Events []models.Event
	// Count is the number of accepted (preview) or inserted (commit) rows
	Count   int
	Skipped int
	// Previous is the number of rows the replace removed
	Previous int
	// SnapshotPath is the file the previous rows were written to, if any
	SnapshotPath string
}

// PreviewCSV parses and transforms without touching the store
func (s *EventService) PreviewCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	span := s.tracer.StartSegment(ctx, "EventService.PreviewCSV")
	defer span.End()

	parsed, err := csvimport.Parse(r)
	if err != nil {
		return nil, err
	}

	log.Info().Int("accepted", len(parsed.Events)).Int("skipped", parsed.Skipped).Msg("CSV preview")
	return &ImportResult{
		Events:  parsed.Events,
		Count:   len(parsed.Events),
		Skipped: parsed.Skipped,
	}, nil
}

// ReplaceFromCSV replaces every stored event with the CSV content. The
// previous rows are read, optionally snapshotted to the backup directory,
// deleted and replaced in one transaction; a parse failure touches nothing.
func (s *EventService) ReplaceFromCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	span := s.tracer.StartSegment(ctx, "EventService.ReplaceFromCSV")
	defer span.End()

	parsed, err := csvimport.Parse(r)
	if err != nil {
		s.metrics.RecordReplace(metrics.ReplaceOutcomeFailure)
		return nil, err
	}
	s.metrics.RecordImport(len(parsed.Events), parsed.Skipped)

	result := &ImportResult{
		Events:  parsed.Events,
		Skipped: parsed.Skipped,
	}

	var snapshot func([]models.Event) error
	if s.backupDir != "" {
		snapshot = func(previous []models.Event) error {
			path, err := s.writeBackupFile(snapshotFilename(s.now()), previous)
			if err != nil {
				return err
			}
			result.SnapshotPath = path
			return nil
		}
	}

	previous, err := s.store.ReplaceAll(ctx, parsed.Events, snapshot)
	if err != nil {
		s.metrics.RecordReplace(metrics.ReplaceOutcomeFailure)
		if result.SnapshotPath != "" {
			// The transaction rolled back, so the snapshot still matches the store.
			log.Info().Str("path", result.SnapshotPath).Msg("snapshot kept after failed replace")
		}
		return nil, errors.Wrap(err, "failed to replace events")
	}
	s.metrics.RecordReplace(metrics.ReplaceOutcomeSuccess)

	result.Count = len(parsed.Events)
	result.Previous = len(previous)

	log.Info().
		Int("inserted", result.Count).
		Int("previous", result.Previous).
		Int("skipped", result.Skipped).
		Str("snapshot", result.SnapshotPath).
		Msg("events replaced from CSV")

	s.invalidateCache(ctx)
	if s.search != nil {
		if _, err := s.Reindex(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to rebuild search index after replace")
		}
	}
	count, prev := result.Count, result.Previous
	s.publish(ctx, messaging.Notification{Type: messaging.TypeEventsReplaced, Count: &count, Previous: &prev})

	return result, nil
}

// ExportCSV writes every stored event as a backup CSV and returns the row count
func (s *EventService) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	span := s.tracer.StartSegment(ctx, "EventService.ExportCSV")
	defer span.End()

	events, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list events for backup")
	}
	if err := csvimport.WriteBackup(w, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

// BackupFilename names a backup downloaded today
func (s *EventService) BackupFilename() string {
	return csvimport.BackupFilename(s.Today())
}

// WriteSnapshot writes a dated backup of the whole table into the backup
// directory and returns its path
func (s *EventService) WriteSnapshot(ctx context.Context) (string, int, error) {
	if s.backupDir == "" {
		return "", 0, errors.New("backup directory is not configured")
	}

	events, err := s.store.ListAll(ctx)
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to list events for backup")
	}

	path, err := s.writeBackupFile(s.BackupFilename(), events)
	if err != nil {
		return "", 0, err
	}
	return path, len(events), nil
}

// writeBackupFile writes to a temp file in the backup directory and renames
// it into place
func (s *EventService) writeBackupFile(name string, events []models.Event) (path string, err error) {
	defer func() { s.metrics.RecordBackup(err == nil) }()

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create backup directory")
	}

	tmp, err := os.CreateTemp(s.backupDir, ".backup-*.csv")
	if err != nil {
		return "", errors.Wrap(err, "failed to create backup file")
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err := csvimport.WriteBackup(tmp, events); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close backup file")
	}

	path = filepath.Join(s.backupDir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, "failed to move backup into place")
	}
	return path, nil
}

func snapshotFilename(now time.Time) string {
	return fmt.Sprintf("pre-replace-%s-%s.csv", calendar.FormatDate(now), now.UTC().Format("150405"))
}
