// Package reliability provides backup services for the portfolio file and
// the SQLite databases.
package reliability

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/database"
)

// BackupService manages local daily backups under <backupDir>/daily/<date>/
type BackupService struct {
	databases     map[string]*database.DB
	portfolioPath string
	backupDir     string
	keep          int
	log           zerolog.Logger
}

// NewBackupService creates a new backup service. keep is the number of
// daily backup sets retained.
func NewBackupService(
	databases map[string]*database.DB,
	portfolioPath string,
	backupDir string,
	keep int,
	log zerolog.Logger,
) *BackupService {
	if keep < 1 {
		keep = 1
	}

	return &BackupService{
		databases:     databases,
		portfolioPath: portfolioPath,
		backupDir:     backupDir,
		keep:          keep,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// DailyBackup backs up the portfolio file and every database into a dated
// directory, verifies the database copies, and rotates old sets. Returns
// the backup directory.
func (s *BackupService) DailyBackup() (string, error) {
	s.log.Info().Msg("Starting daily backup")
	startTime := time.Now()

	date := time.Now().Format("2006-01-02")
	dailyDir := filepath.Join(s.backupDir, "daily", date)
	if err := os.MkdirAll(dailyDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create daily backup directory: %w", err)
	}

	if err := s.backupPortfolioFile(dailyDir); err != nil {
		return "", err
	}

	for _, name := range s.DatabaseNames() {
		backupPath := filepath.Join(dailyDir, name+".db")

		if err := s.BackupDatabase(name, backupPath); err != nil {
			s.log.Error().
				Str("database", name).
				Err(err).
				Msg("Failed to backup database")
			// Continue with other databases
			continue
		}

		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().
				Str("database", name).
				Err(err).
				Msg("Backup verification failed")
			os.Remove(backupPath)
		}
	}

	if err := s.rotateDailyBackups(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate daily backups")
		// Don't fail - backup succeeded
	}

	duration := time.Since(startTime)
	s.log.Info().
		Dur("duration_ms", duration).
		Str("backup_dir", dailyDir).
		Msg("Daily backup completed successfully")

	return dailyDir, nil
}

// DatabaseNames returns the backed-up database names in stable order.
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// BackupDatabase copies a single database to destPath using SQLite's
// VACUUM INTO. The copy is fresh, checkpointed, and compacted.
func (s *BackupService) BackupDatabase(name, destPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("database %s not found", name)
	}

	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(destPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear previous backup: %w", err)
	}

	s.log.Debug().
		Str("database", name).
		Str("backup_path", destPath).
		Msg("Backing up database")

	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	s.log.Debug().
		Str("database", name).
		Int64("size_bytes", info.Size()).
		Msg("Backup created")

	return nil
}

// PortfolioFilePath returns the path of the live portfolio file.
func (s *BackupService) PortfolioFilePath() string {
	return s.portfolioPath
}

// backupPortfolioFile copies the portfolio file into the backup set. A
// missing file is not an error: the portfolio may simply be empty.
func (s *BackupService) backupPortfolioFile(destDir string) error {
	dst := filepath.Join(destDir, filepath.Base(s.portfolioPath))

	if err := CopyFile(s.portfolioPath, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debug().Msg("No portfolio file to back up yet")
			return nil
		}
		return fmt.Errorf("failed to copy portfolio file: %w", err)
	}

	return nil
}

// verifyBackup verifies backup integrity
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// rotateDailyBackups keeps only the newest sets. Date-named directories
// sort lexicographically, so name order is age order.
func (s *BackupService) rotateDailyBackups() error {
	dailyRoot := filepath.Join(s.backupDir, "daily")

	entries, err := os.ReadDir(dailyRoot)
	if err != nil {
		return fmt.Errorf("failed to read daily backup directory: %w", err)
	}

	dates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := time.Parse("2006-01-02", entry.Name()); err != nil {
			s.log.Warn().
				Str("dir", entry.Name()).
				Msg("Skipping unrecognized backup directory")
			continue
		}
		dates = append(dates, entry.Name())
	}

	if len(dates) <= s.keep {
		return nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	for _, date := range dates[s.keep:] {
		path := filepath.Join(dailyRoot, date)
		if err := os.RemoveAll(path); err != nil {
			s.log.Warn().
				Str("path", path).
				Err(err).
				Msg("Failed to delete old daily backup")
		} else {
			s.log.Debug().
				Str("path", path).
				Msg("Deleted old daily backup")
		}
	}

	return nil
}

// CopyFile copies src to dst, truncating dst if it already exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Sync()
}
