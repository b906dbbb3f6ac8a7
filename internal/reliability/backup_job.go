package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/events"
)

const remoteBackupTimeout = 10 * time.Minute

// BackupJob runs the nightly local backup and, when configured, the
// remote archive upload.
type BackupJob struct {
	local         *BackupService
	remote        *S3BackupService // nil when no object store is configured
	retentionDays int
	bus           *events.Bus // nil disables events
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(
	local *BackupService,
	remote *S3BackupService,
	retentionDays int,
	bus *events.Bus,
	log zerolog.Logger,
) *BackupJob {
	return &BackupJob{
		local:         local,
		remote:        remote,
		retentionDays: retentionDays,
		bus:           bus,
		log:           log.With().Str("job", "daily_backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "daily_backup"
}

// Run executes the backup
func (j *BackupJob) Run() error {
	backupDir, err := j.local.DailyBackup()
	if err != nil {
		return fmt.Errorf("local backup failed: %w", err)
	}

	remote := false
	if j.remote != nil {
		ctx, cancel := context.WithTimeout(context.Background(), remoteBackupTimeout)
		defer cancel()

		if err := j.remote.CreateAndUploadBackup(ctx); err != nil {
			return fmt.Errorf("remote backup failed: %w", err)
		}

		if err := j.remote.RotateOldBackups(ctx, j.retentionDays); err != nil {
			j.log.Warn().Err(err).Msg("Remote backup rotation failed")
		}

		remote = true
	}

	if j.bus != nil {
		j.bus.Publish(events.BackupCompleted, "reliability", map[string]interface{}{
			"backup_dir": backupDir,
			"remote":     remote,
		})
	}

	return nil
}
