package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"reportscheduler/src/models"
)

const scheduledReportRunColumns = `
	id,
	scheduled_report_id,
	status,
	recipients,
	rows_count,
	file_format,
	file_name,
	error_message,
	metadata,
	started_at,
	completed_at`

type ScheduledReportRunRepository interface {
	CreateRunning(ctx context.Context, run *models.ScheduledReportRun) (*models.ScheduledReportRun, error)
	MarkSuccess(ctx context.Context, id string, rowsCount int, fileFormat, fileName string) error
	MarkFailed(ctx context.Context, id string, errorMessage string, rowsCount *int) error
	MarkSkipped(ctx context.Context, id string) error
	ListBySchedule(ctx context.Context, scheduledReportID uint, limit int) ([]*models.ScheduledReportRun, error)
}

type scheduledReportRunRepo struct {
	DB *pgxpool.Pool
}

func NewScheduledReportRunRepository(db *pgxpool.Pool) ScheduledReportRunRepository {
	return &scheduledReportRunRepo{DB: db}
}

func scanScheduledReportRun(row rowScanner) (*models.ScheduledReportRun, error) {
	var run models.ScheduledReportRun
	var status string
	err := row.Scan(
		&run.ID,
		&run.ScheduledReportID,
		&status,
		&run.Recipients,
		&run.RowsCount,
		&run.FileFormat,
		&run.FileName,
		&run.ErrorMessage,
		&run.Metadata,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = models.RunStatus(status)
	return &run, nil
}

// CreateRunning inserts the run record in the running state. Recipients are
// snapshotted by the caller at this instant; later edits to the parent
// schedule never change history.
func (r *scheduledReportRunRepo) CreateRunning(ctx context.Context, run *models.ScheduledReportRun) (*models.ScheduledReportRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Metadata == nil {
		run.Metadata = map[string]interface{}{}
	}
	if run.Recipients == nil {
		run.Recipients = []string{}
	}

	row := r.DB.QueryRow(ctx, `
		INSERT INTO scheduled_report_runs (
			id, scheduled_report_id, status, recipients, metadata
		) VALUES ($1, $2, 'running', $3, $4)
		RETURNING `+scheduledReportRunColumns,
		run.ID, run.ScheduledReportID, run.Recipients, run.Metadata)

	return scanScheduledReportRun(row)
}

// Terminal transitions are guarded on status = 'running' so a finalized run
// can never be rewritten.

func (r *scheduledReportRunRepo) MarkSuccess(ctx context.Context, id string, rowsCount int, fileFormat, fileName string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE scheduled_report_runs
		SET
			status = 'success',
			rows_count = $2,
			file_format = $3,
			file_name = $4,
			completed_at = NOW()
		WHERE id = $1 AND status = 'running'`,
		id, rowsCount, fileFormat, fileName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunFinalized
	}
	return nil
}

func (r *scheduledReportRunRepo) MarkFailed(ctx context.Context, id string, errorMessage string, rowsCount *int) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE scheduled_report_runs
		SET
			status = 'failed',
			error_message = $2,
			rows_count = $3,
			completed_at = NOW()
		WHERE id = $1 AND status = 'running'`,
		id, errorMessage, rowsCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunFinalized
	}
	return nil
}

func (r *scheduledReportRunRepo) MarkSkipped(ctx context.Context, id string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE scheduled_report_runs
		SET
			status = 'skipped',
			completed_at = NOW()
		WHERE id = $1 AND status = 'running'`,
		id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunFinalized
	}
	return nil
}

func (r *scheduledReportRunRepo) ListBySchedule(ctx context.Context, scheduledReportID uint, limit int) ([]*models.ScheduledReportRun, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+scheduledReportRunColumns+`
		FROM scheduled_report_runs
		WHERE scheduled_report_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, scheduledReportID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.ScheduledReportRun
	for rows.Next() {
		run, err := scanScheduledReportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
