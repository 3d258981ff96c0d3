package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reportscheduler/src/models"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to a
	// different organization.
	ErrNotFound = errors.New("record not found")
	// ErrRunFinalized is returned when a terminal transition is attempted on a
	// run that already left the running state.
	ErrRunFinalized = errors.New("run already finalized")
	// ErrStaleUpdate is returned when an update loses against a concurrent
	// writer, such as an executor advancing next_run_at mid-request.
	ErrStaleUpdate = errors.New("record modified concurrently")
)

const scheduledReportColumns = `
	id,
	organization_id,
	saved_report_id,
	name,
	recipients,
	format,
	frequency,
	timezone,
	hour,
	minute,
	day_of_week,
	day_of_month,
	is_active,
	next_run_at,
	last_run_at,
	processing_started_at,
	last_error,
	created_by,
	modified_by,
	created_at,
	updated_at`

type ScheduledReportRepository interface {
	GetAll(ctx context.Context, organizationID uint) ([]*models.ScheduledReport, error)
	GetByID(ctx context.Context, organizationID, id uint) (*models.ScheduledReport, error)
	GetByIDUnscoped(ctx context.Context, id uint) (*models.ScheduledReport, error)
	Create(ctx context.Context, report *models.ScheduledReport) (*models.ScheduledReport, error)
	Update(ctx context.Context, report *models.ScheduledReport) (*models.ScheduledReport, error)
	Delete(ctx context.Context, organizationID, id uint) error
	ClaimDue(ctx context.Context, batchSize int, staleTimeout time.Duration) ([]*models.ScheduledReport, error)
	FinishRun(ctx context.Context, id uint, nextRunAt, lastRunAt time.Time, lastError *string) error
}

type scheduledReportRepo struct {
	DB *pgxpool.Pool
}

func NewScheduledReportRepository(db *pgxpool.Pool) ScheduledReportRepository {
	return &scheduledReportRepo{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduledReport(row rowScanner) (*models.ScheduledReport, error) {
	var report models.ScheduledReport
	var format, frequency string
	err := row.Scan(
		&report.ID,
		&report.OrganizationID,
		&report.SavedReportID,
		&report.Name,
		&report.Recipients,
		&format,
		&frequency,
		&report.Timezone,
		&report.Hour,
		&report.Minute,
		&report.DayOfWeek,
		&report.DayOfMonth,
		&report.IsActive,
		&report.NextRunAt,
		&report.LastRunAt,
		&report.ProcessingStartedAt,
		&report.LastError,
		&report.CreatedBy,
		&report.ModifiedBy,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	report.Format = models.ReportFormat(format)
	report.Frequency = models.Frequency(frequency)
	return &report, nil
}

func (r *scheduledReportRepo) GetAll(ctx context.Context, organizationID uint) ([]*models.ScheduledReport, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+scheduledReportColumns+`
		FROM scheduled_reports
		WHERE organization_id = $1
		ORDER BY id ASC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.ScheduledReport
	for rows.Next() {
		report, err := scanScheduledReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *scheduledReportRepo) GetByID(ctx context.Context, organizationID, id uint) (*models.ScheduledReport, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+scheduledReportColumns+`
		FROM scheduled_reports
		WHERE organization_id = $1 AND id = $2`, organizationID, id)

	report, err := scanScheduledReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

// GetByIDUnscoped loads a schedule without organization filtering. It is used
// by the worker's manual-trigger endpoint, which runs inside the trust
// boundary.
func (r *scheduledReportRepo) GetByIDUnscoped(ctx context.Context, id uint) (*models.ScheduledReport, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+scheduledReportColumns+`
		FROM scheduled_reports
		WHERE id = $1`, id)

	report, err := scanScheduledReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

func (r *scheduledReportRepo) Create(ctx context.Context, report *models.ScheduledReport) (*models.ScheduledReport, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO scheduled_reports (
			organization_id, saved_report_id, name, recipients, format,
			frequency, timezone, hour, minute, day_of_week, day_of_month,
			is_active, next_run_at, created_by, modified_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+scheduledReportColumns,
		report.OrganizationID,
		report.SavedReportID,
		report.Name,
		report.Recipients,
		string(report.Format),
		string(report.Frequency),
		report.Timezone,
		report.Hour,
		report.Minute,
		report.DayOfWeek,
		report.DayOfMonth,
		report.IsActive,
		report.NextRunAt,
		report.CreatedBy,
		report.ModifiedBy,
	)
	return scanScheduledReport(row)
}

// Update writes the caller's view of the row back, guarded on updated_at so a
// concurrent writer (typically an executor finishing a run) is never
// overwritten with stale values.
func (r *scheduledReportRepo) Update(ctx context.Context, report *models.ScheduledReport) (*models.ScheduledReport, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE scheduled_reports
		SET
			name = $3,
			recipients = $4,
			format = $5,
			frequency = $6,
			timezone = $7,
			hour = $8,
			minute = $9,
			day_of_week = $10,
			day_of_month = $11,
			is_active = $12,
			next_run_at = $13,
			modified_by = $14,
			updated_at = NOW()
		WHERE organization_id = $1 AND id = $2 AND updated_at = $15
		RETURNING `+scheduledReportColumns,
		report.OrganizationID,
		report.ID,
		report.Name,
		report.Recipients,
		string(report.Format),
		string(report.Frequency),
		report.Timezone,
		report.Hour,
		report.Minute,
		report.DayOfWeek,
		report.DayOfMonth,
		report.IsActive,
		report.NextRunAt,
		report.ModifiedBy,
		report.UpdatedAt,
	)

	updated, err := scanScheduledReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, report.OrganizationID, report.ID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrStaleUpdate
		}
		return nil, err
	}
	return updated, nil
}

func (r *scheduledReportRepo) Delete(ctx context.Context, organizationID, id uint) error {
	tag, err := r.DB.Exec(ctx, `
		DELETE FROM scheduled_reports
		WHERE organization_id = $1 AND id = $2`, organizationID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimDue atomically selects up to batchSize due schedules and stamps them
// as claimed by this worker, skipping rows locked by a concurrent claim.
// A row is due when it is active, its next_run_at has passed, and it is not
// held by a live claim (no processing_started_at, or one older than
// staleTimeout).
func (r *scheduledReportRepo) ClaimDue(ctx context.Context, batchSize int, staleTimeout time.Duration) ([]*models.ScheduledReport, error) {
	rows, err := r.DB.Query(ctx, `
		WITH claimed AS (
			UPDATE scheduled_reports
			SET processing_started_at = NOW(), updated_at = NOW()
			WHERE id IN (
				SELECT id FROM scheduled_reports
				WHERE is_active = TRUE
				  AND next_run_at <= NOW()
				  AND (processing_started_at IS NULL
				       OR processing_started_at < NOW() - make_interval(secs => $1))
				ORDER BY next_run_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT $2
			)
			RETURNING `+scheduledReportColumns+`
		)
		SELECT * FROM claimed ORDER BY next_run_at ASC`,
		staleTimeout.Seconds(), batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.ScheduledReport
	for rows.Next() {
		report, err := scanScheduledReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

// FinishRun writes the post-execution bookkeeping: the advanced next_run_at,
// the run timestamp, the mirrored error (nil clears it), and releases the
// claim.
func (r *scheduledReportRepo) FinishRun(ctx context.Context, id uint, nextRunAt, lastRunAt time.Time, lastError *string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE scheduled_reports
		SET
			next_run_at = $2,
			last_run_at = $3,
			last_error = $4,
			processing_started_at = NULL,
			updated_at = NOW()
		WHERE id = $1`,
		id, nextRunAt, lastRunAt, lastError)
	return err
}
