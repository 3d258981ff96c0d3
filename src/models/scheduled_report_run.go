package models

import (
	"time"
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusSkipped RunStatus = "skipped"
)

// ScheduledReportRun is one execution attempt of a schedule. It is created in
// the running state and transitions exactly once to success, failed or
// skipped; terminal rows are never mutated again.
type ScheduledReportRun struct {
	ID                string                 `db:"id"`
	ScheduledReportID uint                   `db:"scheduled_report_id"`
	Status            RunStatus              `db:"status"`
	Recipients        []string               `db:"recipients"`
	RowsCount         *int                   `db:"rows_count"`
	FileFormat        *string                `db:"file_format"`
	FileName          *string                `db:"file_name"`
	ErrorMessage      *string                `db:"error_message"`
	Metadata          map[string]interface{} `db:"metadata"`
	StartedAt         time.Time              `db:"started_at"`
	CompletedAt       *time.Time             `db:"completed_at"`
}

func (ScheduledReportRun) TableName() string {
	return "scheduled_report_runs"
}
