package models

import (
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

type ReportFormat string

const (
	FormatCSV  ReportFormat = "csv"
	FormatXLSX ReportFormat = "xlsx"
)

// RecurrenceRule is the declarative description of when a schedule fires:
// frequency, IANA timezone and local time of day, plus the day selector for
// weekly/monthly rules.
type RecurrenceRule struct {
	Frequency  Frequency
	Timezone   string
	Hour       int
	Minute     int
	DayOfWeek  *int // 0=Sunday..6=Saturday, weekly only
	DayOfMonth *int // 1..28, monthly only
}

type ScheduledReport struct {
	ID                  uint         `db:"id"`
	OrganizationID      uint         `db:"organization_id"`
	SavedReportID       uint         `db:"saved_report_id"`
	Name                string       `db:"name"`
	Recipients          []string     `db:"recipients"`
	Format              ReportFormat `db:"format"`
	Frequency           Frequency    `db:"frequency"`
	Timezone            string       `db:"timezone"`
	Hour                int          `db:"hour"`
	Minute              int          `db:"minute"`
	DayOfWeek           *int         `db:"day_of_week"`
	DayOfMonth          *int         `db:"day_of_month"`
	IsActive            bool         `db:"is_active"`
	NextRunAt           time.Time    `db:"next_run_at"`
	LastRunAt           *time.Time   `db:"last_run_at"`
	ProcessingStartedAt *time.Time   `db:"processing_started_at"`
	LastError           *string      `db:"last_error"`
	CreatedBy           string       `db:"created_by"`
	ModifiedBy          string       `db:"modified_by"`
	CreatedAt           time.Time    `db:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at"`
}

func (ScheduledReport) TableName() string {
	return "scheduled_reports"
}

// Rule extracts the recurrence rule from the schedule's scheduling columns.
func (s *ScheduledReport) Rule() RecurrenceRule {
	return RecurrenceRule{
		Frequency:  s.Frequency,
		Timezone:   s.Timezone,
		Hour:       s.Hour,
		Minute:     s.Minute,
		DayOfWeek:  s.DayOfWeek,
		DayOfMonth: s.DayOfMonth,
	}
}
