package models

import "time"

// SavedReport is the externally-owned report definition a schedule points at.
// The engine only needs enough of it to generate tabular data: the name used
// for file naming and the read-only query that produces the rows.
type SavedReport struct {
	ID             uint      `db:"id"`
	OrganizationID uint      `db:"organization_id"`
	Name           string    `db:"name"`
	Description    string    `db:"description"`
	Query          string    `db:"query"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (SavedReport) TableName() string {
	return "saved_reports"
}
