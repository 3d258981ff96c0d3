package schemas

import (
	"time"

	"reportscheduler/src/models"
)

type CreateScheduledReportRequest struct {
	SavedReportID uint     `json:"savedReportId"`
	Name          string   `json:"name"`
	Recipients    []string `json:"recipients"`
	Format        string   `json:"format"`
	Frequency     string   `json:"frequency"`
	Timezone      string   `json:"timezone"`
	Hour          int      `json:"hour"`
	Minute        int      `json:"minute"`
	DayOfWeek     *int     `json:"dayOfWeek,omitempty"`
	DayOfMonth    *int     `json:"dayOfMonth,omitempty"`
}

// UpdateScheduledReportRequest is a partial update: nil fields are left
// untouched. NextRunAt is only recomputed when a scheduling-relevant field
// (frequency, timezone, hour, minute, day selectors, isActive) changes.
type UpdateScheduledReportRequest struct {
	ID         uint      `json:"-"`
	Name       *string   `json:"name,omitempty"`
	Recipients *[]string `json:"recipients,omitempty"`
	Format     *string   `json:"format,omitempty"`
	Frequency  *string   `json:"frequency,omitempty"`
	Timezone   *string   `json:"timezone,omitempty"`
	Hour       *int      `json:"hour,omitempty"`
	Minute     *int      `json:"minute,omitempty"`
	DayOfWeek  *int      `json:"dayOfWeek,omitempty"`
	DayOfMonth *int      `json:"dayOfMonth,omitempty"`
	IsActive   *bool     `json:"isActive,omitempty"`
}

// ToggleScheduledReportRequest flips the active flag when IsActive is nil,
// otherwise sets it.
type ToggleScheduledReportRequest struct {
	IsActive *bool `json:"isActive,omitempty"`
}

type PollRequest struct {
	BatchSize int `json:"batchSize,omitempty"`
}

type PollResult struct {
	Claimed   int `json:"claimed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type ScheduledReportResponse struct {
	ID             uint       `json:"id"`
	OrganizationID uint       `json:"organizationId"`
	SavedReportID  uint       `json:"savedReportId"`
	Name           string     `json:"name"`
	Recipients     []string   `json:"recipients"`
	Format         string     `json:"format"`
	Frequency      string     `json:"frequency"`
	Timezone       string     `json:"timezone"`
	Hour           int        `json:"hour"`
	Minute         int        `json:"minute"`
	DayOfWeek      *int       `json:"dayOfWeek,omitempty"`
	DayOfMonth     *int       `json:"dayOfMonth,omitempty"`
	IsActive       bool       `json:"isActive"`
	NextRunAt      time.Time  `json:"nextRunAt"`
	LastRunAt      *time.Time `json:"lastRunAt,omitempty"`
	LastError      *string    `json:"lastError,omitempty"`
	CreatedBy      string     `json:"createdBy"`
	ModifiedBy     string     `json:"modifiedBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type ScheduledReportRunResponse struct {
	ID                string                 `json:"id"`
	ScheduledReportID uint                   `json:"scheduledReportId"`
	Status            string                 `json:"status"`
	Recipients        []string               `json:"recipients"`
	RowsCount         *int                   `json:"rowsCount,omitempty"`
	FileFormat        *string                `json:"fileFormat,omitempty"`
	FileName          *string                `json:"fileName,omitempty"`
	ErrorMessage      *string                `json:"errorMessage,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	StartedAt         time.Time              `json:"startedAt"`
	CompletedAt       *time.Time             `json:"completedAt,omitempty"`
}

func NewScheduledReportResponse(s *models.ScheduledReport) *ScheduledReportResponse {
	return &ScheduledReportResponse{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		SavedReportID:  s.SavedReportID,
		Name:           s.Name,
		Recipients:     s.Recipients,
		Format:         string(s.Format),
		Frequency:      string(s.Frequency),
		Timezone:       s.Timezone,
		Hour:           s.Hour,
		Minute:         s.Minute,
		DayOfWeek:      s.DayOfWeek,
		DayOfMonth:     s.DayOfMonth,
		IsActive:       s.IsActive,
		NextRunAt:      s.NextRunAt,
		LastRunAt:      s.LastRunAt,
		LastError:      s.LastError,
		CreatedBy:      s.CreatedBy,
		ModifiedBy:     s.ModifiedBy,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func NewScheduledReportRunResponse(r *models.ScheduledReportRun) *ScheduledReportRunResponse {
	return &ScheduledReportRunResponse{
		ID:                r.ID,
		ScheduledReportID: r.ScheduledReportID,
		Status:            string(r.Status),
		Recipients:        r.Recipients,
		RowsCount:         r.RowsCount,
		FileFormat:        r.FileFormat,
		FileName:          r.FileName,
		ErrorMessage:      r.ErrorMessage,
		Metadata:          r.Metadata,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
	}
}
