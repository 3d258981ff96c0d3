package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reportscheduler/src/models"
	"reportscheduler/src/repositories"
	"reportscheduler/src/schemas"
	"reportscheduler/src/services"
	"reportscheduler/src/utils"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 200
)

type ScheduledReportsControllerI interface {
	GetAllScheduledReports(ctx context.Context, organizationID uint) ([]*schemas.ScheduledReportResponse, error)
	GetScheduledReportByID(ctx context.Context, organizationID, id uint) (*schemas.ScheduledReportResponse, error)
	CreateScheduledReport(ctx context.Context, organizationID uint, createdBy string, req *schemas.CreateScheduledReportRequest) (*schemas.ScheduledReportResponse, error)
	UpdateScheduledReport(ctx context.Context, organizationID uint, modifiedBy string, req *schemas.UpdateScheduledReportRequest) (*schemas.ScheduledReportResponse, error)
	ToggleScheduledReport(ctx context.Context, organizationID, id uint, isActive *bool, modifiedBy string) (*schemas.ScheduledReportResponse, error)
	RunScheduledReportNow(ctx context.Context, organizationID, id uint) (*schemas.ScheduledReportRunResponse, error)
	DeleteScheduledReport(ctx context.Context, organizationID, id uint) error
	GetScheduledReportRuns(ctx context.Context, organizationID, id uint, limit int) ([]*schemas.ScheduledReportRunResponse, error)
}

type ScheduledReportsController struct {
	Schedules    repositories.ScheduledReportRepository
	Runs         repositories.ScheduledReportRunRepository
	SavedReports repositories.SavedReportRepository
	Recurrence   services.RecurrenceServiceI
	Executor     services.ExecutorServiceI
}

func NewScheduledReportsController(
	schedules repositories.ScheduledReportRepository,
	runs repositories.ScheduledReportRunRepository,
	savedReports repositories.SavedReportRepository,
	recurrence services.RecurrenceServiceI,
	executor services.ExecutorServiceI,
) *ScheduledReportsController {
	return &ScheduledReportsController{
		Schedules:    schedules,
		Runs:         runs,
		SavedReports: savedReports,
		Recurrence:   recurrence,
		Executor:     executor,
	}
}

func (sc *ScheduledReportsController) GetAllScheduledReports(ctx context.Context, organizationID uint) ([]*schemas.ScheduledReportResponse, error) {
	schedules, err := sc.Schedules.GetAll(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	responses := make([]*schemas.ScheduledReportResponse, 0, len(schedules))
	for _, schedule := range schedules {
		responses = append(responses, schemas.NewScheduledReportResponse(schedule))
	}
	return responses, nil
}

func (sc *ScheduledReportsController) GetScheduledReportByID(ctx context.Context, organizationID, id uint) (*schemas.ScheduledReportResponse, error) {
	schedule, err := sc.Schedules.GetByID(ctx, organizationID, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return schemas.NewScheduledReportResponse(schedule), nil
}

func (sc *ScheduledReportsController) CreateScheduledReport(ctx context.Context, organizationID uint, createdBy string, req *schemas.CreateScheduledReportRequest) (*schemas.ScheduledReportResponse, error) {
	format, err := parseFormat(req.Format)
	if err != nil {
		return nil, err
	}

	rule := models.RecurrenceRule{
		Frequency:  models.Frequency(req.Frequency),
		Timezone:   req.Timezone,
		Hour:       req.Hour,
		Minute:     req.Minute,
		DayOfWeek:  req.DayOfWeek,
		DayOfMonth: req.DayOfMonth,
	}
	if err := sc.Recurrence.ValidateRule(rule); err != nil {
		return nil, err
	}

	// The referenced saved report must be visible to the creating
	// organization before anything is persisted.
	if _, err := sc.SavedReports.GetByID(ctx, organizationID, req.SavedReportID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.UnprocessableEntity(fmt.Sprintf("saved report %d not found", req.SavedReportID))
		}
		return nil, err
	}

	nextRunAt, err := sc.Recurrence.ComputeNextRunAt(rule, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	recipients := req.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	schedule := &models.ScheduledReport{
		OrganizationID: organizationID,
		SavedReportID:  req.SavedReportID,
		Name:           req.Name,
		Recipients:     recipients,
		Format:         format,
		Frequency:      rule.Frequency,
		Timezone:       rule.Timezone,
		Hour:           rule.Hour,
		Minute:         rule.Minute,
		DayOfWeek:      rule.DayOfWeek,
		DayOfMonth:     rule.DayOfMonth,
		IsActive:       true,
		NextRunAt:      nextRunAt,
		CreatedBy:      createdBy,
		ModifiedBy:     createdBy,
	}

	created, err := sc.Schedules.Create(ctx, schedule)
	if err != nil {
		return nil, err
	}
	return schemas.NewScheduledReportResponse(created), nil
}

func (sc *ScheduledReportsController) UpdateScheduledReport(ctx context.Context, organizationID uint, modifiedBy string, req *schemas.UpdateScheduledReportRequest) (*schemas.ScheduledReportResponse, error) {
	schedule, err := sc.Schedules.GetByID(ctx, organizationID, req.ID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	// Cosmetic fields never touch next_run_at.
	if req.Name != nil {
		schedule.Name = *req.Name
	}
	if req.Recipients != nil {
		schedule.Recipients = *req.Recipients
	}
	if req.Format != nil {
		format, err := parseFormat(*req.Format)
		if err != nil {
			return nil, err
		}
		schedule.Format = format
	}

	schedulingChanged := false
	if req.Frequency != nil && models.Frequency(*req.Frequency) != schedule.Frequency {
		schedule.Frequency = models.Frequency(*req.Frequency)
		schedulingChanged = true
	}
	if req.Timezone != nil && *req.Timezone != schedule.Timezone {
		schedule.Timezone = *req.Timezone
		schedulingChanged = true
	}
	if req.Hour != nil && *req.Hour != schedule.Hour {
		schedule.Hour = *req.Hour
		schedulingChanged = true
	}
	if req.Minute != nil && *req.Minute != schedule.Minute {
		schedule.Minute = *req.Minute
		schedulingChanged = true
	}
	if req.DayOfWeek != nil && !equalIntPtr(req.DayOfWeek, schedule.DayOfWeek) {
		schedule.DayOfWeek = req.DayOfWeek
		schedulingChanged = true
	}
	if req.DayOfMonth != nil && !equalIntPtr(req.DayOfMonth, schedule.DayOfMonth) {
		schedule.DayOfMonth = req.DayOfMonth
		schedulingChanged = true
	}

	if req.IsActive != nil && *req.IsActive != schedule.IsActive {
		schedule.IsActive = *req.IsActive
		schedulingChanged = true
	}

	if err := sc.Recurrence.ValidateRule(schedule.Rule()); err != nil {
		return nil, err
	}

	if schedulingChanged {
		nextRunAt, err := sc.Recurrence.ComputeNextRunAt(schedule.Rule(), time.Now().UTC())
		if err != nil {
			return nil, err
		}
		schedule.NextRunAt = nextRunAt
	}

	schedule.ModifiedBy = modifiedBy

	updated, err := sc.Schedules.Update(ctx, schedule)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return schemas.NewScheduledReportResponse(updated), nil
}

func (sc *ScheduledReportsController) ToggleScheduledReport(ctx context.Context, organizationID, id uint, isActive *bool, modifiedBy string) (*schemas.ScheduledReportResponse, error) {
	schedule, err := sc.Schedules.GetByID(ctx, organizationID, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	newActive := !schedule.IsActive
	if isActive != nil {
		newActive = *isActive
	}

	// Reactivation recomputes from now so a long-paused schedule does not
	// fire immediately for a stale past time.
	if newActive && !schedule.IsActive {
		nextRunAt, err := sc.Recurrence.ComputeNextRunAt(schedule.Rule(), time.Now().UTC())
		if err != nil {
			return nil, err
		}
		schedule.NextRunAt = nextRunAt
	}

	schedule.IsActive = newActive
	schedule.ModifiedBy = modifiedBy

	updated, err := sc.Schedules.Update(ctx, schedule)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return schemas.NewScheduledReportResponse(updated), nil
}

// RunScheduledReportNow bypasses the due-check and claim entirely. The run
// record is returned even when execution failed so the caller can inspect
// the recorded outcome.
func (sc *ScheduledReportsController) RunScheduledReportNow(ctx context.Context, organizationID, id uint) (*schemas.ScheduledReportRunResponse, error) {
	schedule, err := sc.Schedules.GetByID(ctx, organizationID, id)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	run, err := sc.Executor.ExecuteReport(ctx, schedule, true)
	if run == nil {
		return nil, err
	}
	return schemas.NewScheduledReportRunResponse(run), err
}

func (sc *ScheduledReportsController) DeleteScheduledReport(ctx context.Context, organizationID, id uint) error {
	if err := sc.Schedules.Delete(ctx, organizationID, id); err != nil {
		return mapRepositoryError(err)
	}
	return nil
}

func (sc *ScheduledReportsController) GetScheduledReportRuns(ctx context.Context, organizationID, id uint, limit int) ([]*schemas.ScheduledReportRunResponse, error) {
	if _, err := sc.Schedules.GetByID(ctx, organizationID, id); err != nil {
		return nil, mapRepositoryError(err)
	}

	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs, err := sc.Runs.ListBySchedule(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]*schemas.ScheduledReportRunResponse, 0, len(runs))
	for _, run := range runs {
		responses = append(responses, schemas.NewScheduledReportRunResponse(run))
	}
	return responses, nil
}

func parseFormat(format string) (models.ReportFormat, error) {
	switch models.ReportFormat(format) {
	case models.FormatCSV, models.FormatXLSX:
		return models.ReportFormat(format), nil
	default:
		return "", utils.UnprocessableEntity(fmt.Sprintf("unknown format %q, expected csv or xlsx", format))
	}
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mapRepositoryError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return utils.NotFound("scheduled report not found")
	}
	if errors.Is(err, repositories.ErrStaleUpdate) {
		return utils.Conflict("scheduled report was modified concurrently, retry the request")
	}
	return err
}
