package controllers

import (
	"context"
	"time"

	"reportscheduler/src/repositories"
	"reportscheduler/src/schemas"
	"reportscheduler/src/services"
	"reportscheduler/src/utils"
)

type SchedulerControllerI interface {
	ProcessDueReports(ctx context.Context, batchSize int) (*schemas.PollResult, error)
	RunScheduleByID(ctx context.Context, id uint) (*schemas.ScheduledReportRunResponse, error)
}

// SchedulerController drives the claim-then-execute sweep. Any number of
// worker instances may poll concurrently; the claim query is the only
// coordination between them.
type SchedulerController struct {
	Schedules    repositories.ScheduledReportRepository
	Executor     services.ExecutorServiceI
	StaleTimeout time.Duration
}

func NewSchedulerController(schedules repositories.ScheduledReportRepository, executor services.ExecutorServiceI, staleTimeout time.Duration) *SchedulerController {
	return &SchedulerController{
		Schedules:    schedules,
		Executor:     executor,
		StaleTimeout: staleTimeout,
	}
}

// ProcessDueReports claims up to batchSize due schedules and executes them
// sequentially. A failing run is logged and counted but never aborts the
// rest of the batch.
func (c *SchedulerController) ProcessDueReports(ctx context.Context, batchSize int) (*schemas.PollResult, error) {
	logger := utils.LoggerFromContext(ctx)

	claimed, err := c.Schedules.ClaimDue(ctx, batchSize, c.StaleTimeout)
	if err != nil {
		return nil, err
	}

	result := &schemas.PollResult{Claimed: len(claimed)}
	for _, schedule := range claimed {
		if _, err := c.Executor.ExecuteReport(ctx, schedule, false); err != nil {
			logger.WithError(err).WithField("scheduled_report_id", schedule.ID).Error("scheduled report run failed")
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	return result, nil
}

// RunScheduleByID executes one schedule immediately, regardless of its due
// time. The worker API sits inside the trust boundary, so no organization
// scoping applies here.
func (c *SchedulerController) RunScheduleByID(ctx context.Context, id uint) (*schemas.ScheduledReportRunResponse, error) {
	schedule, err := c.Schedules.GetByIDUnscoped(ctx, id)
	if err != nil {
		return nil, err
	}

	run, err := c.Executor.ExecuteReport(ctx, schedule, true)
	if run == nil {
		return nil, err
	}
	return schemas.NewScheduledReportRunResponse(run), err
}
