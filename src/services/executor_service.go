package services

import (
	"context"
	"fmt"
	"time"

	"reportscheduler/src/clients/mail"
	"reportscheduler/src/models"
	"reportscheduler/src/repositories"
	"reportscheduler/src/schemas"
	"reportscheduler/src/utils"
)

type ExecutorServiceI interface {
	ExecuteReport(ctx context.Context, schedule *models.ScheduledReport, isManual bool) (*models.ScheduledReportRun, error)
}

// ExecutorService runs one claimed schedule to completion: generate, export,
// deliver, record, reschedule. Failures are isolated to the single run; the
// schedule always advances to its next occurrence, so one bad run can never
// stall the schedule.
type ExecutorService struct {
	Schedules    repositories.ScheduledReportRepository
	Runs         repositories.ScheduledReportRunRepository
	SavedReports repositories.SavedReportRepository
	Reports      ReportServiceI
	Mail         mail.MailClientI
	Recurrence   RecurrenceServiceI
}

func NewExecutorService(
	schedules repositories.ScheduledReportRepository,
	runs repositories.ScheduledReportRunRepository,
	savedReports repositories.SavedReportRepository,
	reports ReportServiceI,
	mailClient mail.MailClientI,
	recurrence RecurrenceServiceI,
) *ExecutorService {
	return &ExecutorService{
		Schedules:    schedules,
		Runs:         runs,
		SavedReports: savedReports,
		Reports:      reports,
		Mail:         mailClient,
		Recurrence:   recurrence,
	}
}

func (es *ExecutorService) ExecuteReport(ctx context.Context, schedule *models.ScheduledReport, isManual bool) (*models.ScheduledReportRun, error) {
	logger := utils.LoggerFromContext(ctx)

	recipients := schedule.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	run, err := es.Runs.CreateRunning(ctx, &models.ScheduledReportRun{
		ScheduledReportID: schedule.ID,
		Recipients:        recipients,
		Metadata:          map[string]interface{}{"manual": isManual},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	var result *schemas.ReportResult
	var file *schemas.ReportFile

	savedReport, err := es.SavedReports.GetByID(ctx, schedule.OrganizationID, schedule.SavedReportID)
	if err == nil {
		result, err = es.Reports.Generate(ctx, savedReport)
	}
	if err == nil {
		file, err = es.Reports.Export(result, schedule.Format)
	}
	if err != nil {
		return es.finishFailed(ctx, schedule, run, err, nil)
	}

	if len(run.Recipients) == 0 {
		// Nothing to deliver is a valid outcome, not a failure.
		if err := es.Runs.MarkSkipped(ctx, run.ID); err != nil {
			logger.WithError(err).Error("failed to finalize skipped run")
		}
		run.Status = models.RunStatusSkipped
		es.reschedule(ctx, schedule, nil)
		return run, nil
	}

	mailErr := es.Mail.Send(&schemas.MailMessage{
		To:      run.Recipients,
		Subject: fmt.Sprintf("Scheduled report: %s", schedule.Name),
		Text:    fmt.Sprintf("Attached is the latest %q report (%d rows).", result.Name, result.TotalCount()),
		Attachments: []schemas.MailAttachment{
			{Filename: file.FileName, Content: file.Content},
		},
	})
	if mailErr != nil {
		// Generation worked, delivery did not: keep the rows count on the run
		// so the two failure modes stay distinguishable.
		rowsCount := result.TotalCount()
		return es.finishFailed(ctx, schedule, run, fmt.Errorf("failed to deliver report: %w", mailErr), &rowsCount)
	}

	if err := es.Runs.MarkSuccess(ctx, run.ID, result.TotalCount(), string(schedule.Format), file.FileName); err != nil {
		logger.WithError(err).Error("failed to finalize successful run")
	}
	rowsCount := result.TotalCount()
	fileFormat := string(schedule.Format)
	fileName := file.FileName
	run.Status = models.RunStatusSuccess
	run.RowsCount = &rowsCount
	run.FileFormat = &fileFormat
	run.FileName = &fileName

	es.reschedule(ctx, schedule, nil)
	return run, nil
}

func (es *ExecutorService) finishFailed(ctx context.Context, schedule *models.ScheduledReport, run *models.ScheduledReportRun, cause error, rowsCount *int) (*models.ScheduledReportRun, error) {
	logger := utils.LoggerFromContext(ctx)

	message := cause.Error()
	if err := es.Runs.MarkFailed(ctx, run.ID, message, rowsCount); err != nil {
		logger.WithError(err).Error("failed to finalize failed run")
	}
	run.Status = models.RunStatusFailed
	run.ErrorMessage = &message
	run.RowsCount = rowsCount

	es.reschedule(ctx, schedule, &message)
	return run, cause
}

// reschedule advances next_run_at from now, releases the claim and mirrors
// the error onto the schedule. The run's terminal state is already written by
// the time this is called.
func (es *ExecutorService) reschedule(ctx context.Context, schedule *models.ScheduledReport, lastError *string) {
	logger := utils.LoggerFromContext(ctx)

	now := time.Now().UTC()
	next, err := es.Recurrence.ComputeNextRunAt(schedule.Rule(), now)
	if err != nil {
		// Rules are validated before persistence, so this should not happen;
		// keep the schedule moving rather than wedging the claim.
		logger.WithError(err).Error("failed to compute next run time")
		next = now.Add(24 * time.Hour)
	}

	if err := es.Schedules.FinishRun(ctx, schedule.ID, next, now, lastError); err != nil {
		logger.WithError(err).Error("failed to update schedule after run")
	}

	schedule.NextRunAt = next
	schedule.LastRunAt = &now
	schedule.ProcessingStartedAt = nil
	schedule.LastError = lastError
}
