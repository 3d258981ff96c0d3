package controllers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportscheduler/src/models"
	"reportscheduler/src/repositories"
	"reportscheduler/src/worker/controllers"
)

type stubScheduleRepo struct {
	claimed      []*models.ScheduledReport
	claimErr     error
	batchSize    int
	staleTimeout time.Duration
	byID         map[uint]*models.ScheduledReport
}

func (s *stubScheduleRepo) GetAll(ctx context.Context, organizationID uint) ([]*models.ScheduledReport, error) {
	return nil, nil
}

func (s *stubScheduleRepo) GetByID(ctx context.Context, organizationID, id uint) (*models.ScheduledReport, error) {
	return nil, repositories.ErrNotFound
}

func (s *stubScheduleRepo) GetByIDUnscoped(ctx context.Context, id uint) (*models.ScheduledReport, error) {
	schedule, ok := s.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return schedule, nil
}

func (s *stubScheduleRepo) Create(ctx context.Context, report *models.ScheduledReport) (*models.ScheduledReport, error) {
	return report, nil
}

func (s *stubScheduleRepo) Update(ctx context.Context, report *models.ScheduledReport) (*models.ScheduledReport, error) {
	return report, nil
}

func (s *stubScheduleRepo) Delete(ctx context.Context, organizationID, id uint) error {
	return nil
}

func (s *stubScheduleRepo) ClaimDue(ctx context.Context, batchSize int, staleTimeout time.Duration) ([]*models.ScheduledReport, error) {
	s.batchSize = batchSize
	s.staleTimeout = staleTimeout
	return s.claimed, s.claimErr
}

func (s *stubScheduleRepo) FinishRun(ctx context.Context, id uint, nextRunAt, lastRunAt time.Time, lastError *string) error {
	return nil
}

type recordingExecutor struct {
	executed []uint
	manual   []bool
	failFor  map[uint]error
}

func (e *recordingExecutor) ExecuteReport(ctx context.Context, schedule *models.ScheduledReport, isManual bool) (*models.ScheduledReportRun, error) {
	e.executed = append(e.executed, schedule.ID)
	e.manual = append(e.manual, isManual)
	if err, ok := e.failFor[schedule.ID]; ok {
		return &models.ScheduledReportRun{ID: "run", ScheduledReportID: schedule.ID, Status: models.RunStatusFailed}, err
	}
	return &models.ScheduledReportRun{ID: "run", ScheduledReportID: schedule.ID, Status: models.RunStatusSuccess}, nil
}

func TestProcessDueReports(t *testing.T) {
	schedules := &stubScheduleRepo{claimed: []*models.ScheduledReport{
		{ID: 1}, {ID: 2}, {ID: 3},
	}}
	executor := &recordingExecutor{}

	c := controllers.NewSchedulerController(schedules, executor, 15*time.Minute)

	result, err := c.ProcessDueReports(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Claimed)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []uint{1, 2, 3}, executor.executed)
	assert.Equal(t, 10, schedules.batchSize)
	assert.Equal(t, 15*time.Minute, schedules.staleTimeout)
	assert.Equal(t, []bool{false, false, false}, executor.manual)
}

func TestProcessDueReports_FailureDoesNotAbortBatch(t *testing.T) {
	schedules := &stubScheduleRepo{claimed: []*models.ScheduledReport{
		{ID: 1}, {ID: 2}, {ID: 3},
	}}
	executor := &recordingExecutor{failFor: map[uint]error{
		2: errors.New("report generation failed"),
	}}

	c := controllers.NewSchedulerController(schedules, executor, 15*time.Minute)

	result, err := c.ProcessDueReports(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Claimed)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []uint{1, 2, 3}, executor.executed)
}

func TestProcessDueReports_ClaimError(t *testing.T) {
	schedules := &stubScheduleRepo{claimErr: errors.New("connection reset")}
	executor := &recordingExecutor{}

	c := controllers.NewSchedulerController(schedules, executor, 15*time.Minute)

	_, err := c.ProcessDueReports(context.Background(), 10)
	require.Error(t, err)
	assert.Empty(t, executor.executed)
}

func TestRunScheduleByID(t *testing.T) {
	schedules := &stubScheduleRepo{byID: map[uint]*models.ScheduledReport{
		5: {ID: 5, Name: "Weekly Sales"},
	}}
	executor := &recordingExecutor{}

	c := controllers.NewSchedulerController(schedules, executor, 15*time.Minute)

	run, err := c.RunScheduleByID(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, uint(5), run.ScheduledReportID)
	assert.Equal(t, []bool{true}, executor.manual)
}

func TestRunScheduleByID_NotFound(t *testing.T) {
	schedules := &stubScheduleRepo{byID: map[uint]*models.ScheduledReport{}}
	executor := &recordingExecutor{}

	c := controllers.NewSchedulerController(schedules, executor, 15*time.Minute)

	_, err := c.RunScheduleByID(context.Background(), 99)
	require.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, executor.executed)
}
