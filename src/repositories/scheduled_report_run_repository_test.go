package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportscheduler/src/models"
	"reportscheduler/src/repositories"
)

func createTestRun(t *testing.T, repo repositories.ScheduledReportRunRepository, scheduledReportID uint) *models.ScheduledReportRun {
	t.Helper()

	run, err := repo.CreateRunning(context.Background(), &models.ScheduledReportRun{
		ScheduledReportID: scheduledReportID,
		Recipients:        []string{"ops@example.com"},
		Metadata:          map[string]interface{}{"manual": false},
	})
	require.NoError(t, err)
	return run
}

func TestScheduledReportRunRepository_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewScheduledReportRunRepository(pool)
	ctx := context.Background()

	scheduledReportID := uint(time.Now().UnixNano() % 1_000_000_000)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM scheduled_report_runs WHERE scheduled_report_id = $1`, scheduledReportID)
	})

	run := createTestRun(t, repo, scheduledReportID)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Equal(t, []string{"ops@example.com"}, run.Recipients)
	assert.NotEmpty(t, run.ID)

	require.NoError(t, repo.MarkSuccess(ctx, run.ID, 42, "csv", "report.csv"))

	runs, err := repo.ListBySchedule(ctx, scheduledReportID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	finalized := runs[0]
	assert.Equal(t, models.RunStatusSuccess, finalized.Status)
	require.NotNil(t, finalized.RowsCount)
	assert.Equal(t, 42, *finalized.RowsCount)
	require.NotNil(t, finalized.CompletedAt)
}

func TestScheduledReportRunRepository_FinalizedRunsAreImmutable(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewScheduledReportRunRepository(pool)
	ctx := context.Background()

	scheduledReportID := uint(time.Now().UnixNano() % 1_000_000_000)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM scheduled_report_runs WHERE scheduled_report_id = $1`, scheduledReportID)
	})

	run := createTestRun(t, repo, scheduledReportID)
	require.NoError(t, repo.MarkSuccess(ctx, run.ID, 1, "csv", "report.csv"))

	assert.ErrorIs(t, repo.MarkFailed(ctx, run.ID, "late failure", nil), repositories.ErrRunFinalized)
	assert.ErrorIs(t, repo.MarkSkipped(ctx, run.ID), repositories.ErrRunFinalized)

	runs, err := repo.ListBySchedule(ctx, scheduledReportID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusSuccess, runs[0].Status)
}

func TestScheduledReportRunRepository_ListOrdersNewestFirst(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewScheduledReportRunRepository(pool)
	ctx := context.Background()

	scheduledReportID := uint(time.Now().UnixNano() % 1_000_000_000)
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM scheduled_report_runs WHERE scheduled_report_id = $1`, scheduledReportID)
	})

	first := createTestRun(t, repo, scheduledReportID)
	time.Sleep(10 * time.Millisecond)
	second := createTestRun(t, repo, scheduledReportID)

	runs, err := repo.ListBySchedule(ctx, scheduledReportID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	limited, err := repo.ListBySchedule(ctx, scheduledReportID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}
