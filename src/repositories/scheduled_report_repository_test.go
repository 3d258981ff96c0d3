package repositories_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportscheduler/src/models"
	"reportscheduler/src/repositories"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL, which must
// already have the migrations applied. Tests are skipped when it is unset.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createTestSavedReport(t *testing.T, pool *pgxpool.Pool, organizationID uint) uint {
	t.Helper()

	var id uint
	err := pool.QueryRow(context.Background(), `
		INSERT INTO saved_reports (organization_id, name, description, query)
		VALUES ($1, $2, '', 'SELECT 1 AS one')
		RETURNING id`,
		organizationID, fmt.Sprintf("test report %d", time.Now().UnixNano())).Scan(&id)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM saved_reports WHERE id = $1`, id)
	})
	return id
}

func newDueSchedule(organizationID, savedReportID uint) *models.ScheduledReport {
	return &models.ScheduledReport{
		OrganizationID: organizationID,
		SavedReportID:  savedReportID,
		Name:           "integration schedule",
		Recipients:     []string{"ops@example.com"},
		Format:         models.FormatCSV,
		Frequency:      models.FrequencyDaily,
		Timezone:       "UTC",
		Hour:           9,
		Minute:         0,
		IsActive:       true,
		NextRunAt:      time.Now().UTC().Add(-time.Minute),
	}
}

func createTestSchedule(t *testing.T, pool *pgxpool.Pool, repo repositories.ScheduledReportRepository, schedule *models.ScheduledReport) *models.ScheduledReport {
	t.Helper()

	created, err := repo.Create(context.Background(), schedule)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM scheduled_reports WHERE id = $1`, created.ID)
	})
	return created
}

func claimedIDs(claimed []*models.ScheduledReport) map[uint]bool {
	ids := make(map[uint]bool, len(claimed))
	for _, s := range claimed {
		ids[s.ID] = true
	}
	return ids
}

func TestScheduledReportRepository_CRUD(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewScheduledReportRepository(pool)
	ctx := context.Background()

	organizationID := uint(time.Now().UnixNano() % 1_000_000_000)
	savedReportID := createTestSavedReport(t, pool, organizationID)

	created := createTestSchedule(t, pool, repo, newDueSchedule(organizationID, savedReportID))
	require.NotZero(t, created.ID)
	assert.Equal(t, []string{"ops@example.com"}, created.Recipients)

	fetched, err := repo.GetByID(ctx, organizationID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, fetched.Name)

	// Another organization cannot see the row.
	_, err = repo.GetByID(ctx, organizationID+1, created.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	fetched.Name = "renamed"
	updated, err := repo.Update(ctx, fetched)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	require.NoError(t, repo.Delete(ctx, organizationID, created.ID))
	assert.ErrorIs(t, repo.Delete(ctx, organizationID, created.ID), repositories.ErrNotFound)
}

func TestClaimDue(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewScheduledReportRepository(pool)
	ctx := context.Background()

	organizationID := uint(time.Now().UnixNano() % 1_000_000_000)
	savedReportID := createTestSavedReport(t, pool, organizationID)

	due := createTestSchedule(t, pool, repo, newDueSchedule(organizationID, savedReportID))

	future := newDueSchedule(organizationID, savedReportID)
	future.NextRunAt = time.Now().UTC().Add(time.Hour)
	notDue := createTestSchedule(t, pool, repo, future)

	paused := newDueSchedule(organizationID, savedReportID)
	paused.IsActive = false
	inactive := createTestSchedule(t, pool, repo, paused)

	claimed, err := repo.ClaimDue(ctx, 100, 15*time.Minute)
	require.NoError(t, err)

	ids := claimedIDs(claimed)
	assert.True(t, ids[due.ID])
	assert.False(t, ids[notDue.ID])
	assert.False(t, ids[inactive.ID])

	// A second sweep must not hand out the same row while its claim is live.
	reclaimed, err := repo.ClaimDue(ctx, 100, 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, claimedIDs(reclaimed)[due.ID])
}

func TestClaimDue_ConcurrentSweepsClaimExactlyOnce(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewScheduledReportRepository(pool)
	ctx := context.Background()

	organizationID := uint(time.Now().UnixNano() % 1_000_000_000)
	savedReportID := createTestSavedReport(t, pool, organizationID)

	schedule := createTestSchedule(t, pool, repo, newDueSchedule(organizationID, savedReportID))

	// Several workers sweep at the same instant; the row-level lock in the
	// claim query must hand the schedule to exactly one of them.
	const sweeps = 4
	results := make(chan []*models.ScheduledReport, sweeps)
	errs := make(chan error, sweeps)

	var wg sync.WaitGroup
	for i := 0; i < sweeps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimDue(ctx, 100, 15*time.Minute)
			if err != nil {
				errs <- err
				return
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	wins := 0
	for claimed := range results {
		if claimedIDs(claimed)[schedule.ID] {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestUpdate_RejectsStaleRow(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewScheduledReportRepository(pool)
	ctx := context.Background()

	organizationID := uint(time.Now().UnixNano() % 1_000_000_000)
	savedReportID := createTestSavedReport(t, pool, organizationID)

	schedule := createTestSchedule(t, pool, repo, newDueSchedule(organizationID, savedReportID))

	stale, err := repo.GetByID(ctx, organizationID, schedule.ID)
	require.NoError(t, err)

	// Another writer touches the row after our read.
	_, err = pool.Exec(ctx, `
		UPDATE scheduled_reports
		SET updated_at = updated_at + INTERVAL '1 second'
		WHERE id = $1`, schedule.ID)
	require.NoError(t, err)

	stale.Name = "stale write"
	_, err = repo.Update(ctx, stale)
	assert.ErrorIs(t, err, repositories.ErrStaleUpdate)

	// A fresh read carries the current updated_at and goes through.
	fresh, err := repo.GetByID(ctx, organizationID, schedule.ID)
	require.NoError(t, err)
	fresh.Name = "fresh write"
	updated, err := repo.Update(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, "fresh write", updated.Name)
}

func TestClaimDue_ReclaimsStaleClaims(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewScheduledReportRepository(pool)
	ctx := context.Background()

	organizationID := uint(time.Now().UnixNano() % 1_000_000_000)
	savedReportID := createTestSavedReport(t, pool, organizationID)

	schedule := createTestSchedule(t, pool, repo, newDueSchedule(organizationID, savedReportID))

	// Simulate a claim left behind by a worker that died 20 minutes ago.
	_, err := pool.Exec(ctx, `
		UPDATE scheduled_reports
		SET processing_started_at = NOW() - INTERVAL '20 minutes'
		WHERE id = $1`, schedule.ID)
	require.NoError(t, err)

	claimed, err := repo.ClaimDue(ctx, 100, 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, claimedIDs(claimed)[schedule.ID])
}

func TestFinishRun(t *testing.T) {
	pool := setupTestDB(t)
	repo := repositories.NewScheduledReportRepository(pool)
	ctx := context.Background()

	organizationID := uint(time.Now().UnixNano() % 1_000_000_000)
	savedReportID := createTestSavedReport(t, pool, organizationID)

	schedule := createTestSchedule(t, pool, repo, newDueSchedule(organizationID, savedReportID))

	claimed, err := repo.ClaimDue(ctx, 100, 15*time.Minute)
	require.NoError(t, err)
	require.True(t, claimedIDs(claimed)[schedule.ID])

	next := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	ranAt := time.Now().UTC().Truncate(time.Microsecond)
	message := "delivery failed"
	require.NoError(t, repo.FinishRun(ctx, schedule.ID, next, ranAt, &message))

	fetched, err := repo.GetByID(ctx, organizationID, schedule.ID)
	require.NoError(t, err)

	assert.Nil(t, fetched.ProcessingStartedAt)
	assert.True(t, fetched.NextRunAt.Equal(next))
	require.NotNil(t, fetched.LastRunAt)
	assert.True(t, fetched.LastRunAt.Equal(ranAt))
	require.NotNil(t, fetched.LastError)
	assert.Equal(t, "delivery failed", *fetched.LastError)

	// A clean run clears the mirrored error.
	require.NoError(t, repo.FinishRun(ctx, schedule.ID, next, ranAt, nil))
	fetched, err = repo.GetByID(ctx, organizationID, schedule.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.LastError)
}
