package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reportscheduler/src/models"
	"reportscheduler/src/utils"
)

const savedReportCacheTTL = 5 * time.Minute

type SavedReportRepository interface {
	GetByID(ctx context.Context, organizationID, id uint) (*models.SavedReport, error)
}

type savedReportRepo struct {
	DB    *pgxpool.Pool
	cache *utils.Cache[uint, *models.SavedReport]
}

func NewSavedReportRepository(db *pgxpool.Pool) SavedReportRepository {
	return &savedReportRepo{
		DB:    db,
		cache: utils.NewCache[uint, *models.SavedReport](savedReportCacheTTL),
	}
}

func (r *savedReportRepo) GetByID(ctx context.Context, organizationID, id uint) (*models.SavedReport, error) {
	if cached, ok := r.cache.Get(id); ok {
		if cached.OrganizationID != organizationID {
			return nil, ErrNotFound
		}
		return cached, nil
	}

	var report models.SavedReport
	err := r.DB.QueryRow(ctx, `
		SELECT id, organization_id, name, description, query, created_at, updated_at
		FROM saved_reports
		WHERE id = $1`, id).Scan(
		&report.ID,
		&report.OrganizationID,
		&report.Name,
		&report.Description,
		&report.Query,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	r.cache.Set(id, &report)

	if report.OrganizationID != organizationID {
		return nil, ErrNotFound
	}
	return &report, nil
}
