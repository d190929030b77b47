package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/table/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, table *domain.Table) error {
	return r.db.WithContext(ctx).Create(table).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Table, error) {
	var table domain.Table
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&table).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &table, nil
}

func (r *repo) FindByCode(ctx context.Context, code string) (*domain.Table, error) {
	var table domain.Table
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&table).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &table, nil
}

func (r *repo) List(ctx context.Context, areaID snowflake.ID, activeOnly bool) ([]*domain.Table, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Table{})
	if areaID != 0 {
		stmt = stmt.Where("area_id = ?", areaID)
	}
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	var tables []*domain.Table
	if err := stmt.Order("code asc").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *repo) SetStatus(ctx context.Context, id snowflake.ID, status domain.TableStatus) error {
	return r.db.WithContext(ctx).Model(&domain.Table{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repo) Deactivate(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Model(&domain.Table{}).
		Where("id = ?", id).
		Update("active", false).Error
}

// LockForUpdate mirrors the scheduler's raw-SQL SELECT ... FOR UPDATE
// pattern: it must run inside tx (the caller's transaction), never on a
// bare *gorm.DB, or the lock is released the instant the query returns.
func (r *repo) LockForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Table, error) {
	var table domain.Table
	err := tx.WithContext(ctx).Raw(
		`SELECT id, code, qr_token, area_id, capacity, status, position_x, position_y, shape, active, created_at, updated_at
		 FROM tables WHERE id = ? FOR UPDATE`,
		id,
	).Scan(&table).Error
	if err != nil {
		return nil, err
	}
	if table.ID == 0 {
		return nil, nil
	}
	return &table, nil
}
