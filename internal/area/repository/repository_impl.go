package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/area/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, area *domain.Area) error {
	return r.db.WithContext(ctx).Create(area).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Area, error) {
	var area domain.Area
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&area).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &area, nil
}

func (r *repo) FindByPrefix(ctx context.Context, prefix string) (*domain.Area, error) {
	var area domain.Area
	err := r.db.WithContext(ctx).Where("prefix = ?", prefix).First(&area).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &area, nil
}

func (r *repo) List(ctx context.Context, activeOnly bool) ([]*domain.Area, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Area{})
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	var areas []*domain.Area
	if err := stmt.Order("name asc").Find(&areas).Error; err != nil {
		return nil, err
	}
	return areas, nil
}

func (r *repo) Deactivate(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Model(&domain.Area{}).
		Where("id = ?", id).
		Update("active", false).Error
}
