package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/diningsession/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, tx *gorm.DB, session *domain.DiningSession) error {
	return tx.WithContext(ctx).Create(session).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.DiningSession, error) {
	return r.findByID(ctx, r.db, id)
}

func (r *repo) FindByIDTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.DiningSession, error) {
	return r.findByID(ctx, tx, id)
}

func (r *repo) findByID(ctx context.Context, gdb *gorm.DB, id snowflake.ID) (*domain.DiningSession, error) {
	var session domain.DiningSession
	err := gdb.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repo) FindOpenByTable(ctx context.Context, tx *gorm.DB, tableID snowflake.ID) (*domain.DiningSession, error) {
	var session domain.DiningSession
	err := tx.WithContext(ctx).
		Where("table_id = ? AND status = ?", tableID, domain.StatusOpen).
		Order("created_at asc").
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repo) FindOpenByCustomer(ctx context.Context, tx *gorm.DB, customerID snowflake.ID) (*domain.DiningSession, error) {
	var session domain.DiningSession
	err := tx.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, domain.StatusOpen).
		Order("created_at asc").
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repo) Update(ctx context.Context, tx *gorm.DB, session *domain.DiningSession) error {
	return tx.WithContext(ctx).Save(session).Error
}

func (r *repo) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
