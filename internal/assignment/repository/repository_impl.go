package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/assignment/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) FindActiveByTable(ctx context.Context, tx *gorm.DB, tableID snowflake.ID) (*domain.WaiterTableAssignment, error) {
	var a domain.WaiterTableAssignment
	err := tx.WithContext(ctx).
		Where("table_id = ? AND is_active = ?", tableID, true).
		First(&a).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *repo) FindByWaiterAndTable(ctx context.Context, tx *gorm.DB, waiterID, tableID snowflake.ID) (*domain.WaiterTableAssignment, error) {
	var a domain.WaiterTableAssignment
	err := tx.WithContext(ctx).
		Where("waiter_id = ? AND table_id = ?", waiterID, tableID).
		First(&a).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *repo) Create(ctx context.Context, tx *gorm.DB, a *domain.WaiterTableAssignment) error {
	return tx.WithContext(ctx).Create(a).Error
}

func (r *repo) Update(ctx context.Context, tx *gorm.DB, a *domain.WaiterTableAssignment) error {
	return tx.WithContext(ctx).Save(a).Error
}

func (r *repo) CreateTransfer(ctx context.Context, tx *gorm.DB, req *domain.TableTransferRequest) error {
	return tx.WithContext(ctx).Create(req).Error
}

func (r *repo) FindTransferByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.TableTransferRequest, error) {
	var req domain.TableTransferRequest
	err := tx.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *repo) FindPendingTransferByTable(ctx context.Context, tx *gorm.DB, tableID snowflake.ID) (*domain.TableTransferRequest, error) {
	var req domain.TableTransferRequest
	err := tx.WithContext(ctx).
		Where("table_id = ? AND status = ?", tableID, domain.TransferPending).
		First(&req).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *repo) UpdateTransfer(ctx context.Context, tx *gorm.DB, req *domain.TableTransferRequest) error {
	return tx.WithContext(ctx).Save(req).Error
}

func (r *repo) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
