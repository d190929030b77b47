package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/order/domain"
	"gorm.io/gorm"
)

type modificationRepo struct {
	db *gorm.DB
}

func ProvideModifications(db *gorm.DB) domain.ModificationRepository {
	return &modificationRepo{db: db}
}

func (r *modificationRepo) Create(ctx context.Context, mod *domain.OrderModification) error {
	return r.db.WithContext(ctx).Create(mod).Error
}

func (r *modificationRepo) FindByID(ctx context.Context, id snowflake.ID) (*domain.OrderModification, error) {
	var mod domain.OrderModification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&mod).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &mod, nil
}

// LockForUpdate mirrors order.Repository.LockForUpdate: must run inside tx.
func (r *modificationRepo) LockForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.OrderModification, error) {
	var mod domain.OrderModification
	err := tx.WithContext(ctx).Raw(
		`SELECT id, order_id, initiator, status, items_to_add, items_to_remove, items_to_update,
		        reason, reviewer_id, created_at, updated_at, reviewed_at, applied_at
		 FROM order_modifications WHERE id = ? FOR UPDATE`,
		id,
	).Scan(&mod).Error
	if err != nil {
		return nil, err
	}
	if mod.ID == 0 {
		return nil, nil
	}
	return &mod, nil
}

func (r *modificationRepo) Update(ctx context.Context, mod *domain.OrderModification) error {
	return r.db.WithContext(ctx).Save(mod).Error
}

func (r *modificationRepo) UpdateTx(ctx context.Context, tx *gorm.DB, mod *domain.OrderModification) error {
	return tx.WithContext(ctx).Save(mod).Error
}

func (r *modificationRepo) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
