package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/waitercall/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, call *domain.WaiterCall) error {
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.WaiterCall, error) {
	var call domain.WaiterCall
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&call).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

func (r *repo) FindPendingBySessionAndType(ctx context.Context, sessionID snowflake.ID, callType domain.CallType) (*domain.WaiterCall, error) {
	var call domain.WaiterCall
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND call_type = ? AND status = ?", sessionID, callType, domain.StatusPending).
		Order("created_at asc").
		First(&call).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

func (r *repo) Update(ctx context.Context, call *domain.WaiterCall) error {
	return r.db.WithContext(ctx).Save(call).Error
}

func (r *repo) CreateSupervisorCall(ctx context.Context, call *domain.SupervisorCall) error {
	return r.db.WithContext(ctx).Create(call).Error
}
