package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/splitbill/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, tx *gorm.DB, split *domain.Split, persons []domain.SplitPerson) error {
	if err := tx.WithContext(ctx).Create(split).Error; err != nil {
		return err
	}
	for i := range persons {
		persons[i].SplitID = split.ID
	}
	if len(persons) > 0 {
		if err := tx.WithContext(ctx).Create(&persons).Error; err != nil {
			return err
		}
	}
	split.Persons = persons
	return nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Split, error) {
	return r.findByID(ctx, r.db, id)
}

func (r *repo) FindByIDTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Split, error) {
	return r.findByID(ctx, tx, id)
}

func (r *repo) findByID(ctx context.Context, gdb *gorm.DB, id snowflake.ID) (*domain.Split, error) {
	var split domain.Split
	err := gdb.WithContext(ctx).Preload("Persons").Where("id = ?", id).First(&split).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &split, nil
}

func (r *repo) FindActiveBySession(ctx context.Context, sessionID snowflake.ID) (*domain.Split, error) {
	var split domain.Split
	err := r.db.WithContext(ctx).Preload("Persons").
		Where("session_id = ? AND status = ?", sessionID, domain.SplitActive).
		First(&split).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &split, nil
}

func (r *repo) UpdateSplit(ctx context.Context, tx *gorm.DB, split *domain.Split) error {
	return tx.WithContext(ctx).Save(split).Error
}

func (r *repo) UpdatePerson(ctx context.Context, tx *gorm.DB, person *domain.SplitPerson) error {
	return tx.WithContext(ctx).Save(person).Error
}

func (r *repo) CreateAssignment(ctx context.Context, tx *gorm.DB, assignment *domain.SplitItemAssignment) error {
	return tx.WithContext(ctx).Create(assignment).Error
}

func (r *repo) ListAssignmentsForItem(ctx context.Context, tx *gorm.DB, splitID, orderItemID snowflake.ID) ([]domain.SplitItemAssignment, error) {
	var assignments []domain.SplitItemAssignment
	err := tx.WithContext(ctx).
		Where("split_id = ? AND order_item_id = ?", splitID, orderItemID).
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repo) ListAssignmentsForSplit(ctx context.Context, tx *gorm.DB, splitID snowflake.ID) ([]domain.SplitItemAssignment, error) {
	var assignments []domain.SplitItemAssignment
	err := tx.WithContext(ctx).Where("split_id = ?", splitID).Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repo) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
