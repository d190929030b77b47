package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/employee/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, employee *domain.Employee) error {
	return r.db.WithContext(ctx).Create(employee).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Employee, error) {
	var employee domain.Employee
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&employee).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &employee, nil
}

func (r *repo) FindByEmailHash(ctx context.Context, hash string) (*domain.Employee, error) {
	var employee domain.Employee
	err := r.db.WithContext(ctx).Where("email_hash = ?", hash).First(&employee).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &employee, nil
}

func (r *repo) List(ctx context.Context, role domain.Role, activeOnly bool) ([]*domain.Employee, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Employee{})
	if role != "" {
		stmt = stmt.Where("primary_role = ?", role)
	}
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	var employees []*domain.Employee
	if err := stmt.Order("created_at asc").Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}

func (r *repo) Update(ctx context.Context, employee *domain.Employee) error {
	return r.db.WithContext(ctx).Save(employee).Error
}
