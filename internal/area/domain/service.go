package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidName   = errors.New("area: name is required")
	ErrInvalidPrefix = errors.New("area: prefix must be 1-3 uppercase letters")
	ErrNotFound      = errors.New("area: not found")
	ErrInvalidID     = errors.New("area: invalid id")
)

type CreateAreaRequest struct {
	Name            string
	Color           string
	Prefix          string
	BackgroundImage string
}

type Repository interface {
	Insert(ctx context.Context, area *Area) error
	FindByID(ctx context.Context, id snowflake.ID) (*Area, error)
	FindByPrefix(ctx context.Context, prefix string) (*Area, error)
	List(ctx context.Context, activeOnly bool) ([]*Area, error)
	Deactivate(ctx context.Context, id snowflake.ID) error
}

type Service interface {
	Create(ctx context.Context, req CreateAreaRequest) (Area, error)
	Get(ctx context.Context, id snowflake.ID) (Area, error)
	GetByPrefix(ctx context.Context, prefix string) (Area, error)
	List(ctx context.Context, activeOnly bool) ([]Area, error)
	Deactivate(ctx context.Context, id snowflake.ID) error
}
