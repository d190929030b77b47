package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidName       = errors.New("employee: name is required")
	ErrInvalidEmail      = errors.New("employee: email is invalid")
	ErrInvalidPassword   = errors.New("employee: password must be at least 8 characters")
	ErrEmailTaken        = errors.New("employee: email already registered")
	ErrNotFound          = errors.New("employee: not found")
	ErrInvalidCredential = errors.New("employee: invalid credentials")
	ErrInactive          = errors.New("employee: account is inactive")
)

type CreateEmployeeRequest struct {
	Name            string
	Email           string
	Password        string
	PrimaryRole     Role
	AdditionalRoles []Role
	Scopes          []Scope
}

type Repository interface {
	Insert(ctx context.Context, employee *Employee) error
	FindByID(ctx context.Context, id snowflake.ID) (*Employee, error)
	FindByEmailHash(ctx context.Context, hash string) (*Employee, error)
	List(ctx context.Context, role Role, activeOnly bool) ([]*Employee, error)
	Update(ctx context.Context, employee *Employee) error
}

type Service interface {
	Create(ctx context.Context, req CreateEmployeeRequest) (Employee, error)
	Authenticate(ctx context.Context, email, password string) (Employee, error)
	SignIn(ctx context.Context, id snowflake.ID) error
	Touch(ctx context.Context, id snowflake.ID) error
	Get(ctx context.Context, id snowflake.ID) (Employee, error)
	List(ctx context.Context, role Role, activeOnly bool) ([]Employee, error)
	UpdatePreferences(ctx context.Context, id snowflake.ID, prefs Preferences) error
	DisplayName(ctx context.Context, id snowflake.ID) (string, error)
}
