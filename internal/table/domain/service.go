package domain

import (
	"context"
	"errors"
	"regexp"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidCode     = errors.New("table: code must match <AREA_PREFIX>-M<NN>")
	ErrInvalidCapacity = errors.New("table: capacity must be positive")
	ErrNotFound        = errors.New("table: not found")
	ErrInvalidArea     = errors.New("table: area not found")
)

// CodePattern is the strict §6 table code format: 1-3 uppercase letters,
// a literal "-M", then a zero-padded integer >= 1.
var CodePattern = regexp.MustCompile(`^[A-Z]{1,3}-M\d{2,}$`)

func ValidateCode(code string) bool {
	return CodePattern.MatchString(code)
}

type CreateTableRequest struct {
	Code     string
	AreaID   snowflake.ID
	Capacity int
	Shape    Shape
}

type Repository interface {
	Insert(ctx context.Context, table *Table) error
	FindByID(ctx context.Context, id snowflake.ID) (*Table, error)
	FindByCode(ctx context.Context, code string) (*Table, error)
	List(ctx context.Context, areaID snowflake.ID, activeOnly bool) ([]*Table, error)
	SetStatus(ctx context.Context, id snowflake.ID, status TableStatus) error
	Deactivate(ctx context.Context, id snowflake.ID) error

	// LockForUpdate acquires a SELECT ... FOR UPDATE on the table row within
	// an existing transaction. Used by SessionCoordinator's get-or-create
	// protocol (§4.2) to serialize concurrent session creation.
	LockForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Table, error)
}

type Service interface {
	Create(ctx context.Context, req CreateTableRequest) (Table, error)
	Get(ctx context.Context, id snowflake.ID) (Table, error)
	GetByCode(ctx context.Context, code string) (Table, error)
	List(ctx context.Context, areaID snowflake.ID, activeOnly bool) ([]Table, error)
	SetStatus(ctx context.Context, id snowflake.ID, status TableStatus) error
	Deactivate(ctx context.Context, id snowflake.ID) error
}
