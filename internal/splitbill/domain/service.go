package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("splitbill: split not found")
	ErrAlreadyActive       = errors.New("splitbill: session already has an active split")
	ErrInvalidPeopleCount  = errors.New("splitbill: number_of_people must be >= 2")
	ErrInvalidSplitType    = errors.New("splitbill: unknown split type")
	ErrNotByItems          = errors.New("splitbill: AssignItem only applies to by_items splits")
	ErrPersonNotFound      = errors.New("splitbill: person not found")
	ErrItemOverassigned    = errors.New("splitbill: item portion exceeds 1.0")
	ErrSplitNotActive      = errors.New("splitbill: split is not active")
	ErrPersonAlreadyPaid   = errors.New("splitbill: person already paid")
	ErrInvalidPaymentMethod = errors.New("splitbill: unknown payment method")
)

// CreateSplitRequest is the input to Service.CreateSplit (§4.4).
type CreateSplitRequest struct {
	SessionID      snowflake.ID
	NumberOfPeople int
	SplitType      SplitType
}

// AssignItemRequest is the input to Service.AssignItem (§4.4).
type AssignItemRequest struct {
	SplitID     snowflake.ID
	PersonID    snowflake.ID
	OrderItemID snowflake.ID
	Portion     float64
}

// PayPersonRequest is the input to Service.PaySplitPerson (§4.4).
type PayPersonRequest struct {
	SplitID   snowflake.ID
	PersonID  snowflake.ID
	Method    orderdomain.PaymentMethod
	Reference *string
}

// Repository persists splits, their persons, and their item assignments.
type Repository interface {
	Create(ctx context.Context, tx *gorm.DB, split *Split, persons []SplitPerson) error
	FindByID(ctx context.Context, id snowflake.ID) (*Split, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Split, error)
	FindActiveBySession(ctx context.Context, sessionID snowflake.ID) (*Split, error)
	UpdateSplit(ctx context.Context, tx *gorm.DB, split *Split) error
	UpdatePerson(ctx context.Context, tx *gorm.DB, person *SplitPerson) error
	CreateAssignment(ctx context.Context, tx *gorm.DB, assignment *SplitItemAssignment) error
	ListAssignmentsForItem(ctx context.Context, tx *gorm.DB, splitID, orderItemID snowflake.ID) ([]SplitItemAssignment, error)
	ListAssignmentsForSplit(ctx context.Context, tx *gorm.DB, splitID snowflake.ID) ([]SplitItemAssignment, error)
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the SplitBillEngine (§4.4).
type Service interface {
	CreateSplit(ctx context.Context, req CreateSplitRequest) (*Split, error)
	Get(ctx context.Context, id snowflake.ID) (*Split, error)
	AssignItem(ctx context.Context, req AssignItemRequest) (*Split, error)
	Recalculate(ctx context.Context, splitID snowflake.ID) (*Split, error)
	PaySplitPerson(ctx context.Context, req PayPersonRequest) (*Split, bool, error)
}
