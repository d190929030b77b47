package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("assignment: not found")
	ErrTransferNotFound   = errors.New("assignment: transfer request not found")
	ErrTransferNotPending = errors.New("assignment: transfer request is not pending")
	ErrWrongTargetWaiter  = errors.New("assignment: only the target waiter may resolve this transfer")
	ErrDuplicateTransfer  = errors.New("assignment: a pending transfer already exists for this table")
	ErrNoActiveAssignment = errors.New("assignment: source waiter has no active assignment for this table")
)

// AssignTablesRequest is the input to Service.AssignTables (§4.5).
type AssignTablesRequest struct {
	WaiterID snowflake.ID
	TableIDs []snowflake.ID
	Force    bool
}

// Conflict names a table that is actively assigned to someone other than
// the requested waiter, surfaced instead of overwritten unless Force is set.
type Conflict struct {
	TableID         snowflake.ID
	CurrentWaiterID snowflake.ID
}

// AssignResult is the three-way outcome of AssignTables (§4.5).
type AssignResult struct {
	Assigned        []snowflake.ID
	AlreadyAssigned []snowflake.ID
	Conflicts       []Conflict
}

// CreateTransferRequest is the input to Service.CreateTransfer (§4.5).
type CreateTransferRequest struct {
	FromWaiterID snowflake.ID
	ToWaiterID   snowflake.ID
	TableID      snowflake.ID
	Message      *string
}

// Repository persists waiter-table assignments and transfer requests.
type Repository interface {
	FindActiveByTable(ctx context.Context, tx *gorm.DB, tableID snowflake.ID) (*WaiterTableAssignment, error)
	FindByWaiterAndTable(ctx context.Context, tx *gorm.DB, waiterID, tableID snowflake.ID) (*WaiterTableAssignment, error)
	Create(ctx context.Context, tx *gorm.DB, a *WaiterTableAssignment) error
	Update(ctx context.Context, tx *gorm.DB, a *WaiterTableAssignment) error

	CreateTransfer(ctx context.Context, tx *gorm.DB, r *TableTransferRequest) error
	FindTransferByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*TableTransferRequest, error)
	FindPendingTransferByTable(ctx context.Context, tx *gorm.DB, tableID snowflake.ID) (*TableTransferRequest, error)
	UpdateTransfer(ctx context.Context, tx *gorm.DB, r *TableTransferRequest) error

	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the AssignmentEngine (§4.5).
type Service interface {
	AssignTables(ctx context.Context, req AssignTablesRequest) (*AssignResult, error)
	CheckConflicts(ctx context.Context, waiterID snowflake.ID, tableIDs []snowflake.ID) ([]Conflict, error)

	CreateTransfer(ctx context.Context, req CreateTransferRequest) (*TableTransferRequest, error)
	AcceptTransfer(ctx context.Context, requestID, toWaiterID snowflake.ID, transferOrders bool) (*TableTransferRequest, error)
	RejectTransfer(ctx context.Context, requestID, toWaiterID snowflake.ID) (*TableTransferRequest, error)

	// AssignedWaiter and OnOrderAccepted together implement
	// order.domain.TableAssignmentHook.
	AssignedWaiter(ctx context.Context, tableCode string) (*snowflake.ID, error)
	OnOrderAccepted(ctx context.Context, waiterID snowflake.ID, tableCode string, sessionID, acceptedOrderID snowflake.ID) error
}
