package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound          = errors.New("waitercall: not found")
	ErrAlreadyResolved   = errors.New("waitercall: call already confirmed or cancelled")
	ErrNotPendingForWaiter = errors.New("waitercall: call not pending for this waiter")
)

type CreateRequest struct {
	SessionID snowflake.ID
	TableCode string
	CallType  CallType
	Note      string
}

type CallSupervisorRequest struct {
	EmployeeID snowflake.ID
	TableCode  string
	OrderID    *snowflake.ID
	Reason     string
}

// Repository persists WaiterCall and SupervisorCall rows.
type Repository interface {
	Create(ctx context.Context, call *WaiterCall) error
	FindByID(ctx context.Context, id snowflake.ID) (*WaiterCall, error)
	FindPendingBySessionAndType(ctx context.Context, sessionID snowflake.ID, callType CallType) (*WaiterCall, error)
	Update(ctx context.Context, call *WaiterCall) error
	CreateSupervisorCall(ctx context.Context, call *SupervisorCall) error
}

// Service implements the waiter-call lifecycle plus the one-shot
// supervisor alert (§4.3, §4.6, SPEC_FULL supplemented features).
type Service interface {
	// RequestOrReuse creates a pending call of callType for the session,
	// or returns the existing pending one if present (§4.3's
	// RequestCheck re-emit behavior).
	RequestOrReuse(ctx context.Context, req CreateRequest) (*WaiterCall, bool, error)
	Confirm(ctx context.Context, id snowflake.ID, waiterID snowflake.ID) (*WaiterCall, error)
	Cancel(ctx context.Context, id snowflake.ID) (*WaiterCall, error)
	CallSupervisor(ctx context.Context, req CallSupervisorRequest) (*SupervisorCall, error)
}
