package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/authzscope"
	"github.com/prontocore/kitchen/pkg/money"
	"gorm.io/gorm"
)

var (
	ErrNotFound              = errors.New("order: not found")
	ErrTransitionNotAllowed  = errors.New("order: transition not allowed from current status")
	ErrForbiddenScope        = errors.New("order: scope not permitted for this transition")
	ErrJustificationRequired = errors.New("order: justification required for this transition")
	ErrTerminalStatus        = errors.New("order: order is in a terminal status")
	ErrItemNotFound          = errors.New("order: item not found")
	ErrOverDelivery          = errors.New("order: cannot deliver more than ordered quantity")
	ErrEmptyOrder            = errors.New("order: order must contain at least one item")
	ErrWaiterRequired        = errors.New("order: waiter_id must be set for this status")
)

// CreateOrderRequest is the input to Service.Create (§3, §4.1 "new" entry).
type CreateOrderRequest struct {
	SessionID  snowflake.ID
	CustomerID snowflake.ID
	TableCode  string
	Items      []CreateOrderItem
	Notes      string
}

type CreateOrderItem struct {
	MenuItemID          snowflake.ID
	Quantity            int
	UnitPrice           money.Cents
	SpecialInstructions string
	QuickServe          bool
	Modifiers           []CreateOrderItemModifier
}

type CreateOrderItemModifier struct {
	ModifierRef         snowflake.ID
	Quantity            int
	UnitPriceAdjustment money.Cents
}

// TransitionRequest is the input to Service.Transition (§4.1).
type TransitionRequest struct {
	OrderID       snowflake.ID
	To            WorkflowStatus
	Scope         authzscope.Scope
	ActorID       *snowflake.ID
	Justification string
	// PaymentMethod/PaymentReference are only consulted by the pay/pay_direct actions.
	PaymentMethod    *PaymentMethod
	PaymentReference *string
}

// Repository persists orders, history entries, and items. It never embeds
// business rules - those live in Service.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id snowflake.ID) (*Order, error)
	// FindOrderItemByID looks up a single item regardless of which order it
	// belongs to, for SplitBillEngine's by-items assignment (§4.4).
	FindOrderItemByID(ctx context.Context, itemID snowflake.ID) (*OrderItem, error)
	// LockForUpdate re-reads and row-locks the order within tx, for use
	// inside a transaction started by the caller (§4.2's race-handling idiom).
	LockForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Order, error)
	Update(ctx context.Context, order *Order) error
	// UpdateTx is Update run inside an existing transaction, for callers
	// (SettlementEngine) that mark several orders paid atomically with the
	// session's own status change.
	UpdateTx(ctx context.Context, tx *gorm.DB, order *Order) error
	ListBySession(ctx context.Context, sessionID snowflake.ID) ([]Order, error)
	// ListActiveByTableAndWaiter finds every non-terminal order at a table
	// currently pointed at waiterID, for AssignmentEngine's transfer-with-
	// orders step (§4.5's CreateTransfer/AcceptTransfer).
	ListActiveByTableAndWaiter(ctx context.Context, tx *gorm.DB, tableCode string, waiterID snowflake.ID) ([]Order, error)
	// ListBySessionTx is ListBySession run inside an existing transaction,
	// for callers (SessionCoordinator.RecomputeTotals) that must read
	// child orders consistently with a concurrent write (§4.2).
	ListBySessionTx(ctx context.Context, tx *gorm.DB, sessionID snowflake.ID) ([]Order, error)
	AppendHistory(ctx context.Context, tx *gorm.DB, entry *OrderHistoryEntry) error
	NextHistorySequence(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (int, error)
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the TransitionEngine (§2, §4.1): the single place that may
// mutate an order's workflow_status.
type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*Order, error)
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	ListBySession(ctx context.Context, sessionID snowflake.ID) ([]Order, error)
	Transition(ctx context.Context, req TransitionRequest) (*Order, error)
	DeliverItems(ctx context.Context, orderID snowflake.ID, itemIDs []snowflake.ID, employeeID snowflake.ID) (*Order, error)
}

// TableAssignmentHook is implemented by the AssignmentEngine (§4.5) and
// injected optionally so order never imports the assignment package - the
// dependency points the other way, from assignment into order.
type TableAssignmentHook interface {
	// AssignedWaiter resolves the waiter currently assigned to a table, for
	// §4.5's "waiter-call resolution on order creation": when non-nil, the
	// new order pre-sets waiter_id/accepted_at/waiter_accepted_at and enters
	// queued (or ready, if every item is quick-serve) instead of new.
	AssignedWaiter(ctx context.Context, tableCode string) (*snowflake.ID, error)

	// OnOrderAccepted runs after an accept_or_queue transition commits, for
	// §4.5's "auto-assign on accept": it best-effort assigns the table to
	// the accepting waiter and re-points the session's other "new" orders
	// to the same waiter. Errors are the caller's to log only - acceptance
	// must never fail because assignment did (§9 "Auto-assign best-effort").
	OnOrderAccepted(ctx context.Context, waiterID snowflake.ID, tableCode string, sessionID snowflake.ID, acceptedOrderID snowflake.ID) error
}

// SessionRecomputeHook is implemented by the SessionCoordinator (§4.2) and
// injected optionally so order never imports diningsession - the dependency
// already points the other way, from diningsession into order.
type SessionRecomputeHook interface {
	// RecomputeAndMaybeClose re-sums a session's non-cancelled child orders
	// inside tx and closes the session if none remain, for the cancel
	// action's parent-session side effect (§4.1, invariant #2).
	RecomputeAndMaybeClose(ctx context.Context, tx *gorm.DB, sessionID snowflake.ID) error
}
