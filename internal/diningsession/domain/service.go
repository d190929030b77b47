package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	"github.com/prontocore/kitchen/pkg/money"
	"gorm.io/gorm"
)

var (
	ErrNotFound              = errors.New("diningsession: not found")
	ErrSessionRaceUnresolved = errors.New("diningsession: session race unresolved")
	ErrInvalidTip            = errors.New("diningsession: exactly one of fixed or percent must be given, within range")
	ErrInvalidStatus         = errors.New("diningsession: operation not allowed in current status")
	ErrInvalidPaymentMethod  = errors.New("diningsession: unknown payment method")
	ErrOrderNotInSession     = errors.New("diningsession: order does not belong to this session")
	ErrAlreadyPaid           = errors.New("diningsession: session is already paid")
	ErrNotPaid               = errors.New("diningsession: session has not been paid yet")
)

// TicketLine is one order's contribution to a TicketSnapshot.
type TicketLine struct {
	OrderID  snowflake.ID
	Subtotal money.Cents
	Items    []orderdomain.OrderItem
}

// TicketSnapshot is the printable/emailable receipt for a paid session
// (§4.3's ticket, SPEC_FULL §3). It is reconstructed on demand from the
// session and its orders rather than stored, so Reprint always reflects the
// latest recorded totals.
type TicketSnapshot struct {
	SessionID     snowflake.ID
	TableCode     string
	Subtotal      money.Cents
	TaxAmount     money.Cents
	TipAmount     money.Cents
	TotalAmount   money.Cents
	PaymentMethod *orderdomain.PaymentMethod
	ClosedAt      *time.Time
	Orders        []TicketLine
}

// ResolveRequest is the input to SessionCoordinator.Resolve (§4.2's 4-step
// get-or-create resolution order).
type ResolveRequest struct {
	HintSessionID *snowflake.ID
	TableID       *snowflake.ID
	TableCode     string
	CustomerID    snowflake.ID
}

// ApplyTipRequest carries exactly one of Fixed or Percent (§4.3).
type ApplyTipRequest struct {
	SessionID snowflake.ID
	Fixed     *money.Cents
	Percent   *float64
}

// FinalizePaymentRequest is the input to SettlementEngine.FinalizePayment (§4.3).
type FinalizePaymentRequest struct {
	SessionID    snowflake.ID
	Method       orderdomain.PaymentMethod
	Tip          *ApplyTipRequest
	Reference    *string
	ContactEmail *string
}

// Repository persists dining sessions.
type Repository interface {
	Create(ctx context.Context, tx *gorm.DB, session *DiningSession) error
	FindByID(ctx context.Context, id snowflake.ID) (*DiningSession, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*DiningSession, error)
	FindOpenByTable(ctx context.Context, tx *gorm.DB, tableID snowflake.ID) (*DiningSession, error)
	FindOpenByCustomer(ctx context.Context, tx *gorm.DB, customerID snowflake.ID) (*DiningSession, error)
	Update(ctx context.Context, tx *gorm.DB, session *DiningSession) error
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the SessionCoordinator (§4.2) plus the session-level slice of
// SettlementEngine (§4.3), which mutates the same aggregate.
type Service interface {
	Resolve(ctx context.Context, req ResolveRequest) (*DiningSession, error)
	Get(ctx context.Context, id snowflake.ID) (*DiningSession, error)
	RecomputeTotals(ctx context.Context, tx *gorm.DB, sessionID snowflake.ID) (*DiningSession, error)

	// RecomputeAndMaybeClose and the method above together implement
	// order.domain.SessionRecomputeHook.
	RecomputeAndMaybeClose(ctx context.Context, tx *gorm.DB, sessionID snowflake.ID) error

	RequestCheck(ctx context.Context, sessionID snowflake.ID) (*DiningSession, error)
	ApplyTip(ctx context.Context, req ApplyTipRequest) (*DiningSession, error)
	FinalizePayment(ctx context.Context, req FinalizePaymentRequest) (*DiningSession, bool, error)
	ConfirmPayment(ctx context.Context, sessionID snowflake.ID) (*DiningSession, error)
	ConfirmPartialPayment(ctx context.Context, sessionID snowflake.ID, orderIDs []snowflake.ID) (*DiningSession, error)

	// CloseViaSplit closes the session once a split-bill's last person has
	// paid (§4.4): status becomes closed and every child order is marked
	// paid with method split_bill and reference "split-<splitID>".
	CloseViaSplit(ctx context.Context, sessionID snowflake.ID, splitID snowflake.ID) (*DiningSession, error)

	// Reprint rebuilds the ticket for a paid session (SPEC_FULL §3). Only
	// valid once FinalizePayment/ConfirmPayment has moved the session to
	// paid or closed.
	Reprint(ctx context.Context, sessionID snowflake.ID) (*TicketSnapshot, error)

	// ResendEmail re-sends the ticket to the session's customer contact
	// email. It is a no-op (logged, not an error) when the customer never
	// provided a real email (§6's anonymous sentinel).
	ResendEmail(ctx context.Context, sessionID snowflake.ID) error
}
