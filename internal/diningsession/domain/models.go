package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	"github.com/prontocore/kitchen/pkg/money"
)

type Status string

const (
	StatusOpen                       Status = "open"
	StatusAwaitingTip                Status = "awaiting_tip"
	StatusAwaitingPayment            Status = "awaiting_payment"
	StatusAwaitingPaymentConfirmation Status = "awaiting_payment_confirmation"
	StatusPaid                       Status = "paid"
	StatusClosed                     Status = "closed"
)

// DiningSession aggregates one or more orders for a single table visit
// (§4.2, GLOSSARY "Session").
type DiningSession struct {
	ID               snowflake.ID             `gorm:"primaryKey" json:"id"`
	TableID          *snowflake.ID            `gorm:"column:table_id;index" json:"table_id,omitempty"`
	TableCode        string                   `gorm:"column:table_code" json:"table_code,omitempty"`
	CustomerID       snowflake.ID             `gorm:"not null;index" json:"customer_id"`
	Status           Status                   `gorm:"not null;default:open;index" json:"status"`
	Subtotal         money.Cents              `gorm:"not null;default:0" json:"subtotal"`
	TaxAmount        money.Cents              `gorm:"not null;default:0" json:"tax_amount"`
	TipAmount        money.Cents              `gorm:"not null;default:0" json:"tip_amount"`
	TotalAmount      money.Cents              `gorm:"not null;default:0" json:"total_amount"`
	TotalPaid        money.Cents              `gorm:"not null;default:0" json:"total_paid"`
	PaymentMethod    *orderdomain.PaymentMethod `json:"payment_method,omitempty"`
	PaymentReference *string                  `json:"payment_reference,omitempty"`
	CheckRequestedAt *time.Time               `json:"check_requested_at,omitempty"`
	TipRequestedAt   *time.Time               `json:"tip_requested_at,omitempty"`
	TipConfirmedAt   *time.Time               `json:"tip_confirmed_at,omitempty"`
	ClosedAt         *time.Time               `json:"closed_at,omitempty"`
	ExpiresAt        time.Time                `gorm:"not null" json:"expires_at"`
	CreatedAt        time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time                `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (DiningSession) TableName() string { return "dining_sessions" }

// IsExpired reports whether the session's TTL has passed as of now (§4.2
// TTL rule: a read that observes expiration must close the session).
func (s DiningSession) IsExpired(now time.Time) bool {
	return s.Status == StatusOpen && now.After(s.ExpiresAt)
}

// IsOpenLike reports whether the session is still accumulating liability
// (i.e. not yet closed or fully paid).
func (s DiningSession) IsOpenLike() bool {
	switch s.Status {
	case StatusOpen, StatusAwaitingTip, StatusAwaitingPayment, StatusAwaitingPaymentConfirmation:
		return true
	default:
		return false
	}
}
