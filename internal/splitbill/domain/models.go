package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	"github.com/prontocore/kitchen/pkg/money"
)

type SplitType string

const (
	SplitTypeEqual   SplitType = "equal"
	SplitTypeByItems SplitType = "by_items"
)

type SplitStatus string

const (
	SplitActive    SplitStatus = "active"
	SplitCompleted SplitStatus = "completed"
)

type PersonStatus string

const (
	PersonUnpaid PersonStatus = "unpaid"
	PersonPaid   PersonStatus = "paid"
)

// Split is the at-most-one-active-per-session split request (§4.4).
type Split struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	SessionID   snowflake.ID `gorm:"not null;index" json:"session_id"`
	SplitType   SplitType    `gorm:"not null" json:"split_type"`
	NumPeople   int          `gorm:"not null" json:"number_of_people"`
	Status      SplitStatus  `gorm:"not null;default:active" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`

	Persons []SplitPerson `gorm:"foreignKey:SplitID" json:"persons,omitempty"`
}

func (Split) TableName() string { return "splits" }

// SplitPerson is one of the N shares of a Split (§4.4 "Persona N").
type SplitPerson struct {
	ID               snowflake.ID               `gorm:"primaryKey" json:"id"`
	SplitID          snowflake.ID               `gorm:"not null;index" json:"split_id"`
	Label            string                     `gorm:"not null" json:"label"`
	Subtotal         money.Cents                `gorm:"not null;default:0" json:"subtotal"`
	TaxAmount        money.Cents                `gorm:"not null;default:0" json:"tax_amount"`
	TipAmount        money.Cents                `gorm:"not null;default:0" json:"tip_amount"`
	TotalAmount      money.Cents                `gorm:"not null;default:0" json:"total_amount"`
	Status           PersonStatus               `gorm:"not null;default:unpaid" json:"status"`
	PaymentMethod    *orderdomain.PaymentMethod `json:"payment_method,omitempty"`
	PaymentReference *string                    `json:"payment_reference,omitempty"`
	PaidAt           *time.Time                 `json:"paid_at,omitempty"`
}

func (SplitPerson) TableName() string { return "split_persons" }

// SplitItemAssignment records the portion of one order item's line total
// assigned to a person, for by_items splits (§4.4's AssignItem).
type SplitItemAssignment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	SplitID     snowflake.ID `gorm:"not null;index" json:"split_id"`
	PersonID    snowflake.ID `gorm:"not null;index" json:"person_id"`
	OrderItemID snowflake.ID `gorm:"not null;index" json:"order_item_id"`
	Portion     float64      `gorm:"not null" json:"portion"`
	Amount      money.Cents  `gorm:"not null" json:"amount"`
}

func (SplitItemAssignment) TableName() string { return "split_item_assignments" }
