package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/pkg/money"
	"gorm.io/datatypes"
)

type WorkflowStatus string

const (
	StatusNew              WorkflowStatus = "new"
	StatusQueued           WorkflowStatus = "queued"
	StatusPreparing        WorkflowStatus = "preparing"
	StatusReady            WorkflowStatus = "ready"
	StatusDelivered        WorkflowStatus = "delivered"
	StatusAwaitingPayment  WorkflowStatus = "awaiting_payment"
	StatusPaid             WorkflowStatus = "paid"
	StatusCancelled        WorkflowStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid      PaymentStatus = "unpaid"
	PaymentAwaitingTip PaymentStatus = "awaiting_tip"
	PaymentPaid        PaymentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentMethodCash      PaymentMethod = "cash"
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodStripe    PaymentMethod = "stripe"
	PaymentMethodClip      PaymentMethod = "clip"
	PaymentMethodSplitBill PaymentMethod = "split_bill"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodStripe, PaymentMethodClip, PaymentMethodSplitBill:
		return true
	default:
		return false
	}
}

// Order belongs to exactly one dining session and one customer (§3).
type Order struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	SessionID        snowflake.ID    `gorm:"not null;index" json:"session_id"`
	CustomerID       snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	TableCode        string          `gorm:"column:table_code" json:"table_code,omitempty"`
	WorkflowStatus   WorkflowStatus  `gorm:"not null;default:new" json:"workflow_status"`
	PaymentStatus    PaymentStatus   `gorm:"not null;default:unpaid" json:"payment_status"`
	Subtotal         money.Cents     `gorm:"not null;default:0" json:"subtotal"`
	TaxAmount        money.Cents     `gorm:"not null;default:0" json:"tax_amount"`
	TipAmount        money.Cents     `gorm:"not null;default:0" json:"tip_amount"`
	TotalAmount      money.Cents     `gorm:"not null;default:0" json:"total_amount"`
	WaiterID         *snowflake.ID   `json:"waiter_id,omitempty"`
	ChefID           *snowflake.ID   `json:"chef_id,omitempty"`
	DeliveryWaiterID *snowflake.ID   `json:"delivery_waiter_id,omitempty"`
	AcceptedAt       *time.Time      `json:"accepted_at,omitempty"`
	WaiterAcceptedAt *time.Time      `json:"waiter_accepted_at,omitempty"`
	ChefAcceptedAt   *time.Time      `json:"chef_accepted_at,omitempty"`
	ReadyAt          *time.Time      `json:"ready_at,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod    *PaymentMethod  `json:"payment_method,omitempty"`
	PaymentReference *string         `json:"payment_reference,omitempty"`
	PaymentMeta      datatypes.JSON  `gorm:"column:payment_meta" json:"payment_meta,omitempty"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderHistoryEntry is an append-only row recording each status the order
// has passed through (§9 "History as append-only").
type OrderHistoryEntry struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrderID   snowflake.ID   `gorm:"not null;index" json:"order_id"`
	Sequence  int            `gorm:"not null" json:"sequence"`
	Status    WorkflowStatus `gorm:"not null" json:"status"`
	Action    string         `gorm:"not null" json:"action"`
	ActorID   *snowflake.ID  `json:"actor_id,omitempty"`
	Scope     string         `gorm:"not null" json:"scope"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (OrderHistoryEntry) TableName() string { return "order_history_entries" }

// OrderItem belongs to one order (§3). QuickServe is frozen at order time
// from the menu item's catalog attribute, same as UnitPrice.
type OrderItem struct {
	ID                    snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrderID               snowflake.ID  `gorm:"not null;index" json:"order_id"`
	MenuItemID            snowflake.ID  `gorm:"not null" json:"menu_item_id"`
	Quantity              int           `gorm:"not null" json:"quantity"`
	UnitPrice             money.Cents   `gorm:"not null" json:"unit_price"`
	SpecialInstructions   string        `json:"special_instructions,omitempty"`
	QuickServe            bool          `gorm:"not null;default:false" json:"quick_serve"`
	DeliveredQuantity     int           `gorm:"not null;default:0" json:"delivered_quantity"`
	IsFullyDelivered      bool          `gorm:"not null;default:false" json:"is_fully_delivered"`
	DeliveredAt           *time.Time    `json:"delivered_at,omitempty"`
	DeliveredByEmployeeID *snowflake.ID `json:"delivered_by_employee_id,omitempty"`

	Modifiers []OrderItemModifier `gorm:"foreignKey:OrderItemID" json:"modifiers,omitempty"`
}

func (OrderItem) TableName() string { return "order_items" }

// LineTotal is (unit price + modifier adjustments) x quantity, used by
// SplitBillEngine's by-items assignment (§4.4).
func (i OrderItem) LineTotal() money.Cents {
	unit := i.UnitPrice
	for _, m := range i.Modifiers {
		unit += m.UnitPriceAdjustment
	}
	return unit.MulInt(i.Quantity)
}

// OrderItemModifier belongs to one item (§3).
type OrderItemModifier struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderItemID         snowflake.ID `gorm:"not null;index" json:"order_item_id"`
	ModifierRef         snowflake.ID `gorm:"not null" json:"modifier_ref"`
	Quantity            int          `gorm:"not null;default:1" json:"quantity"`
	UnitPriceAdjustment money.Cents  `gorm:"not null;default:0" json:"unit_price_adjustment"`
}

func (OrderItemModifier) TableName() string { return "order_item_modifiers" }
