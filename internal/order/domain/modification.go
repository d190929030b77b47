package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/pkg/money"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrModificationNotFound    = errors.New("order: modification not found")
	ErrModificationNotPending  = errors.New("order: modification is not pending review")
	ErrModificationNotApproved = errors.New("order: modification must be approved before it can be applied")
	ErrOrderNotModifiable      = errors.New("order: order has already started kitchen preparation")
	ErrEmptyModification       = errors.New("order: modification must add, remove, or update at least one item")
)

// ModificationStatus is the review state of a proposed change package (§3).
type ModificationStatus string

const (
	ModificationPending  ModificationStatus = "pending"
	ModificationApproved ModificationStatus = "approved"
	ModificationRejected ModificationStatus = "rejected"
	ModificationApplied  ModificationStatus = "applied"
)

// ModificationInitiator names who proposed the change (§3).
type ModificationInitiator string

const (
	InitiatorCustomer ModificationInitiator = "customer"
	InitiatorWaiter   ModificationInitiator = "waiter"
)

// ModificationItemAdd is one new line item proposed by a modification.
type ModificationItemAdd struct {
	MenuItemID          snowflake.ID              `json:"menu_item_id"`
	Quantity            int                       `json:"quantity"`
	UnitPrice           money.Cents               `json:"unit_price"`
	SpecialInstructions string                    `json:"special_instructions,omitempty"`
	QuickServe          bool                      `json:"quick_serve,omitempty"`
	Modifiers           []CreateOrderItemModifier `json:"modifiers,omitempty"`
}

// ModificationItemRemove references an existing item to drop entirely.
type ModificationItemRemove struct {
	OrderItemID snowflake.ID `json:"order_item_id"`
}

// ModificationItemUpdate changes the quantity of an existing item.
type ModificationItemUpdate struct {
	OrderItemID snowflake.ID `json:"order_item_id"`
	Quantity    int          `json:"quantity"`
}

// OrderModification is a proposed package of changes to one order (§3): it
// is reviewed (approve/reject) before being applied, mirroring the order's
// own authorization discipline without plugging into transitionTable - a
// modification never changes workflow_status.
type OrderModification struct {
	ID                snowflake.ID          `gorm:"primaryKey" json:"id"`
	OrderID           snowflake.ID          `gorm:"not null;index" json:"order_id"`
	Initiator         ModificationInitiator `gorm:"not null" json:"initiator"`
	Status            ModificationStatus    `gorm:"not null;default:pending" json:"status"`
	ItemsToAddRaw     datatypes.JSON        `gorm:"column:items_to_add" json:"-"`
	ItemsToRemoveRaw  datatypes.JSON        `gorm:"column:items_to_remove" json:"-"`
	ItemsToUpdateRaw  datatypes.JSON        `gorm:"column:items_to_update" json:"-"`
	Reason            string                `json:"reason,omitempty"`
	ReviewerID        *snowflake.ID         `json:"reviewer_id,omitempty"`
	CreatedAt         time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	ReviewedAt        *time.Time            `json:"reviewed_at,omitempty"`
	AppliedAt         *time.Time            `json:"applied_at,omitempty"`
}

func (OrderModification) TableName() string { return "order_modifications" }

func (m *OrderModification) SetItemsToAdd(items []ModificationItemAdd) {
	b, _ := json.Marshal(items)
	m.ItemsToAddRaw = b
}

func (m OrderModification) ItemsToAdd() []ModificationItemAdd {
	var items []ModificationItemAdd
	if len(m.ItemsToAddRaw) == 0 {
		return nil
	}
	_ = json.Unmarshal(m.ItemsToAddRaw, &items)
	return items
}

func (m *OrderModification) SetItemsToRemove(items []ModificationItemRemove) {
	b, _ := json.Marshal(items)
	m.ItemsToRemoveRaw = b
}

func (m OrderModification) ItemsToRemove() []ModificationItemRemove {
	var items []ModificationItemRemove
	if len(m.ItemsToRemoveRaw) == 0 {
		return nil
	}
	_ = json.Unmarshal(m.ItemsToRemoveRaw, &items)
	return items
}

func (m *OrderModification) SetItemsToUpdate(items []ModificationItemUpdate) {
	b, _ := json.Marshal(items)
	m.ItemsToUpdateRaw = b
}

func (m OrderModification) ItemsToUpdate() []ModificationItemUpdate {
	var items []ModificationItemUpdate
	if len(m.ItemsToUpdateRaw) == 0 {
		return nil
	}
	_ = json.Unmarshal(m.ItemsToUpdateRaw, &items)
	return items
}

// ModificationRepository persists OrderModification rows. It is deliberately
// separate from Repository - modifications are a review queue on top of
// orders, not part of the order's own invariants.
type ModificationRepository interface {
	Create(ctx context.Context, mod *OrderModification) error
	FindByID(ctx context.Context, id snowflake.ID) (*OrderModification, error)
	LockForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*OrderModification, error)
	Update(ctx context.Context, mod *OrderModification) error
	UpdateTx(ctx context.Context, tx *gorm.DB, mod *OrderModification) error
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProposeModificationRequest is the input to ModificationService.Propose.
type ProposeModificationRequest struct {
	OrderID       snowflake.ID
	Initiator     ModificationInitiator
	ItemsToAdd    []ModificationItemAdd
	ItemsToRemove []ModificationItemRemove
	ItemsToUpdate []ModificationItemUpdate
	Reason        string
}

// ModificationService is the review/apply workflow for OrderModification
// (§3, "Order modification workflow"): Propose records a pending change
// package, Approve/Reject record the review decision, and Apply mutates the
// order's items and recomputes its (and its session's) totals.
type ModificationService interface {
	Propose(ctx context.Context, req ProposeModificationRequest) (*OrderModification, error)
	Approve(ctx context.Context, modificationID snowflake.ID, reviewerID snowflake.ID) (*OrderModification, error)
	Reject(ctx context.Context, modificationID snowflake.ID, reviewerID snowflake.ID, reason string) (*OrderModification, error)
	Apply(ctx context.Context, modificationID snowflake.ID) (*Order, error)
}
