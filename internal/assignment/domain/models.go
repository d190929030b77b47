package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// WaiterTableAssignment is one (waiter, table) pairing (§4.5). The pair is
// unique: reassigning the same waiter to the same table toggles is_active
// on the existing row rather than inserting a new one (§5's composite
// uniqueness backstop).
type WaiterTableAssignment struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	WaiterID     snowflake.ID `gorm:"not null;uniqueIndex:idx_waiter_table" json:"waiter_id"`
	TableID      snowflake.ID `gorm:"not null;uniqueIndex:idx_waiter_table;index" json:"table_id"`
	IsActive     bool         `gorm:"not null;default:true;index" json:"is_active"`
	AssignedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"assigned_at"`
	UnassignedAt *time.Time   `json:"unassigned_at,omitempty"`
}

func (WaiterTableAssignment) TableName() string { return "waiter_table_assignments" }

type TransferStatus string

const (
	TransferPending  TransferStatus = "pending"
	TransferAccepted TransferStatus = "accepted"
	TransferRejected TransferStatus = "rejected"
)

// TableTransferRequest is one ask to hand a table from one waiter to
// another (§4.5's transfer workflow).
type TableTransferRequest struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	FromWaiterID snowflake.ID   `gorm:"not null;index" json:"from_waiter_id"`
	ToWaiterID   snowflake.ID   `gorm:"not null;index" json:"to_waiter_id"`
	TableID      snowflake.ID   `gorm:"not null;index" json:"table_id"`
	Message      *string        `json:"message,omitempty"`
	Status       TransferStatus `gorm:"not null;default:pending;index" json:"status"`
	CreatedAt    time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
	ResolverID   *snowflake.ID  `json:"resolver_id,omitempty"`
}

func (TableTransferRequest) TableName() string { return "table_transfer_requests" }
