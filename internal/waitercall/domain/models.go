package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type CallType string

const (
	CallTypeService         CallType = "service"
	CallTypeCheckoutRequest CallType = "checkout_request"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// WaiterCall is a floor-raised request for waiter attention (§4.3, §4.6
// "waiter_call.*"). Distinct from a SupervisorCall, which is a one-shot
// employee-raised alert, not a stateful request.
type WaiterCall struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	SessionID   snowflake.ID  `gorm:"not null;index" json:"session_id"`
	TableCode   string        `gorm:"column:table_code" json:"table_code,omitempty"`
	CallType    CallType      `gorm:"not null" json:"call_type"`
	Note        string        `json:"note,omitempty"`
	Status      Status        `gorm:"not null;default:pending" json:"status"`
	WaiterID    *snowflake.ID `json:"waiter_id,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
}

func (WaiterCall) TableName() string { return "waiter_calls" }

// SupervisorCall is a one-shot alert raised by an employee, not a stateful
// workflow (§4.6 "supervisor.called"; SPEC_FULL's supplemented feature).
type SupervisorCall struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	EmployeeID snowflake.ID  `gorm:"not null;index" json:"employee_id"`
	TableCode  string        `json:"table_code,omitempty"`
	OrderID    *snowflake.ID `json:"order_id,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SupervisorCall) TableName() string { return "supervisor_calls" }
