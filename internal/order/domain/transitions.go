package domain

import "github.com/prontocore/kitchen/internal/authzscope"

// Action names the side-effect routine a transition triggers (§4.1).
type Action string

const (
	ActionAcceptOrQueue       Action = "accept_or_queue"
	ActionKitchenStart        Action = "kitchen_start"
	ActionSkipKitchen         Action = "skip_kitchen"
	ActionKitchenComplete     Action = "kitchen_complete"
	ActionDeliver             Action = "deliver"
	ActionMarkAwaitingPayment Action = "mark_awaiting_payment"
	ActionPayDirect           Action = "pay_direct"
	ActionPay                 Action = "pay"
	ActionCancel              Action = "cancel"
)

// edge is the (from, to) key of the fixed transition table.
type edge struct {
	from WorkflowStatus
	to   WorkflowStatus
}

// Policy is the record governing one legal transition edge (§4.1).
type Policy struct {
	Action                Action
	AllowedScopes         []authzscope.Scope
	RequiresJustification bool
}

// transitionTable is the fixed, finite state graph (§1 Non-goals: not a
// general workflow engine). Every legal (from, to) pair appears exactly
// once here; anything absent is an illegal transition.
var transitionTable = map[edge]Policy{
	{StatusNew, StatusQueued}: {
		Action:        ActionAcceptOrQueue,
		AllowedScopes: []authzscope.Scope{authzscope.Waiter, authzscope.Admin, authzscope.System},
	},
	{StatusNew, StatusCancelled}: {
		Action:        ActionCancel,
		AllowedScopes: []authzscope.Scope{authzscope.Client, authzscope.Waiter, authzscope.Admin, authzscope.System},
	},
	{StatusQueued, StatusPreparing}: {
		Action:        ActionKitchenStart,
		AllowedScopes: []authzscope.Scope{authzscope.Chef, authzscope.Admin, authzscope.System},
	},
	{StatusQueued, StatusReady}: {
		Action:        ActionSkipKitchen,
		AllowedScopes: []authzscope.Scope{authzscope.System},
	},
	{StatusQueued, StatusCancelled}: {
		Action:        ActionCancel,
		AllowedScopes: []authzscope.Scope{authzscope.Client, authzscope.Waiter, authzscope.Admin, authzscope.System},
	},
	{StatusPreparing, StatusReady}: {
		Action:        ActionKitchenComplete,
		AllowedScopes: []authzscope.Scope{authzscope.Chef, authzscope.Admin, authzscope.System},
	},
	{StatusPreparing, StatusCancelled}: {
		Action:                ActionCancel,
		AllowedScopes:         []authzscope.Scope{authzscope.Waiter, authzscope.Admin, authzscope.System},
		RequiresJustification: true,
	},
	{StatusReady, StatusDelivered}: {
		Action:        ActionDeliver,
		AllowedScopes: []authzscope.Scope{authzscope.Waiter, authzscope.Admin, authzscope.System},
	},
	{StatusReady, StatusCancelled}: {
		Action:                ActionCancel,
		AllowedScopes:         []authzscope.Scope{authzscope.Admin, authzscope.System},
		RequiresJustification: true,
	},
	{StatusDelivered, StatusAwaitingPayment}: {
		Action:        ActionMarkAwaitingPayment,
		AllowedScopes: []authzscope.Scope{authzscope.Cashier, authzscope.Admin, authzscope.System},
	},
	{StatusDelivered, StatusPaid}: {
		Action:                ActionPayDirect,
		AllowedScopes:         []authzscope.Scope{authzscope.Admin, authzscope.System},
		RequiresJustification: true,
	},
	{StatusDelivered, StatusCancelled}: {
		Action:                ActionCancel,
		AllowedScopes:         []authzscope.Scope{authzscope.Admin, authzscope.System},
		RequiresJustification: true,
	},
	{StatusAwaitingPayment, StatusPaid}: {
		Action:        ActionPay,
		AllowedScopes: []authzscope.Scope{authzscope.Cashier, authzscope.Admin, authzscope.System},
	},
	{StatusAwaitingPayment, StatusCancelled}: {
		Action:                ActionCancel,
		AllowedScopes:         []authzscope.Scope{authzscope.Admin, authzscope.System},
		RequiresJustification: true,
	},
}

// LookupPolicy returns the policy governing (from, to), or false if no such
// edge exists in the fixed table.
func LookupPolicy(from, to WorkflowStatus) (Policy, bool) {
	p, ok := transitionTable[edge{from, to}]
	return p, ok
}

// IsTerminal reports whether status has no outgoing edges (§4.1).
func IsTerminal(status WorkflowStatus) bool {
	return status == StatusPaid || status == StatusCancelled
}

// RequiresWaiter mirrors the §4.1 post-condition: once an order reaches any
// of these statuses, waiter_id must be set.
func RequiresWaiter(status WorkflowStatus) bool {
	switch status {
	case StatusQueued, StatusPreparing, StatusReady, StatusDelivered, StatusAwaitingPayment, StatusPaid:
		return true
	default:
		return false
	}
}
