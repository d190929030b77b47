package realtime

// Event type constants, one per row of §4.6's event table.
const (
	EventOrderCreated        = "order.created"
	EventOrderStatusChanged  = "order.status_changed"
	EventOrderAutoAccepted   = "order.auto_accepted"
	EventSessionStatusChanged = "session.status_changed"
	EventWaiterCallCreated   = "waiter_call.created"
	EventWaiterCallConfirmed = "waiter_call.confirmed"
	EventWaiterCallCancelled = "waiter_call.cancelled"
	EventSupervisorCalled    = "supervisor.called"
	EventTransferRequested   = "table.transfer_requested"
	EventTransferAccepted    = "table.transfer_accepted"
	EventTransferRejected    = "table.transfer_rejected"
	EventModificationRequested = "modification.requested"
	EventModificationApproved  = "modification.approved"
	EventModificationRejected  = "modification.rejected"
	EventModificationApplied   = "modification.applied"
	EventTicketReprinted       = "ticket.reprinted"
	EventTicketEmailSent       = "ticket.email_sent"
)

// NotificationEvent builds the "notification.<audience>" type named in §4.6.
func NotificationEvent(audience string) string {
	return "notification." + audience
}
