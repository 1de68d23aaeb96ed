package notifications

const (
	TypeLeaveApproved  = "leave_approved"
	TypeLeaveDeclined  = "leave_declined"
	TypeLeaveCancelled = "leave_cancelled"
)
