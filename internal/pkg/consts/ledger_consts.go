package consts

const (
	DateFormat     = "2006-01-02"
	MonthKeyFormat = "2006-01"

	ActionAck    = "ACK"
	ActionNack   = "NACK"
	ActionIgnore = "IGNORE"

	AssignedDayDaily = "Daily"

	ReceiptPrefix = "RCP"

	LoanGroupLockPrefix = "lock:loanGroup:"
	MemberLockPrefix    = "lock:member:"
	CalendarCachePrefix = "collectorCalendar:"

	NotificationCollectionReceived = "CollectionReceived"
	NotificationSavingsDeducted    = "SavingsDeducted"
	NotificationLoanCompleted      = "LoanGroupCompleted"
)
