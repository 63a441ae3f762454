package models

import (
	"fmt"
	"time"

	"installment-ledger/internal/pkg/consts"
)

const (
	CollectorCalendarKeyPattern = consts.CalendarCachePrefix + "%s" // collectorCalendar:<collectorId>
)

func CollectorCalendarKeyBuilder(collectorID string) string {
	return fmt.Sprintf(CollectorCalendarKeyPattern, collectorID)
}

func LoanGroupLockKey(loanGroupID string) string {
	return consts.LoanGroupLockPrefix + loanGroupID
}

func MemberLockKey(memberID string) string {
	return consts.MemberLockPrefix + memberID
}

// CachedCollectorCalendar is the cached form of a collector's visiting calendar.
type CachedCollectorCalendar struct {
	AssignedDay string      `json:"assignedDay"`
	VisitDates  []time.Time `json:"visitDates"`
}
