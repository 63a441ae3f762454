package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "collectorCalendar:abc", CollectorCalendarKeyBuilder("abc"))
	assert.Equal(t, "lock:loanGroup:g-1", LoanGroupLockKey("g-1"))
	assert.Equal(t, "lock:member:m-1", MemberLockKey("m-1"))
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusPending.Unpaid())
	assert.True(t, StatusPartial.Unpaid())
	assert.True(t, StatusMissed.Unpaid())
	assert.False(t, StatusCollected.Unpaid())
	assert.False(t, StatusCancelled.Unpaid())

	assert.True(t, FrequencyMonthly.Valid())
	assert.False(t, Frequency("yearly").Valid())

	inst := Installment{IsActive: true, Status: StatusPending}
	assert.True(t, inst.Counted())
	inst.Status = StatusCancelled
	assert.False(t, inst.Counted())
}
