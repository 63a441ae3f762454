package ledger

import (
	"context"
	"errors"
	"testing"

	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/store/impl/memory"

	"github.com/stretchr/testify/assert"
)

func TestExecutor_RetriesOnlyStaleRevisions(t *testing.T) {
	exec := NewExecutor(memory.NewLocker(), memory.NewStore(), 2)

	calls := 0
	err := exec.Run(context.Background(), "lock:loanGroup:g", "g", func(context.Context) error {
		calls++
		if calls < 3 {
			return error_handling.ErrStaleRevision
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = exec.Run(context.Background(), "lock:loanGroup:g", "g", func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestExecutor_ExhaustedRetries(t *testing.T) {
	exec := NewExecutor(memory.NewLocker(), memory.NewStore(), 1)

	calls := 0
	err := exec.Run(context.Background(), "lock:loanGroup:g", "g", func(context.Context) error {
		calls++
		return error_handling.ErrStaleRevision
	})

	assert.True(t, error_handling.IsInconsistentState(err))
	assert.Equal(t, 2, calls)
}

func TestExecutor_ReleasesLock(t *testing.T) {
	locker := memory.NewLocker()
	exec := NewExecutor(locker, memory.NewStore(), 0)

	_ = exec.Run(context.Background(), "k", "g", func(context.Context) error { return errors.New("fail") })
	err := exec.Run(context.Background(), "k", "g", func(context.Context) error { return nil })

	assert.NoError(t, err)
}

func TestExecutor_Busy(t *testing.T) {
	locker := memory.NewLocker()
	release := locker.Hold("k")
	defer release()
	exec := NewExecutor(locker, memory.NewStore(), 0)

	err := exec.Run(context.Background(), "k", "g", func(context.Context) error { return nil })

	assert.True(t, error_handling.IsBusy(err))
}
