package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/store/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func seedInstallment(t *testing.T, s *Store, memberID primitive.ObjectID, group string, seq int,
	due time.Time, remaining int64) models.Installment {
	t.Helper()
	created, err := s.Installments().CreateSeries(context.Background(), []models.Installment{{
		LoanGroupID:     group,
		SequenceNumber:  seq,
		TotalInSeries:   3,
		MemberID:        memberID,
		Amount:          decimal.NewFromInt(100),
		PaidAmount:      decimal.NewFromInt(100 - remaining),
		RemainingAmount: decimal.NewFromInt(remaining),
		Status:          models.StatusPending,
		DueDate:         due,
		IsActive:        true,
	}})
	require.NoError(t, err)
	return created[0]
}

func TestRunInTransaction_RollsBackLedgerWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	member := s.AddMember(models.Member{TotalPaid: decimal.Zero, TotalSavings: decimal.Zero})
	boom := errors.New("boom")

	var historyID primitive.ObjectID
	require.NoError(t, s.RunInTransaction(ctx, func(ctx context.Context) error {
		ids, err := s.CollectionHistory().CreateEntries(ctx, []models.CollectionHistory{{MemberID: member.ID}})
		historyID = ids[0]
		return err
	}))

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := s.Members().ApplyAggregateDelta(ctx, member.ID, models.MemberAggregateDelta{
			TotalPaid: decimal.NewFromInt(50), TotalSavings: decimal.Zero,
		})
		require.NoError(t, err)
		// writes made outside the transaction survive the rollback
		require.NoError(t, s.CollectionHistory().UpdatePublishToKafka(ctx, historyID))
		require.NoError(t, s.DeductionsInProgress().CreateEntry(ctx, member.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, s.Member(member.ID).TotalPaid.IsZero())
	require.Len(t, s.History(), 1)
	assert.True(t, s.History()[0].PublishedToKafka)
	exists, _ := s.DeductionsInProgress().CheckEntryExists(ctx, member.ID)
	assert.True(t, exists)
}

func TestCreateEntries_ReceiptUniquePerMember(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	member := s.AddMember(models.Member{TotalPaid: decimal.Zero, TotalSavings: decimal.Zero})
	other := s.AddMember(models.Member{TotalPaid: decimal.Zero, TotalSavings: decimal.Zero})
	collection := func(memberID primitive.ObjectID, receipt string) []models.CollectionHistory {
		return []models.CollectionHistory{{MemberID: memberID, EntryType: models.EntryTypeCollection, ReceiptNumber: receipt}}
	}

	_, err := s.CollectionHistory().CreateEntries(ctx, collection(member.ID, "R-1"))
	require.NoError(t, err)

	_, err = s.CollectionHistory().CreateEntries(ctx, collection(member.ID, "R-1"))
	assert.True(t, error_handling.IsDuplicate(err))

	_, err = s.CollectionHistory().CreateEntries(ctx, collection(other.ID, "R-1"))
	assert.NoError(t, err)

	// cascade entries and blank receipts are outside the index
	_, err = s.CollectionHistory().CreateEntries(ctx, []models.CollectionHistory{
		{MemberID: member.ID, EntryType: models.EntryTypeCascade, ReceiptNumber: "R-1"},
		{MemberID: member.ID, EntryType: models.EntryTypeCollection},
		{MemberID: member.ID, EntryType: models.EntryTypeCollection},
	})
	assert.NoError(t, err)
	assert.Len(t, s.History(), 5)
}

func TestUpdateWithRevision(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	inst := seedInstallment(t, s, primitive.NewObjectID(), "g", 1, time.Now(), 100)

	stale := inst
	inst.Status = models.StatusPartial
	require.NoError(t, s.Installments().UpdateWithRevision(ctx, &inst))
	assert.Equal(t, int64(1), inst.Revision)

	stale.Status = models.StatusCollected
	assert.ErrorIs(t, s.Installments().UpdateWithRevision(ctx, &stale), error_handling.ErrStaleRevision)

	s.FailNextUpdates(1)
	assert.ErrorIs(t, s.Installments().UpdateWithRevision(ctx, &inst), error_handling.ErrStaleRevision)
	assert.NoError(t, s.Installments().UpdateWithRevision(ctx, &inst))
	assert.Equal(t, models.StatusPartial, s.Installment(inst.ID).Status)
}

func TestInstallmentQueries(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	member := primitive.NewObjectID()
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	a1 := seedInstallment(t, s, member, "A", 1, day.AddDate(0, 0, -7), 100)
	seedInstallment(t, s, member, "A", 2, day, 100)
	seedInstallment(t, s, member, "B", 1, day.AddDate(0, 0, -1), 0)

	overdue, err := s.Installments().FindOverdue(ctx, day)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, a1.ID, overdue[0].ID)

	ids, err := s.Installments().ActiveLoanGroupIDs(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids)

	bySeq, err := s.Installments().GetByLoanGroupAndSequence(ctx, "A", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, bySeq.SequenceNumber)

	_, err = s.Installments().GetByID(ctx, primitive.NewObjectID())
	assert.True(t, error_handling.IsNotFound(err))
}

func TestUnpublishedCursorJoinsSeriesPosition(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	member := primitive.NewObjectID()
	inst := seedInstallment(t, s, member, "A", 2, time.Now(), 100)
	created := time.Date(2026, 10, 10, 8, 0, 0, 0, time.UTC)

	_, err := s.CollectionHistory().CreateEntries(ctx, []models.CollectionHistory{
		{MemberID: member, InstallmentID: inst.ID, LoanGroupID: "A", Amount: decimal.NewFromInt(40), CreatedAt: created},
		{MemberID: member, InstallmentID: inst.ID, LoanGroupID: "A", Amount: decimal.NewFromInt(10),
			CreatedAt: created, PublishedToKafka: true},
		{MemberID: member, LoanGroupID: "A", Amount: decimal.NewFromInt(5), CreatedAt: created.AddDate(0, 0, -30)},
	})
	require.NoError(t, err)

	cursor, err := s.CollectionHistory().GetUnpublishedEntriesCursor(ctx, "2026-10-01", 10)
	require.NoError(t, err)
	var docs []models.HistoryWithInstallment
	require.NoError(t, cursor.All(ctx, &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, 2, docs[0].SequenceNumber)
	assert.Equal(t, 3, docs[0].TotalInSeries)
	assert.True(t, docs[0].Amount.Equal(decimal.NewFromInt(40)))
}

func TestDeductionsInProgressMarker(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	member := primitive.NewObjectID()

	require.NoError(t, s.DeductionsInProgress().CreateEntry(ctx, member))
	err := s.DeductionsInProgress().CreateEntry(ctx, member)
	assert.True(t, error_handling.IsBusy(err))
	require.NoError(t, s.DeductionsInProgress().DeleteEntry(ctx, member))
	exists, err := s.DeductionsInProgress().CheckEntryExists(ctx, member)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocker(t *testing.T) {
	l := NewLocker()
	release := l.Hold("k")
	_, err := l.Acquire(context.Background(), "k")
	assert.True(t, error_handling.IsBusy(err))
	release()
	unlock, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	assert.NoError(t, unlock(context.Background()))
}
