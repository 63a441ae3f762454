// Package memory keeps the ledger collections in process. Transactions snapshot the ledger
// collections and restore them when the callback fails. Sweep markers and relay flags are
// written outside transactions and survive a rollback.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	mongodb "installment-ledger/internal/pkg/db/mongo"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/interfaces"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type state struct {
	installments map[primitive.ObjectID]models.Installment
	members      map[primitive.ObjectID]models.Member
	history      []models.CollectionHistory
	savings      []models.SavingsEntry
	collectors   map[primitive.ObjectID]models.Collector
}

func (s *state) clone() *state {
	out := &state{
		installments: make(map[primitive.ObjectID]models.Installment, len(s.installments)),
		members:      make(map[primitive.ObjectID]models.Member, len(s.members)),
		history:      append([]models.CollectionHistory(nil), s.history...),
		savings:      append([]models.SavingsEntry(nil), s.savings...),
		collectors:   make(map[primitive.ObjectID]models.Collector, len(s.collectors)),
	}
	for k, v := range s.installments {
		out.installments[k] = copyInstallment(v)
	}
	for k, v := range s.members {
		out.members[k] = v
	}
	for k, v := range s.collectors {
		out.collectors[k] = v
	}
	return out
}

func copyInstallment(inst models.Installment) models.Installment {
	inst.PaymentHistory = append([]models.PaymentEvent(nil), inst.PaymentHistory...)
	if inst.CollectionDate != nil {
		d := *inst.CollectionDate
		inst.CollectionDate = &d
	}
	return inst
}

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *state

	inProgress   map[primitive.ObjectID]time.Time
	staleUpdates int
	historyErr   error
}

var _ interfaces.TransactionRunner = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		data: &state{
			installments: map[primitive.ObjectID]models.Installment{},
			members:      map[primitive.ObjectID]models.Member{},
			collectors:   map[primitive.ObjectID]models.Collector{},
		},
		inProgress: map[primitive.ObjectID]time.Time{},
	}
}

// RunInTransaction serialises transactions and rolls the store back when cb fails.
func (s *Store) RunInTransaction(ctx context.Context, cb func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := cb(ctx); err != nil {
		s.mu.Lock()
		published := map[primitive.ObjectID]bool{}
		for _, h := range s.data.history {
			if h.PublishedToKafka {
				published[h.ID] = true
			}
		}
		for i := range snapshot.history {
			if published[snapshot.history[i].ID] {
				snapshot.history[i].PublishedToKafka = true
			}
		}
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailNextUpdates makes the next n revision-checked writes report a concurrent change.
func (s *Store) FailNextUpdates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleUpdates = n
}

// FailHistoryWrites makes every history insert fail with err until reset with nil.
func (s *Store) FailHistoryWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyErr = err
}

func (s *Store) AddMember(m models.Member) models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	s.data.members[m.ID] = m
	return m
}

func (s *Store) AddCollector(c models.Collector) models.Collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.data.collectors[c.ID] = c
	return c
}

func (s *Store) AddSavings(e models.SavingsEntry) models.SavingsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	s.data.savings = append(s.data.savings, e)
	return e
}

func (s *Store) Member(id primitive.ObjectID) models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.members[id]
}

func (s *Store) Installment(id primitive.ObjectID) models.Installment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyInstallment(s.data.installments[id])
}

func (s *Store) History() []models.CollectionHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CollectionHistory(nil), s.data.history...)
}

func (s *Store) Savings() []models.SavingsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SavingsEntry(nil), s.data.savings...)
}

func (s *Store) Installments() *InstallmentsRepo { return &InstallmentsRepo{s} }
func (s *Store) Members() *MembersRepo { return &MembersRepo{s} }
func (s *Store) CollectionHistory() *CollectionHistoryRepo { return &CollectionHistoryRepo{s} }
func (s *Store) SavingsEntries() *SavingsRepo { return &SavingsRepo{s} }
func (s *Store) Collectors() *CollectorsRepo { return &CollectorsRepo{s} }
func (s *Store) DeductionsInProgress() *DeductionsInProgressRepo { return &DeductionsInProgressRepo{s} }

type InstallmentsRepo struct{ s *Store }

var _ interfaces.InstallmentsRepositoryInterface = (*InstallmentsRepo)(nil)

func (r *InstallmentsRepo) CreateSeries(_ context.Context, series []models.Installment) ([]models.Installment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range series {
		if series[i].ID.IsZero() {
			series[i].ID = primitive.NewObjectID()
		}
		r.s.data.installments[series[i].ID] = copyInstallment(series[i])
	}
	return series, nil
}

func (r *InstallmentsRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Installment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inst, ok := r.s.data.installments[id]
	if !ok {
		return nil, error_handling.NewNotFoundError("installment", "id", id.Hex())
	}
	out := copyInstallment(inst)
	return &out, nil
}

func (r *InstallmentsRepo) GetByLoanGroupAndSequence(_ context.Context, loanGroupID string,
	sequence int) (*models.Installment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inst := range r.s.data.installments {
		if inst.IsActive && inst.LoanGroupID == loanGroupID && inst.SequenceNumber == sequence {
			out := copyInstallment(inst)
			return &out, nil
		}
	}
	return nil, error_handling.NewNotFoundError("installment", "loanGroupId/sequenceNumber",
		fmt.Sprintf("%s/%d", loanGroupID, sequence))
}

func (r *InstallmentsRepo) filter(keep func(models.Installment) bool, less func(a, b models.Installment) bool) []models.Installment {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Installment{}
	for _, inst := range r.s.data.installments {
		if keep(inst) {
			out = append(out, copyInstallment(inst))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *InstallmentsRepo) FindByLoanGroup(_ context.Context, loanGroupID string) ([]models.Installment, error) {
	return r.filter(
		func(i models.Installment) bool { return i.IsActive && i.LoanGroupID == loanGroupID },
		func(a, b models.Installment) bool { return a.SequenceNumber < b.SequenceNumber },
	), nil
}

func byDueDate(a, b models.Installment) bool {
	if !a.DueDate.Equal(b.DueDate) {
		return a.DueDate.Before(b.DueDate)
	}
	return a.SequenceNumber < b.SequenceNumber
}

func (r *InstallmentsRepo) FindUnpaidByMember(_ context.Context, memberID primitive.ObjectID) ([]models.Installment, error) {
	return r.filter(
		func(i models.Installment) bool { return i.IsActive && i.MemberID == memberID && i.Status.Unpaid() },
		byDueDate,
	), nil
}

func (r *InstallmentsRepo) FindOverdue(_ context.Context, before time.Time) ([]models.Installment, error) {
	return r.filter(
		func(i models.Installment) bool { return i.IsActive && i.Status.Unpaid() && i.DueDate.Before(before) },
		func(a, b models.Installment) bool {
			if a.MemberID != b.MemberID {
				return a.MemberID.Hex() < b.MemberID.Hex()
			}
			return byDueDate(a, b)
		},
	), nil
}

func (r *InstallmentsRepo) ActiveLoanGroupIDs(_ context.Context, memberID primitive.ObjectID) ([]string, error) {
	type group struct {
		id          string
		outstanding decimal.Decimal
		createdAt   time.Time
	}
	groups := map[string]*group{}

	r.s.mu.Lock()
	for _, inst := range r.s.data.installments {
		if inst.MemberID != memberID || !inst.Counted() {
			continue
		}
		g, ok := groups[inst.LoanGroupID]
		if !ok {
			g = &group{id: inst.LoanGroupID, outstanding: decimal.Zero, createdAt: inst.CreatedAt}
			groups[inst.LoanGroupID] = g
		}
		g.outstanding = g.outstanding.Add(inst.RemainingAmount)
		if inst.CreatedAt.Before(g.createdAt) {
			g.createdAt = inst.CreatedAt
		}
	}
	r.s.mu.Unlock()

	active := make([]*group, 0, len(groups))
	for _, g := range groups {
		if g.outstanding.IsPositive() {
			active = append(active, g)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].createdAt.Equal(active[j].createdAt) {
			return active[i].createdAt.Before(active[j].createdAt)
		}
		return active[i].id < active[j].id
	})
	ids := make([]string, 0, len(active))
	for _, g := range active {
		ids = append(ids, g.id)
	}
	return ids, nil
}

func (r *InstallmentsRepo) UpdateWithRevision(_ context.Context, inst *models.Installment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.staleUpdates > 0 {
		r.s.staleUpdates--
		return error_handling.ErrStaleRevision
	}
	stored, ok := r.s.data.installments[inst.ID]
	if !ok || stored.Revision != inst.Revision {
		return error_handling.ErrStaleRevision
	}
	inst.Revision++
	inst.UpdatedAt = time.Now()
	r.s.data.installments[inst.ID] = copyInstallment(*inst)
	return nil
}

type MembersRepo struct{ s *Store }

var _ interfaces.MembersRepositoryInterface = (*MembersRepo)(nil)

func (r *MembersRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.data.members[id]
	if !ok {
		return nil, error_handling.NewNotFoundError("member", "id", id.Hex())
	}
	return &m, nil
}

func (r *MembersRepo) ApplyAggregateDelta(_ context.Context, id primitive.ObjectID,
	delta models.MemberAggregateDelta) (*models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.data.members[id]
	if !ok {
		return nil, error_handling.NewNotFoundError("member", "id", id.Hex())
	}
	m.TotalPaid = m.TotalPaid.Add(delta.TotalPaid)
	m.TotalSavings = m.TotalSavings.Add(delta.TotalSavings)
	if delta.LastPaymentDate != nil {
		d := *delta.LastPaymentDate
		m.LastPaymentDate = &d
	}
	m.UpdatedAt = time.Now()
	r.s.data.members[id] = m
	return &m, nil
}

type CollectionHistoryRepo struct{ s *Store }

var _ interfaces.CollectionHistoryRepoInterface = (*CollectionHistoryRepo)(nil)

func (r *CollectionHistoryRepo) CreateEntries(_ context.Context,
	entries []models.CollectionHistory) ([]primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.historyErr != nil {
		return nil, r.s.historyErr
	}
	if len(entries) == 0 {
		return nil, nil
	}
	for _, e := range entries {
		if r.receiptTaken(e) {
			return nil, &error_handling.DuplicateCollectionError{
				MemberID:      e.MemberID.Hex(),
				InstallmentID: e.InstallmentID.Hex(),
				ReceiptNumber: e.ReceiptNumber,
			}
		}
	}
	ids := make([]primitive.ObjectID, len(entries))
	for i := range entries {
		if entries[i].ID.IsZero() {
			entries[i].ID = primitive.NewObjectID()
		}
		ids[i] = entries[i].ID
		r.s.data.history = append(r.s.data.history, entries[i])
	}
	return ids, nil
}

// receiptTaken mirrors the unique (memberId, receiptNumber) index on collection entries.
func (r *CollectionHistoryRepo) receiptTaken(e models.CollectionHistory) bool {
	if e.EntryType != models.EntryTypeCollection || e.ReceiptNumber == "" {
		return false
	}
	for _, h := range r.s.data.history {
		if h.EntryType == models.EntryTypeCollection && h.MemberID == e.MemberID && h.ReceiptNumber == e.ReceiptNumber {
			return true
		}
	}
	return false
}

func (r *CollectionHistoryRepo) ExistsForDay(_ context.Context, memberID, installmentID primitive.ObjectID,
	amount decimal.Decimal, dayStart, dayEnd time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, h := range r.s.data.history {
		if h.MemberID == memberID && h.InstallmentID == installmentID &&
			h.EntryType == models.EntryTypeCollection && h.Amount.Equal(amount) &&
			!h.Date.Before(dayStart) && h.Date.Before(dayEnd) {
			return true, nil
		}
	}
	return false, nil
}

func (r *CollectionHistoryRepo) ExistsByReceipt(_ context.Context, memberID primitive.ObjectID,
	receiptNumber string) (bool, error) {
	if receiptNumber == "" {
		return false, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, h := range r.s.data.history {
		if h.MemberID == memberID && h.ReceiptNumber == receiptNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *CollectionHistoryRepo) SumPaidByMember(_ context.Context, memberID primitive.ObjectID) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, h := range r.s.data.history {
		if h.MemberID == memberID &&
			(h.EntryType == models.EntryTypeCollection || h.EntryType == models.EntryTypeSavingsDeduction) {
			sum = sum.Add(h.Amount)
		}
	}
	return sum, nil
}

func (r *CollectionHistoryRepo) UpdatePublishToKafka(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.data.history {
		if r.s.data.history[i].ID == id {
			r.s.data.history[i].PublishedToKafka = true
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (r *CollectionHistoryRepo) UpdatePublishedToKafkaInBulk(_ context.Context, historyIDs []string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	failed := []string{}
	for _, hex := range historyIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return nil, err
		}
		found := false
		for i := range r.s.data.history {
			if r.s.data.history[i].ID == id {
				r.s.data.history[i].PublishedToKafka = true
				found = true
			}
		}
		if !found {
			failed = append(failed, hex)
		}
	}
	return failed, nil
}

// GetUnpublishedEntriesCursor mirrors the aggregation of the Mongo repository, including the
// join with the installment's position in its series.
func (r *CollectionHistoryRepo) GetUnpublishedEntriesCursor(_ context.Context, since string,
	_ int32) (*mongo.Cursor, error) {
	threshold, err := time.Parse("2006-01-02", since)
	if err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	entries := make([]models.CollectionHistory, 0)
	for _, h := range r.s.data.history {
		if !h.PublishedToKafka && !h.CreatedAt.Before(threshold) {
			entries = append(entries, h)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })

	docs := make([]interface{}, 0, len(entries))
	for _, h := range entries {
		doc := models.HistoryWithInstallment{
			ID:               h.ID,
			InstallmentID:    h.InstallmentID,
			MemberID:         h.MemberID,
			CollectorID:      h.CollectorID,
			BranchID:         h.BranchID,
			LoanGroupID:      h.LoanGroupID,
			SourceLoanGroup:  h.SourceLoanGroupID,
			Amount:           h.Amount,
			Date:             h.Date,
			ReceiptNumber:    h.ReceiptNumber,
			OutstandingAfter: h.OutstandingAfter,
			EntryType:        h.EntryType,
			PaymentMethod:    h.PaymentMethod,
			CreatedAt:        h.CreatedAt,
		}
		if inst, ok := r.s.data.installments[h.InstallmentID]; ok {
			doc.SequenceNumber = inst.SequenceNumber
			doc.TotalInSeries = inst.TotalInSeries
		}
		docs = append(docs, doc)
	}
	r.s.mu.Unlock()

	return mongo.NewCursorFromDocuments(docs, nil, mongodb.NewDecimalRegistry())
}

type SavingsRepo struct{ s *Store }

var _ interfaces.SavingsRepositoryInterface = (*SavingsRepo)(nil)

func (r *SavingsRepo) FindByMember(_ context.Context, memberID primitive.ObjectID) ([]models.SavingsEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.SavingsEntry{}
	for _, e := range r.s.data.savings {
		if e.MemberID == memberID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *SavingsRepo) CreateEntry(_ context.Context, entry *models.SavingsEntry) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.s.data.savings = append(r.s.data.savings, *entry)
	return entry.ID, nil
}

type CollectorsRepo struct{ s *Store }

var _ interfaces.CollectorsRepositoryInterface = (*CollectorsRepo)(nil)

func (r *CollectorsRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Collector, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.data.collectors[id]
	if !ok {
		return nil, error_handling.NewNotFoundError("collector", "id", id.Hex())
	}
	return &c, nil
}

type DeductionsInProgressRepo struct{ s *Store }

var _ interfaces.DeductionsInProgressRepoInterface = (*DeductionsInProgressRepo)(nil)

func (r *DeductionsInProgressRepo) CheckEntryExists(_ context.Context, memberID primitive.ObjectID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.inProgress[memberID]
	return ok, nil
}

func (r *DeductionsInProgressRepo) CreateEntry(_ context.Context, memberID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.inProgress[memberID]; ok {
		return &error_handling.LedgerBusyError{Key: memberID.Hex(), Err: errors.New("duplicate key")}
	}
	r.s.inProgress[memberID] = time.Now()
	return nil
}

func (r *DeductionsInProgressRepo) DeleteEntry(_ context.Context, memberID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.inProgress, memberID)
	return nil
}

// Locker is a process-local LockerInterface that fails fast when a key is held.
type Locker struct {
	mu   sync.Mutex
	held map[string]bool
}

var _ interfaces.LockerInterface = (*Locker)(nil)

func NewLocker() *Locker {
	return &Locker{held: map[string]bool{}}
}

func (l *Locker) Acquire(_ context.Context, key string) (func(ctx context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, &error_handling.LedgerBusyError{Key: key, Err: errors.New("lock held")}
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

// Hold takes key until the returned func is called.
func (l *Locker) Hold(key string) func() {
	release, _ := l.Acquire(context.Background(), key)
	return func() {
		if release != nil {
			_ = release(context.Background())
		}
	}
}
