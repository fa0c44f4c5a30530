package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/mcclellann/loantracker/pkg/store"
)

// MockStore is a simple in-memory implementation of the Storage interface for testing.
// WithTx works on a copy of the data and swaps it in only on success, so a
// failing unit of work leaves no trace. Units of work are serialized.
type MockStore struct {
	mu     sync.Mutex
	data   *mockData
	failOn map[string]error // method name -> injected error
}

type mockData struct {
	loans       map[uuid.UUID]*models.LoanAccount
	lines       map[uuid.UUID]*models.LedgerLine
	payments    map[uuid.UUID]*models.PaymentRecord
	proofs      map[uuid.UUID]*models.PaymentProof // keyed by payment id
	users       map[uuid.UUID]*models.User
	images      map[uuid.UUID]*models.Image
	assignments []*models.Assignment
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: &mockData{
			loans:    make(map[uuid.UUID]*models.LoanAccount),
			lines:    make(map[uuid.UUID]*models.LedgerLine),
			payments: make(map[uuid.UUID]*models.PaymentRecord),
			proofs:   make(map[uuid.UUID]*models.PaymentProof),
			users:    make(map[uuid.UUID]*models.User),
			images:   make(map[uuid.UUID]*models.Image),
		},
		failOn: make(map[string]error),
	}
}

// FailOn makes every later call to method return err.
func (m *MockStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[method] = err
}

func (m *MockStore) fail(method string) error {
	return m.failOn[method]
}

func cloneMap[T any](src map[uuid.UUID]*T) map[uuid.UUID]*T {
	dst := make(map[uuid.UUID]*T, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

func (d *mockData) clone() *mockData {
	c := &mockData{
		loans:    cloneMap(d.loans),
		lines:    cloneMap(d.lines),
		payments: cloneMap(d.payments),
		proofs:   cloneMap(d.proofs),
		users:    cloneMap(d.users),
		images:   cloneMap(d.images),
	}
	for _, a := range d.assignments {
		cp := *a
		c.assignments = append(c.assignments, &cp)
	}
	for _, l := range c.lines {
		if l.IsPaid != nil {
			l.IsPaid = models.Bool(*l.IsPaid)
		}
	}
	return c
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

func (m *MockStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Begin"); err != nil {
		return err
	}
	work := m.data.clone()
	if err := fn(&mockTx{m: m, d: work}); err != nil {
		return err
	}
	if err := m.fail("Commit"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	m.data = work
	return nil
}

// mockTx implements store.Tx over a working copy.
type mockTx struct {
	m *MockStore
	d *mockData
}

func (t *mockTx) GetLoanAccount(ctx context.Context, id uuid.UUID) (*models.LoanAccount, error) {
	if err := t.m.fail("GetLoanAccount"); err != nil {
		return nil, err
	}
	loan, ok := t.d.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan: %w", store.ErrNotFound)
	}
	return copyOf(loan), nil
}

func (t *mockTx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := t.d.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	return copyOf(u), nil
}

func (t *mockTx) GetLedgerLine(ctx context.Context, id uuid.UUID) (*models.LedgerLine, error) {
	line, ok := t.d.lines[id]
	if !ok {
		return nil, fmt.Errorf("ledger line: %w", store.ErrNotFound)
	}
	return copyOf(line), nil
}

func (t *mockTx) GetPaymentRecord(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	p, ok := t.d.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment: %w", store.ErrNotFound)
	}
	c := copyOf(p)
	_, c.HasProof = t.d.proofs[id]
	return c, nil
}

func (t *mockTx) InsertPaymentRecord(ctx context.Context, p *models.PaymentRecord) error {
	if err := t.m.fail("InsertPaymentRecord"); err != nil {
		return err
	}
	t.d.payments[p.ID] = copyOf(p)
	return nil
}

func (t *mockTx) InsertPaymentProof(ctx context.Context, proof *models.PaymentProof) error {
	if err := t.m.fail("InsertPaymentProof"); err != nil {
		return err
	}
	t.d.proofs[proof.PaymentID] = copyOf(proof)
	return nil
}

func (t *mockTx) UpdatePaymentRecord(ctx context.Context, p *models.PaymentRecord) error {
	if err := t.m.fail("UpdatePaymentRecord"); err != nil {
		return err
	}
	if _, ok := t.d.payments[p.ID]; !ok {
		return fmt.Errorf("payment: %w", store.ErrNotFound)
	}
	t.d.payments[p.ID] = copyOf(p)
	return nil
}

func (t *mockTx) UpdateLedgerLine(ctx context.Context, line *models.LedgerLine) error {
	if err := t.m.fail("UpdateLedgerLine"); err != nil {
		return err
	}
	if _, ok := t.d.lines[line.ID]; !ok {
		return fmt.Errorf("ledger line: %w", store.ErrNotFound)
	}
	t.d.lines[line.ID] = copyOf(line)
	return nil
}

func (t *mockTx) UpdateLoanAccount(ctx context.Context, loan *models.LoanAccount) error {
	if err := t.m.fail("UpdateLoanAccount"); err != nil {
		return err
	}
	if _, ok := t.d.loans[loan.ID]; !ok {
		return fmt.Errorf("loan: %w", store.ErrNotFound)
	}
	t.d.loans[loan.ID] = copyOf(loan)
	return nil
}

func (t *mockTx) AnyUnpaidLedgerLines(ctx context.Context, loanID uuid.UUID) (bool, error) {
	if err := t.m.fail("AnyUnpaidLedgerLines"); err != nil {
		return false, err
	}
	for _, line := range t.d.lines {
		if line.LoanID == loanID && !line.Settled() {
			return true, nil
		}
	}
	return false, nil
}

func (t *mockTx) Savepoint(ctx context.Context, fn func() error) error {
	saved := t.d.clone()
	if err := fn(); err != nil {
		*t.d = *saved
		return err
	}
	return nil
}

// read runs fn against the committed data.
func (m *MockStore) read() *mockTx {
	return &mockTx{m: m, d: m.data}
}

func (m *MockStore) CreateLoanAccount(ctx context.Context, loan *models.LoanAccount, lines []*models.LedgerLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateLoanAccount"); err != nil {
		return err
	}
	m.data.loans[loan.ID] = copyOf(loan)
	for _, line := range lines {
		m.data.lines[line.ID] = copyOf(line)
	}
	return nil
}

func (m *MockStore) GetLoanAccount(ctx context.Context, id uuid.UUID) (*models.LoanAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().GetLoanAccount(ctx, id)
}

func (m *MockStore) ListLoansForBorrower(ctx context.Context, borrowerID uuid.UUID, statuses ...models.LoanStatus) ([]*models.LoanAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LoanAccount
	for _, loan := range m.data.loans {
		if loan.BorrowerID != borrowerID {
			continue
		}
		match := len(statuses) == 0
		for _, s := range statuses {
			if loan.Status == s {
				match = true
			}
		}
		if match {
			out = append(out, copyOf(loan))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStore) ListOpenLoans(ctx context.Context) ([]*models.LoanAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListOpenLoans"); err != nil {
		return nil, err
	}
	var out []*models.LoanAccount
	for _, loan := range m.data.loans {
		if loan.Status.IsOpen() {
			out = append(out, copyOf(loan))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStore) SetLoanStatus(ctx context.Context, id uuid.UUID, from, to models.LoanStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.data.loans[id]
	if !ok || loan.Status != from {
		return false, nil
	}
	loan.Status = to
	return true, nil
}

func (m *MockStore) ListLedgerLines(ctx context.Context, loanID uuid.UUID) ([]*models.LedgerLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LedgerLine
	for _, line := range m.data.lines {
		if line.LoanID == loanID {
			out = append(out, copyOf(line))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (m *MockStore) GetPaymentRecord(ctx context.Context, id uuid.UUID) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().GetPaymentRecord(ctx, id)
}

func (m *MockStore) listPayments(keep func(*models.PaymentRecord) bool) []*models.PaymentRecord {
	var out []*models.PaymentRecord
	for id, p := range m.data.payments {
		if keep(p) {
			c := copyOf(p)
			_, c.HasProof = m.data.proofs[id]
			out = append(out, c)
		}
	}
	return out
}

func (m *MockStore) ListPendingPayments(ctx context.Context) ([]*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.listPayments(func(p *models.PaymentRecord) bool { return p.Pending() })
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (m *MockStore) ListPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.listPayments(func(p *models.PaymentRecord) bool { return p.LoanID == loanID })
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	return out, nil
}

func (m *MockStore) ListPaymentsForBorrower(ctx context.Context, borrowerID uuid.UUID) ([]*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.listPayments(func(p *models.PaymentRecord) bool {
		loan, ok := m.data.loans[p.LoanID]
		return ok && loan.BorrowerID == borrowerID
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	return out, nil
}

func (m *MockStore) GetPaymentProof(ctx context.Context, paymentID uuid.UUID) (*models.PaymentProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proof, ok := m.data.proofs[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment proof: %w", store.ErrNotFound)
	}
	return copyOf(proof), nil
}

func (m *MockStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.users[u.ID] = copyOf(u)
	return nil
}

func (m *MockStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().GetUser(ctx, id)
}

func (m *MockStore) GetUserByUserName(ctx context.Context, userName string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.data.users {
		if u.UserName == userName {
			return copyOf(u), nil
		}
	}
	return nil, fmt.Errorf("user: %w", store.ErrNotFound)
}

func (m *MockStore) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.users[u.ID]; !ok {
		return fmt.Errorf("user: %w", store.ErrNotFound)
	}
	m.data.users[u.ID] = copyOf(u)
	return nil
}

func (m *MockStore) SaveImage(ctx context.Context, img *models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.images[img.UserID] = copyOf(img)
	return nil
}

func (m *MockStore) GetImage(ctx context.Context, userID uuid.UUID) (*models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.data.images[userID]
	if !ok {
		return nil, fmt.Errorf("image: %w", store.ErrNotFound)
	}
	return copyOf(img), nil
}

func (m *MockStore) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.assignments = append(m.data.assignments, copyOf(a))
	return nil
}

func (m *MockStore) ListAssignmentsForCollector(ctx context.Context, collectorID uuid.UUID, activeOnly bool) ([]*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Assignment
	for _, a := range m.data.assignments {
		if a.CollectorID != collectorID {
			continue
		}
		if activeOnly && a.Status != models.AssignmentStatusActive {
			continue
		}
		out = append(out, copyOf(a))
	}
	return out, nil
}

func (m *MockStore) IsLoanAssigned(ctx context.Context, collectorID, loanID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.data.assignments {
		if a.CollectorID == collectorID && a.LoanID == loanID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) Close() error {
	return nil
}
