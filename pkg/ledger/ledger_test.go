package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loantracker/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store    *MockStore
	ledger   *Ledger
	borrower *models.User
	loan     *models.LoanAccount
	lines    []*models.LedgerLine
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newFixture seeds a borrower with one Active loan. Each entry of dues becomes
// an unpaid line, the first due a month before testNow and then monthly.
func newFixture(t *testing.T, dues ...string) *fixture {
	t.Helper()
	ms := NewMockStore()
	ctx := context.Background()

	borrower := &models.User{ID: uuid.New(), UserName: "09171234567", FullName: "Maria Santos", Role: models.RoleClient, CreatedAt: testNow}
	require.NoError(t, ms.CreateUser(ctx, borrower))

	loan := &models.LoanAccount{
		ID:          uuid.New(),
		BorrowerID:  borrower.ID,
		Description: "Personal Loan",
		Principal:   dec("1000"),
		Interest:    dec("100"),
		Total:       dec("1100"),
		TermMonths:  len(dues),
		Status:      models.LoanStatusActive,
		CreatedAt:   testNow.AddDate(0, -2, 0),
		UpdatedAt:   testNow.AddDate(0, -2, 0),
	}
	var lines []*models.LedgerLine
	for i, due := range dues {
		lines = append(lines, &models.LedgerLine{
			ID:           uuid.New(),
			LoanID:       loan.ID,
			DueDate:      testNow.AddDate(0, i-1, 0),
			PrincipalDue: dec(due),
			TotalDue:     dec(due),
			IsPaid:       models.Bool(false),
			UpdatedAt:    loan.CreatedAt,
		})
	}
	require.NoError(t, ms.CreateLoanAccount(ctx, loan, lines))

	return &fixture{
		store:    ms,
		ledger:   NewLedger(ms, nil, WithClock(func() time.Time { return testNow })),
		borrower: borrower,
		loan:     loan,
		lines:    lines,
	}
}

func (f *fixture) submit(t *testing.T, line *models.LedgerLine, amount string) *models.PaymentRecord {
	t.Helper()
	res, err := f.ledger.SubmitPayment(context.Background(), SubmitPaymentRequest{
		LoanID:       f.loan.ID,
		UserID:       f.borrower.ID,
		LedgerLineID: line.ID,
		Amount:       dec(amount),
	})
	require.NoError(t, err)
	return res.Payment
}

func (f *fixture) approve(paymentID uuid.UUID) (*DecisionResult, error) {
	return f.ledger.DecidePayment(context.Background(), DecisionRequest{PaymentID: paymentID, Approver: "clerk.ana", Approved: true})
}

func (f *fixture) line(t *testing.T, id uuid.UUID) *models.LedgerLine {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	line, err := f.store.read().GetLedgerLine(context.Background(), id)
	require.NoError(t, err)
	return line
}

func (f *fixture) payment(t *testing.T, id uuid.UUID) *models.PaymentRecord {
	t.Helper()
	p, err := f.store.GetPaymentRecord(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) loanStatus(t *testing.T) models.LoanStatus {
	t.Helper()
	loan, err := f.store.GetLoanAccount(context.Background(), f.loan.ID)
	require.NoError(t, err)
	return loan.Status
}

func TestValidate(t *testing.T) {
	loan := &models.LoanAccount{ID: uuid.New()}
	user := &models.User{ID: uuid.New()}
	line := &models.LedgerLine{ID: uuid.New(), LoanID: loan.ID, TotalDue: dec("500.00"), IsPaid: models.Bool(false)}
	check := PaymentCheck{LoanID: loan.ID, UserID: user.ID, LedgerLineID: line.ID, Amount: dec("100")}

	tests := []struct {
		name   string
		loan   *models.LoanAccount
		user   *models.User
		line   *models.LedgerLine
		amount string
		kind   Kind
		entity string
	}{
		{name: "missing loan", user: user, line: line, amount: "100", kind: KindNotFound, entity: "Loan"},
		{name: "missing user", loan: loan, line: line, amount: "100", kind: KindNotFound, entity: "User"},
		{name: "missing line", loan: loan, user: user, amount: "100", kind: KindNotFound, entity: "LedgerLine"},
		{name: "line of another loan", loan: loan, user: user, line: &models.LedgerLine{ID: line.ID, LoanID: uuid.New(), TotalDue: dec("500")}, amount: "100", kind: KindNotFound, entity: "LedgerLine"},
		{name: "settled line", loan: loan, user: user, line: &models.LedgerLine{ID: line.ID, LoanID: loan.ID, IsPaid: models.Bool(true)}, amount: "100", kind: KindAlreadySettled, entity: "LedgerLine"},
		{name: "overpayment", loan: loan, user: user, line: line, amount: "500.01", kind: KindInvalidRequest, entity: "Amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := check
			c.Amount = dec(tt.amount)
			err := Validate(tt.loan, tt.user, tt.line, c)
			require.Error(t, err)
			var le *Error
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.kind, le.Kind)
			assert.Equal(t, tt.entity, le.Entity)
		})
	}

	t.Run("exact due rounds to centavos", func(t *testing.T) {
		c := check
		c.Amount = dec("500.004")
		assert.NoError(t, Validate(loan, user, line, c))
	})
	t.Run("null paid flag accepts payment", func(t *testing.T) {
		nullLine := *line
		nullLine.IsPaid = nil
		assert.NoError(t, Validate(loan, user, &nullLine, check))
	})
}

func TestValidate_OverpaymentMessageFormatsMoney(t *testing.T) {
	loan := &models.LoanAccount{ID: uuid.New()}
	line := &models.LedgerLine{ID: uuid.New(), LoanID: loan.ID, TotalDue: dec("1250")}
	err := Validate(loan, &models.User{}, line, PaymentCheck{Amount: dec("1300.5")})
	require.Error(t, err)
	assert.Equal(t, "Payment amount ₱1,300.50 exceeds total due ₱1,250.00.", err.Error())
}

func TestSubmitPayment_CreatesPendingRecordWithProof(t *testing.T) {
	f := newFixture(t, "500", "600")
	ctx := context.Background()

	res, err := f.ledger.SubmitPayment(ctx, SubmitPaymentRequest{
		LoanID:       f.loan.ID,
		UserID:       f.borrower.ID,
		LedgerLineID: f.lines[0].ID,
		Amount:       dec("200"),
		Proof:        &ProofUpload{Data: []byte("jpeg"), ContentType: "image/png", FileName: "gcash.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultReviewTurnaround, res.EstimatedApprovalTime)
	assert.True(t, res.HasReceipt)

	stored := f.payment(t, res.Payment.ID)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Equal(t, testNow, stored.SubmittedAt)
	assert.Equal(t, testNow, stored.PaymentDate)
	assert.Nil(t, stored.ApprovedAt)
	assert.True(t, stored.HasProof)
	assert.Contains(t, stored.Remarks, "Awaiting approval.")
	assert.Contains(t, stored.Remarks, "₱200.00")

	proof, err := f.ledger.PaymentProof(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", proof.ContentType)

	// Submission never touches the ledger.
	line := f.line(t, f.lines[0].ID)
	assert.True(t, line.TotalDue.Equal(dec("500")))
	assert.False(t, line.Settled())
}

func TestSubmitPayment_EmptyProofIsIgnored(t *testing.T) {
	f := newFixture(t, "500")

	res, err := f.ledger.SubmitPayment(context.Background(), SubmitPaymentRequest{
		LoanID:       f.loan.ID,
		UserID:       f.borrower.ID,
		LedgerLineID: f.lines[0].ID,
		Amount:       dec("100"),
		Proof:        &ProofUpload{FileName: "empty.jpg"},
	})
	require.NoError(t, err)
	assert.False(t, res.HasReceipt)

	_, err = f.ledger.PaymentProof(context.Background(), res.Payment.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSubmitPayment_RejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t, "500")

	_, err := f.ledger.SubmitPayment(context.Background(), SubmitPaymentRequest{
		LoanID:       f.loan.ID,
		UserID:       f.borrower.ID,
		LedgerLineID: f.lines[0].ID,
		Amount:       decimal.Zero,
	})
	assert.Equal(t, KindInvalidRequest, KindOf(err))
}

// Sub-centavo amounts would leave a fraction owing after approval.
func TestSubmitPayment_RejectsSubCentavoAmount(t *testing.T) {
	f := newFixture(t, "100")

	for _, amount := range []string{"99.996", "0.00001"} {
		_, err := f.ledger.SubmitPayment(context.Background(), SubmitPaymentRequest{
			LoanID:       f.loan.ID,
			UserID:       f.borrower.ID,
			LedgerLineID: f.lines[0].ID,
			Amount:       dec(amount),
		})
		var lerr *Error
		require.ErrorAs(t, err, &lerr, amount)
		assert.Equal(t, KindInvalidRequest, lerr.Kind, amount)
		assert.Equal(t, "Amount", lerr.Entity, amount)
	}

	pending, err := f.ledger.PendingPayments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Two places, including trailing zeros, are accepted.
	p := f.submit(t, f.lines[0], "100.000")
	_, err = f.approve(p.ID)
	require.NoError(t, err)
	assert.True(t, f.line(t, f.lines[0].ID).Settled())
}

// Overpayment is rejected and no record is created.
func TestSubmitPayment_RejectsOverpayment(t *testing.T) {
	f := newFixture(t, "500")

	_, err := f.ledger.SubmitPayment(context.Background(), SubmitPaymentRequest{
		LoanID:       f.loan.ID,
		UserID:       f.borrower.ID,
		LedgerLineID: f.lines[0].ID,
		Amount:       dec("500.01"),
	})
	assert.Equal(t, KindInvalidRequest, KindOf(err))

	pending, err := f.ledger.PendingPayments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitPayment_ProofFailureRollsBackPayment(t *testing.T) {
	f := newFixture(t, "500")
	f.store.FailOn("InsertPaymentProof", errors.New("disk full"))

	_, err := f.ledger.SubmitPayment(context.Background(), SubmitPaymentRequest{
		LoanID:       f.loan.ID,
		UserID:       f.borrower.ID,
		LedgerLineID: f.lines[0].ID,
		Amount:       dec("100"),
		Proof:        &ProofUpload{Data: []byte("x")},
	})
	assert.Equal(t, KindInternal, KindOf(err))

	pending, err := f.ledger.PendingPayments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDecidePayment_ApprovalUpdatesLine(t *testing.T) {
	f := newFixture(t, "500", "600")
	p := f.submit(t, f.lines[0], "200")

	res, err := f.approve(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, res.Payment.Status)
	assert.False(t, res.LoanSettled)

	stored := f.payment(t, p.ID)
	assert.Equal(t, models.PaymentStatusApproved, stored.Status)
	assert.Equal(t, "clerk.ana", stored.ApprovedBy)
	require.NotNil(t, stored.ApprovedAt)
	assert.Equal(t, testNow, *stored.ApprovedAt)
	assert.Empty(t, stored.RejectionReason)

	line := f.line(t, f.lines[0].ID)
	assert.True(t, line.TotalDue.Equal(dec("300")), "got %s", line.TotalDue)
	assert.False(t, line.Settled())
	assert.Contains(t, line.Remarks, "Previous Balance: ₱500.00")
	assert.Contains(t, line.Remarks, "New Balance: ₱300.00")
	assert.Contains(t, line.Remarks, "clerk.ana")
}

// A second decision on the same payment fails and the line is reduced once.
func TestDecidePayment_NoDoubleApply(t *testing.T) {
	f := newFixture(t, "500")
	p := f.submit(t, f.lines[0], "200")

	_, err := f.approve(p.ID)
	require.NoError(t, err)

	_, err = f.approve(p.ID)
	assert.Equal(t, KindInvalidState, KindOf(err))

	_, err = f.ledger.DecidePayment(context.Background(), DecisionRequest{PaymentID: p.ID, Approver: "admin", RejectionReason: "dup"})
	assert.Equal(t, KindInvalidState, KindOf(err))

	line := f.line(t, f.lines[0].ID)
	assert.True(t, line.TotalDue.Equal(dec("300")), "got %s", line.TotalDue)
}

func TestDecidePayment_ConcurrentDecisionsHaveOneWinner(t *testing.T) {
	f := newFixture(t, "500")
	p := f.submit(t, f.lines[0], "200")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.approve(p.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, KindInvalidState, KindOf(err))
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, f.line(t, f.lines[0].ID).TotalDue.Equal(dec("300")))
}

// Two approvals on the same line that together exceed its due clamp at zero.
func TestDecidePayment_ClampsAtZero(t *testing.T) {
	f := newFixture(t, "500", "600")
	first := f.submit(t, f.lines[0], "400")
	second := f.submit(t, f.lines[0], "300")

	_, err := f.approve(first.ID)
	require.NoError(t, err)
	_, err = f.approve(second.ID)
	require.NoError(t, err)

	line := f.line(t, f.lines[0].ID)
	assert.True(t, line.TotalDue.IsZero(), "got %s", line.TotalDue)
	assert.True(t, line.Settled())
	assert.Equal(t, models.LoanStatusActive, f.loanStatus(t))
}

// Rejection requires a reason and leaves the payment Pending without one.
func TestDecidePayment_RejectionRequiresReason(t *testing.T) {
	f := newFixture(t, "500")
	p := f.submit(t, f.lines[0], "200")

	_, err := f.ledger.DecidePayment(context.Background(), DecisionRequest{PaymentID: p.ID, Approver: "admin", Approved: false, RejectionReason: "  "})
	assert.Equal(t, KindInvalidRequest, KindOf(err))
	assert.Equal(t, models.PaymentStatusPending, f.payment(t, p.ID).Status)

	res, err := f.ledger.DecidePayment(context.Background(), DecisionRequest{PaymentID: p.ID, Approver: "admin", RejectionReason: "Blurry receipt", Notes: "resubmit"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, res.Payment.Status)

	stored := f.payment(t, p.ID)
	assert.Equal(t, "Blurry receipt", stored.RejectionReason)
	assert.Contains(t, stored.Remarks, "Reason: Blurry receipt")
	assert.True(t, f.line(t, f.lines[0].ID).TotalDue.Equal(dec("500")), "rejection must not touch the ledger")
}

func TestDecidePayment_RequiresApprover(t *testing.T) {
	f := newFixture(t, "500")
	p := f.submit(t, f.lines[0], "200")

	_, err := f.ledger.DecidePayment(context.Background(), DecisionRequest{PaymentID: p.ID, Approved: true})
	assert.Equal(t, KindInvalidRequest, KindOf(err))
}

func TestDecidePayment_UnknownPayment(t *testing.T) {
	f := newFixture(t, "500")

	_, err := f.approve(uuid.New())
	var le *Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, KindNotFound, le.Kind)
	assert.Equal(t, "Payment", le.Entity)
}

// Paying the last open line marks the loan Fully Paid; a partial payoff does not.
func TestDecidePayment_FullPayoffCascades(t *testing.T) {
	f := newFixture(t, "500", "600")

	p1 := f.submit(t, f.lines[0], "500")
	res, err := f.approve(p1.ID)
	require.NoError(t, err)
	assert.False(t, res.LoanSettled)
	assert.Equal(t, models.LoanStatusActive, f.loanStatus(t))

	p2 := f.submit(t, f.lines[1], "599.99")
	_, err = f.approve(p2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusActive, f.loanStatus(t), "a partial payoff must not settle the loan")

	p3 := f.submit(t, f.lines[1], "0.01")
	res, err = f.approve(p3.ID)
	require.NoError(t, err)
	assert.True(t, res.LoanSettled)
	assert.Equal(t, models.LoanStatusFullyPaid, f.loanStatus(t))
}

func TestDecidePayment_NullPaidLineBlocksPayoff(t *testing.T) {
	f := newFixture(t, "500", "600")
	f.store.mu.Lock()
	f.store.data.lines[f.lines[1].ID].IsPaid = nil
	f.store.data.lines[f.lines[1].ID].TotalDue = decimal.Zero
	f.store.mu.Unlock()

	p := f.submit(t, f.lines[0], "500")
	_, err := f.approve(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusActive, f.loanStatus(t))
}

// A failing ledger update aborts the whole decision.
func TestDecidePayment_AtomicOnLineUpdateFailure(t *testing.T) {
	f := newFixture(t, "500")
	p := f.submit(t, f.lines[0], "500")
	f.store.FailOn("UpdateLedgerLine", errors.New("connection reset"))

	_, err := f.approve(p.ID)
	assert.Equal(t, KindInternal, KindOf(err))

	assert.Equal(t, models.PaymentStatusPending, f.payment(t, p.ID).Status)
	assert.True(t, f.line(t, f.lines[0].ID).TotalDue.Equal(dec("500")))
	assert.Equal(t, models.LoanStatusActive, f.loanStatus(t))
}

func TestDecidePayment_CommitFailureIsInternal(t *testing.T) {
	f := newFixture(t, "500")
	p := f.submit(t, f.lines[0], "100")
	f.store.FailOn("Commit", errors.New("serialization failure"))

	_, err := f.approve(p.ID)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, models.PaymentStatusPending, f.payment(t, p.ID).Status)
}

// The loan status re-evaluation is best-effort: its failure does not undo the decision.
func TestDecidePayment_LoanStatusFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, "500")
	p := f.submit(t, f.lines[0], "500")
	f.store.FailOn("UpdateLoanAccount", errors.New("lock timeout"))

	res, err := f.approve(p.ID)
	require.NoError(t, err)
	assert.False(t, res.LoanSettled)

	assert.Equal(t, models.PaymentStatusApproved, f.payment(t, p.ID).Status)
	assert.True(t, f.line(t, f.lines[0].ID).Settled())
	assert.Equal(t, models.LoanStatusActive, f.loanStatus(t))
}

func TestDecidePayment_MissingLineSkipsLedger(t *testing.T) {
	f := newFixture(t, "500")
	p := f.submit(t, f.lines[0], "100")
	f.store.mu.Lock()
	delete(f.store.data.lines, f.lines[0].ID)
	f.store.mu.Unlock()

	res, err := f.approve(p.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Line)
	assert.Equal(t, models.PaymentStatusApproved, f.payment(t, p.ID).Status)
}
