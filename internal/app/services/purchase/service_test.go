package purchase

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
	"github.com/CakeLotto/purchase_layer/internal/app/domain/purchase"
	"github.com/CakeLotto/purchase_layer/internal/app/services/ticketset"
	"github.com/CakeLotto/purchase_layer/internal/app/storage/memory"
	"github.com/CakeLotto/purchase_layer/internal/chain"
)

type fakeToken struct {
	allowance    decimal.Decimal
	allowanceErr error

	approveResult *chain.TxResult
	approveErr    error
	approvedWith  *big.Int
}

func (f *fakeToken) Allowance(context.Context, string, string) (decimal.Decimal, error) {
	return f.allowance, f.allowanceErr
}

func (f *fakeToken) Approve(_ context.Context, _, _ string, amount *big.Int) (*chain.TxResult, error) {
	f.approvedWith = amount
	return f.approveResult, f.approveErr
}

func (f *fakeToken) ToUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(8).BigInt()
}

type fakeLottery struct {
	result *chain.TxResult
	err    error
	bought []lottery.TicketNumber
	calls  int
}

func (f *fakeLottery) BuyTickets(_ context.Context, _ string, tickets []lottery.TicketNumber) (*chain.TxResult, error) {
	f.calls++
	f.bought = tickets
	return f.result, f.err
}

type fakeRounds struct {
	round lottery.RoundPricing
	err   error
}

func (f *fakeRounds) Current() (lottery.RoundPricing, error) {
	return f.round, f.err
}

type fakeBalance struct {
	snapshot  lottery.BalanceSnapshot
	refreshes int
}

func (f *fakeBalance) Snapshot() lottery.BalanceSnapshot {
	return f.snapshot
}

func (f *fakeBalance) Refresh(context.Context) error {
	f.refreshes++
	return nil
}

type recordingNotifier struct {
	approvals int
	confirms  int
	failures  int
}

func (n *recordingNotifier) ApproveSucceeded(purchase.Attempt)  { n.approvals++ }
func (n *recordingNotifier) PurchaseConfirmed(purchase.Attempt) { n.confirms++ }
func (n *recordingNotifier) FlowFailed(purchase.Attempt, error) { n.failures++ }

type fixture struct {
	svc      *Service
	token    *fakeToken
	lottery  *fakeLottery
	balance  *fakeBalance
	tickets  *ticketset.Service
	notifier *recordingNotifier
}

func openRound() lottery.RoundPricing {
	return lottery.RoundPricing{
		RoundID:          "9",
		Status:           lottery.RoundStatusOpen,
		TicketPrice:      decimal.RequireFromString("5"),
		DiscountDivisor:  decimal.NewFromInt(2000),
		MaxTicketsPerBuy: 100,
		EndsAt:           time.Now().Add(time.Hour),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		token:   &fakeToken{allowance: decimal.Zero},
		lottery: &fakeLottery{result: &chain.TxResult{TxHash: "0xbuy", VMState: "HALT"}},
		balance: &fakeBalance{snapshot: lottery.BalanceSnapshot{
			Amount: decimal.RequireFromString("10000"),
			Status: lottery.BalanceStatusSuccess,
		}},
		tickets:  ticketset.New(nil),
		notifier: &recordingNotifier{},
	}
	f.svc = New(Config{Account: "0xbuyer", Spender: "0xlottery", UnlimitedApproval: true},
		memory.New(), f.token, f.lottery, &fakeRounds{round: openRound()}, f.balance, f.tickets, nil)
	f.svc.WithNotifier(f.notifier)
	return f
}

func TestBegin_AllowanceMissing(t *testing.T) {
	f := newFixture(t)

	attempt, err := f.svc.Begin(context.Background(), 3)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if attempt.State != purchase.StateNeedsApproval {
		t.Errorf("state = %s, want needs_approval", attempt.State)
	}
	if attempt.RoundID != "9" || attempt.Quantity != 3 {
		t.Errorf("unexpected attempt %+v", attempt)
	}
}

func TestBegin_AllowanceCoversCost(t *testing.T) {
	f := newFixture(t)
	f.token.allowance = decimal.RequireFromString("1000000")

	attempt, err := f.svc.Begin(context.Background(), 3)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if attempt.State != purchase.StateApproved {
		t.Errorf("state = %s, want approved", attempt.State)
	}
}

func TestBegin_PartialAllowanceApprovedWhenUnlimited(t *testing.T) {
	f := newFixture(t)
	// Cost for 3 tickets is 14.985; in unlimited mode any positive
	// allowance implies a prior unlimited approval.
	f.token.allowance = decimal.RequireFromString("10")

	attempt, err := f.svc.Begin(context.Background(), 3)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if attempt.State != purchase.StateApproved {
		t.Errorf("state = %s, want approved for positive allowance", attempt.State)
	}
}

func TestBegin_PartialAllowanceRequiresApprovalWhenExact(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.UnlimitedApproval = false
	f.token.allowance = decimal.RequireFromString("10")

	attempt, err := f.svc.Begin(context.Background(), 3)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if attempt.State != purchase.StateNeedsApproval {
		t.Errorf("state = %s, want needs_approval below the exact cost", attempt.State)
	}
}

func TestBegin_AllowanceQueryFailureRequiresApproval(t *testing.T) {
	f := newFixture(t)
	f.token.allowance = decimal.RequireFromString("1000000")
	f.token.allowanceErr = errors.New("node unreachable")

	attempt, err := f.svc.Begin(context.Background(), 3)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if attempt.State != purchase.StateNeedsApproval {
		t.Errorf("state = %s, want needs_approval on query failure", attempt.State)
	}
	if attempt.LastError == "" {
		t.Error("expected recorded error")
	}
}

func TestBegin_RejectsClosedRound(t *testing.T) {
	f := newFixture(t)
	closed := openRound()
	closed.Status = lottery.RoundStatusClosed
	f.svc.rounds = &fakeRounds{round: closed}

	if _, err := f.svc.Begin(context.Background(), 3); !errors.Is(err, ErrRoundNotOpen) {
		t.Fatalf("expected ErrRoundNotOpen, got %v", err)
	}
}

func TestBegin_RejectsBadQuantity(t *testing.T) {
	f := newFixture(t)
	for _, q := range []int{0, -1, 101} {
		if _, err := f.svc.Begin(context.Background(), q); !errors.Is(err, ErrQuantityInvalid) {
			t.Errorf("quantity %d: expected ErrQuantityInvalid, got %v", q, err)
		}
	}
}

func TestApprove_Succeeds(t *testing.T) {
	f := newFixture(t)
	f.token.approveResult = &chain.TxResult{TxHash: "0xapprove", VMState: "HALT"}

	attempt, _ := f.svc.Begin(context.Background(), 3)
	attempt, err := f.svc.Approve(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if attempt.State != purchase.StateApproved {
		t.Errorf("state = %s, want approved", attempt.State)
	}
	if attempt.ApproveTxHash != "0xapprove" {
		t.Errorf("tx hash = %s", attempt.ApproveTxHash)
	}
	if f.token.approvedWith.Cmp(chain.UnlimitedAllowance) != 0 {
		t.Errorf("approved amount = %s, want unlimited", f.token.approvedWith)
	}
	if f.notifier.approvals != 1 {
		t.Errorf("approvals notified = %d, want 1", f.notifier.approvals)
	}
}

func TestApprove_ExactAmountWhenNotUnlimited(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.UnlimitedApproval = false
	f.token.approveResult = &chain.TxResult{TxHash: "0xapprove", VMState: "HALT"}

	attempt, _ := f.svc.Begin(context.Background(), 100)
	if _, err := f.svc.Approve(context.Background(), attempt.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	// 100 tickets at price 5, divisor 2000: 475.25 tokens at 8 decimals.
	if f.token.approvedWith.String() != "47525000000" {
		t.Errorf("approved amount = %s, want 47525000000", f.token.approvedWith)
	}
}

func TestApprove_FailureReturnsToNeedsApproval(t *testing.T) {
	f := newFixture(t)
	f.token.approveErr = errors.New("rejected")

	attempt, _ := f.svc.Begin(context.Background(), 3)
	attempt, err := f.svc.Approve(context.Background(), attempt.ID)
	if err == nil {
		t.Fatal("expected approve error")
	}
	if attempt.State != purchase.StateNeedsApproval {
		t.Errorf("state = %s, want needs_approval for retry", attempt.State)
	}
	if attempt.LastError == "" {
		t.Error("expected recorded error")
	}
	if f.notifier.failures != 1 {
		t.Errorf("failures notified = %d, want 1", f.notifier.failures)
	}

	// The attempt stays retryable.
	f.token.approveErr = nil
	f.token.approveResult = &chain.TxResult{TxHash: "0xretry", VMState: "HALT"}
	attempt, err = f.svc.Approve(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("retry Approve: %v", err)
	}
	if attempt.State != purchase.StateApproved {
		t.Errorf("state = %s, want approved after retry", attempt.State)
	}
}

func TestApprove_VMFaultTreatedAsFailure(t *testing.T) {
	f := newFixture(t)
	f.token.approveResult = &chain.TxResult{TxHash: "0xfault", VMState: "FAULT"}

	attempt, _ := f.svc.Begin(context.Background(), 3)
	attempt, err := f.svc.Approve(context.Background(), attempt.ID)
	if err == nil {
		t.Fatal("expected error for faulted execution")
	}
	if attempt.State != purchase.StateNeedsApproval {
		t.Errorf("state = %s, want needs_approval", attempt.State)
	}
}

func TestConfirm_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.token.allowance = decimal.RequireFromString("1000000")

	attempt, _ := f.svc.Begin(context.Background(), 3)
	f.tickets.Randomize(3)

	attempt, err := f.svc.Confirm(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if attempt.State != purchase.StateConfirmed {
		t.Errorf("state = %s, want confirmed", attempt.State)
	}
	if attempt.PurchaseTxHash != "0xbuy" {
		t.Errorf("tx hash = %s", attempt.PurchaseTxHash)
	}
	if len(attempt.Tickets) != 3 {
		t.Errorf("stored tickets = %d, want 3", len(attempt.Tickets))
	}
	if f.balance.refreshes != 1 {
		t.Errorf("balance refreshed %d times, want exactly 1", f.balance.refreshes)
	}
	if f.tickets.Size() != 0 {
		t.Error("ticket set not dismissed after confirmation")
	}
	if f.notifier.confirms != 1 {
		t.Errorf("confirms notified = %d, want 1", f.notifier.confirms)
	}
}

func TestConfirm_TicketSetMismatchBlocks(t *testing.T) {
	f := newFixture(t)
	f.token.allowance = decimal.RequireFromString("1000000")

	attempt, _ := f.svc.Begin(context.Background(), 3)
	f.tickets.Randomize(2)

	_, err := f.svc.Confirm(context.Background(), attempt.ID)
	if !errors.Is(err, ticketset.ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
	if f.lottery.calls != 0 {
		t.Error("purchase must not be submitted on mismatch")
	}

	got, _ := f.svc.Get(context.Background(), attempt.ID)
	if got.State != purchase.StateApproved {
		t.Errorf("state = %s, want approved (unchanged)", got.State)
	}
}

func TestConfirm_InsufficientBalanceBlocks(t *testing.T) {
	f := newFixture(t)
	f.token.allowance = decimal.RequireFromString("1000000")

	attempt, _ := f.svc.Begin(context.Background(), 3)
	f.tickets.Randomize(3)

	// The balance drained between approval and confirmation.
	f.balance.snapshot = lottery.BalanceSnapshot{
		Amount: decimal.Zero,
		Status: lottery.BalanceStatusSuccess,
	}

	_, err := f.svc.Confirm(context.Background(), attempt.ID)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if f.lottery.calls != 0 {
		t.Error("purchase must not be submitted on insufficient balance")
	}

	got, _ := f.svc.Get(context.Background(), attempt.ID)
	if got.State != purchase.StateApproved {
		t.Errorf("state = %s, want approved (unchanged)", got.State)
	}
}

func TestConfirm_RequiresApproval(t *testing.T) {
	f := newFixture(t)

	attempt, _ := f.svc.Begin(context.Background(), 3)
	f.tickets.Randomize(3)

	_, err := f.svc.Confirm(context.Background(), attempt.ID)
	if !errors.Is(err, purchase.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestConfirm_FailureReturnsToApproved(t *testing.T) {
	f := newFixture(t)
	f.token.allowance = decimal.RequireFromString("1000000")
	f.lottery.err = errors.New("rejected")

	attempt, _ := f.svc.Begin(context.Background(), 3)
	f.tickets.Randomize(3)

	attempt, err := f.svc.Confirm(context.Background(), attempt.ID)
	if err == nil {
		t.Fatal("expected confirm error")
	}
	if attempt.State != purchase.StateApproved {
		t.Errorf("state = %s, want approved for retry", attempt.State)
	}
	if f.balance.refreshes != 0 {
		t.Error("balance must not refresh on failed confirm")
	}
	if f.tickets.Size() != 3 {
		t.Error("ticket set must survive a failed confirm")
	}

	// Retry succeeds and completes the flow.
	f.lottery.err = nil
	attempt, err = f.svc.Confirm(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("retry Confirm: %v", err)
	}
	if attempt.State != purchase.StateConfirmed {
		t.Errorf("state = %s, want confirmed", attempt.State)
	}
	if f.balance.refreshes != 1 {
		t.Errorf("balance refreshed %d times, want exactly 1", f.balance.refreshes)
	}
}

func TestConfirm_AlreadyConfirmedRejected(t *testing.T) {
	f := newFixture(t)
	f.token.allowance = decimal.RequireFromString("1000000")

	attempt, _ := f.svc.Begin(context.Background(), 3)
	f.tickets.Randomize(3)
	if _, err := f.svc.Confirm(context.Background(), attempt.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	f.tickets.Randomize(3)
	_, err := f.svc.Confirm(context.Background(), attempt.ID)
	if !errors.Is(err, purchase.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double confirm, got %v", err)
	}
	if f.balance.refreshes != 1 {
		t.Errorf("balance refreshed %d times, want exactly 1", f.balance.refreshes)
	}
	if f.lottery.calls != 1 {
		t.Errorf("buyTickets called %d times, want exactly 1", f.lottery.calls)
	}
}

func TestListUnfinished(t *testing.T) {
	f := newFixture(t)
	f.token.allowance = decimal.RequireFromString("1000000")
	ctx := context.Background()

	first, _ := f.svc.Begin(ctx, 3)
	f.tickets.Randomize(3)
	if _, err := f.svc.Confirm(ctx, first.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	second, _ := f.svc.Begin(ctx, 2)

	pending, err := f.svc.ListUnfinished(ctx)
	if err != nil {
		t.Fatalf("ListUnfinished: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("pending = %+v, want only attempt %s", pending, second.ID)
	}
}
