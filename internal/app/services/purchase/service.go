// Package purchase orchestrates the approve-then-confirm purchase flow
// against the payment token and lottery contracts.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
	"github.com/CakeLotto/purchase_layer/internal/app/domain/pricing"
	"github.com/CakeLotto/purchase_layer/internal/app/domain/purchase"
	"github.com/CakeLotto/purchase_layer/internal/app/metrics"
	"github.com/CakeLotto/purchase_layer/internal/app/storage"
	"github.com/CakeLotto/purchase_layer/internal/chain"
	"github.com/CakeLotto/purchase_layer/pkg/logger"
)

var (
	// ErrRoundNotOpen is returned when starting a purchase against a round
	// that is not accepting tickets.
	ErrRoundNotOpen = errors.New("round is not open")

	// ErrQuantityInvalid is returned for a non-positive quantity or one
	// above the per-transaction cap.
	ErrQuantityInvalid = errors.New("invalid ticket quantity")

	// ErrInsufficientBalance is returned when the latest balance snapshot
	// cannot cover the purchase cost.
	ErrInsufficientBalance = errors.New("insufficient balance for purchase")
)

// TokenGateway exposes the payment token operations the flow needs.
type TokenGateway interface {
	Allowance(ctx context.Context, owner, spender string) (decimal.Decimal, error)
	Approve(ctx context.Context, owner, spender string, amount *big.Int) (*chain.TxResult, error)
	ToUnits(amount decimal.Decimal) *big.Int
}

// LotteryGateway exposes the lottery purchase entry point.
type LotteryGateway interface {
	BuyTickets(ctx context.Context, buyer string, tickets []lottery.TicketNumber) (*chain.TxResult, error)
}

// RoundProvider supplies the cached round snapshot.
type RoundProvider interface {
	Current() (lottery.RoundPricing, error)
}

// BalanceSource supplies the latest balance snapshot for the purchase gate
// and forces a re-query after a confirmed purchase.
type BalanceSource interface {
	Snapshot() lottery.BalanceSnapshot
	Refresh(ctx context.Context) error
}

// TicketSource supplies the prepared ticket set for a quantity and clears it
// once consumed.
type TicketSource interface {
	TicketsFor(quantity int) ([]lottery.TicketNumber, error)
	Dismiss()
}

// Config carries the flow's account and approval policy.
type Config struct {
	// Account is the purchasing account's script hash.
	Account string
	// Spender is the lottery contract hash granted the token allowance.
	Spender string
	// UnlimitedApproval approves the maximum amount instead of the exact
	// purchase cost, so later purchases skip the approval step.
	UnlimitedApproval bool
}

// Service drives purchase attempts through the flow state machine. Every
// state change is persisted before the next external call.
type Service struct {
	cfg      Config
	store    storage.PurchaseStore
	token    TokenGateway
	lottery  LotteryGateway
	rounds   RoundProvider
	balance  BalanceSource
	tickets  TicketSource
	notifier Notifier
	log      *logger.Logger
}

// New constructs a purchase flow service.
func New(cfg Config, store storage.PurchaseStore, token TokenGateway, lotteryGw LotteryGateway,
	roundProvider RoundProvider, balance BalanceSource, tickets TicketSource, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("purchase")
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		token:    token,
		lottery:  lotteryGw,
		rounds:   roundProvider,
		balance:  balance,
		tickets:  tickets,
		notifier: NewLogNotifier(log),
		log:      log,
	}
}

// WithNotifier replaces the default log notifier. Call before use.
func (s *Service) WithNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// Begin opens a purchase attempt for the given quantity and resolves the
// allowance question. The attempt lands in either approved (allowance
// already covers the cost) or needs_approval. A failed allowance query also
// lands in needs_approval: the flow never skips approval on uncertainty.
func (s *Service) Begin(ctx context.Context, quantity int) (purchase.Attempt, error) {
	round, err := s.rounds.Current()
	if err != nil {
		return purchase.Attempt{}, fmt.Errorf("begin purchase: %w", err)
	}
	if round.Status != lottery.RoundStatusOpen {
		return purchase.Attempt{}, fmt.Errorf("round %s: %w", round.RoundID, ErrRoundNotOpen)
	}
	if quantity <= 0 || quantity > round.MaxTicketsPerBuy {
		return purchase.Attempt{}, fmt.Errorf("quantity %d: %w", quantity, ErrQuantityInvalid)
	}

	attempt, err := s.store.CreateAttempt(ctx, purchase.Attempt{
		Account:  s.cfg.Account,
		RoundID:  round.RoundID,
		Quantity: quantity,
		State:    purchase.StateIdle,
	})
	if err != nil {
		return purchase.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}

	if err := s.apply(&attempt, purchase.EventStart); err != nil {
		return attempt, err
	}

	quote, err := pricing.Compute(round.TicketPrice, round.DiscountDivisor, quantity)
	if err != nil {
		return attempt, fmt.Errorf("price quantity %d: %w", quantity, err)
	}

	event := purchase.EventAllowanceMissing
	allowance, err := s.token.Allowance(ctx, s.cfg.Account, s.cfg.Spender)
	switch {
	case err != nil:
		event = purchase.EventAllowanceCheckFailed
		attempt.LastError = err.Error()
		s.log.WithError(err).Warn("allowance query failed, requiring approval")
	case s.allowanceCovers(allowance, quote.CostAfterDiscount):
		event = purchase.EventAllowanceGranted
		attempt.LastError = ""
	}

	if err := s.apply(&attempt, event); err != nil {
		return attempt, err
	}

	return s.store.UpdateAttempt(ctx, attempt)
}

// Approve submits the token approval for the attempt and waits for its
// execution. On failure the attempt returns to needs_approval for retry.
func (s *Service) Approve(ctx context.Context, id string) (purchase.Attempt, error) {
	attempt, err := s.store.GetAttempt(ctx, id)
	if err != nil {
		return purchase.Attempt{}, err
	}

	if err := s.apply(&attempt, purchase.EventApproveSubmitted); err != nil {
		return attempt, err
	}
	if attempt, err = s.store.UpdateAttempt(ctx, attempt); err != nil {
		return attempt, err
	}

	amount, err := s.approvalAmount(attempt.Quantity)
	if err != nil {
		return s.fail(ctx, attempt, purchase.EventApproveFailed, err)
	}

	start := time.Now()
	result, err := s.token.Approve(ctx, s.cfg.Account, s.cfg.Spender, amount)
	metrics.RecordChainCall("approve", time.Since(start), err == nil && result.Succeeded())
	if err != nil {
		return s.fail(ctx, attempt, purchase.EventApproveFailed, fmt.Errorf("approve: %w", err))
	}
	if !result.Succeeded() {
		return s.fail(ctx, attempt, purchase.EventApproveFailed, fmt.Errorf("approve tx %s faulted", result.TxHash))
	}

	attempt.ApproveTxHash = result.TxHash
	attempt.LastError = ""
	if err := s.apply(&attempt, purchase.EventApproveSucceeded); err != nil {
		return attempt, err
	}
	if attempt, err = s.store.UpdateAttempt(ctx, attempt); err != nil {
		return attempt, err
	}

	s.notifier.ApproveSucceeded(attempt)
	return attempt, nil
}

// Confirm submits the ticket purchase and waits for its execution. The
// prepared ticket set must match the attempt's quantity exactly. On success
// the balance is re-queried and the ticket set dismissed, both exactly once.
func (s *Service) Confirm(ctx context.Context, id string) (purchase.Attempt, error) {
	attempt, err := s.store.GetAttempt(ctx, id)
	if err != nil {
		return purchase.Attempt{}, err
	}

	tickets, err := s.tickets.TicketsFor(attempt.Quantity)
	if err != nil {
		return attempt, err
	}
	if err := lottery.ValidateTicketNumbers(tickets); err != nil {
		return attempt, err
	}
	if err := s.permitted(attempt, len(tickets)); err != nil {
		return attempt, err
	}

	if err := s.apply(&attempt, purchase.EventConfirmSubmitted); err != nil {
		return attempt, err
	}
	if attempt, err = s.store.UpdateAttempt(ctx, attempt); err != nil {
		return attempt, err
	}

	start := time.Now()
	result, err := s.lottery.BuyTickets(ctx, s.cfg.Account, tickets)
	metrics.RecordChainCall("buyTickets", time.Since(start), err == nil && result.Succeeded())
	if err != nil {
		return s.fail(ctx, attempt, purchase.EventConfirmFailed, fmt.Errorf("buy tickets: %w", err))
	}
	if !result.Succeeded() {
		return s.fail(ctx, attempt, purchase.EventConfirmFailed, fmt.Errorf("purchase tx %s faulted", result.TxHash))
	}

	attempt.PurchaseTxHash = result.TxHash
	attempt.Tickets = tickets
	attempt.LastError = ""
	if err := s.apply(&attempt, purchase.EventConfirmSucceeded); err != nil {
		return attempt, err
	}
	if attempt, err = s.store.UpdateAttempt(ctx, attempt); err != nil {
		return attempt, err
	}

	if err := s.balance.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("post-purchase balance refresh failed")
	}
	s.tickets.Dismiss()
	s.notifier.PurchaseConfirmed(attempt)

	return attempt, nil
}

// Get returns a single attempt.
func (s *Service) Get(ctx context.Context, id string) (purchase.Attempt, error) {
	return s.store.GetAttempt(ctx, id)
}

// List returns attempts, optionally filtered by account.
func (s *Service) List(ctx context.Context, account string) ([]purchase.Attempt, error) {
	return s.store.ListAttempts(ctx, account)
}

// ListUnfinished returns attempts that never reached a terminal state,
// surfaced at startup so stranded flows can be resumed.
func (s *Service) ListUnfinished(ctx context.Context) ([]purchase.Attempt, error) {
	return s.store.ListUnfinishedAttempts(ctx)
}

// allowanceCovers decides whether an existing allowance lets the flow skip
// the approval step. Unlimited mode accepts any positive allowance, since a
// prior approval was itself unlimited; exact-amount mode requires the full
// discounted cost.
func (s *Service) allowanceCovers(allowance, cost decimal.Decimal) bool {
	if s.cfg.UnlimitedApproval {
		return allowance.IsPositive()
	}
	return allowance.GreaterThanOrEqual(cost)
}

// permitted applies the purchase gate against the latest balance snapshot:
// approval granted, flow not already confirmed, balance sufficient, and a
// ticket set matching the quantity. It runs before any state transition so a
// blocked attempt keeps its current state.
func (s *Service) permitted(attempt purchase.Attempt, ticketCount int) error {
	round, err := s.rounds.Current()
	if err != nil {
		return fmt.Errorf("confirm attempt %s: %w", attempt.ID, err)
	}

	state := purchase.Evaluate(s.balance.Snapshot(), round.TicketPrice, round.MaxTicketsPerBuy, attempt.Quantity)
	if state.InsufficientBalance {
		return fmt.Errorf("attempt %s: %w", attempt.ID, ErrInsufficientBalance)
	}
	if !purchase.CanPurchase(attempt.State == purchase.StateApproved, attempt.State.Terminal(), state, ticketCount) {
		return fmt.Errorf("%w: confirm on %s", purchase.ErrInvalidTransition, attempt.State)
	}
	return nil
}

func (s *Service) approvalAmount(quantity int) (*big.Int, error) {
	if s.cfg.UnlimitedApproval {
		return chain.UnlimitedAllowance, nil
	}
	round, err := s.rounds.Current()
	if err != nil {
		return nil, fmt.Errorf("approval amount: %w", err)
	}
	quote, err := pricing.Compute(round.TicketPrice, round.DiscountDivisor, quantity)
	if err != nil {
		return nil, fmt.Errorf("approval amount: %w", err)
	}
	return s.token.ToUnits(quote.CostAfterDiscount), nil
}

func (s *Service) apply(attempt *purchase.Attempt, event purchase.Event) error {
	next, err := purchase.Transition(attempt.State, event)
	if err != nil {
		return err
	}
	metrics.RecordFlowTransition(string(event))
	attempt.State = next
	return nil
}

// fail routes the attempt back to its actionable state, persists the error
// and notifies. The returned error is the cause, not the bookkeeping.
func (s *Service) fail(ctx context.Context, attempt purchase.Attempt, event purchase.Event, cause error) (purchase.Attempt, error) {
	if !event.FailureEvent() {
		return attempt, errors.Join(cause, fmt.Errorf("event %s cannot record a failure", event))
	}
	attempt.LastError = cause.Error()
	if err := s.apply(&attempt, event); err != nil {
		return attempt, errors.Join(cause, err)
	}
	updated, err := s.store.UpdateAttempt(ctx, attempt)
	if err != nil {
		return attempt, errors.Join(cause, err)
	}
	s.notifier.FlowFailed(updated, cause)
	return updated, cause
}
