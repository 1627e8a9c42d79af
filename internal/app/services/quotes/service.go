// Package quotes combines round pricing, the balance snapshot and quantity
// validation into a single purchase quote.
package quotes

import (
	"errors"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
	"github.com/CakeLotto/purchase_layer/internal/app/domain/pricing"
	"github.com/CakeLotto/purchase_layer/internal/app/domain/purchase"
	"github.com/CakeLotto/purchase_layer/internal/app/metrics"
	"github.com/CakeLotto/purchase_layer/internal/app/services/rounds"
	"github.com/CakeLotto/purchase_layer/pkg/logger"
)

// RoundProvider supplies the cached round snapshot.
type RoundProvider interface {
	Current() (lottery.RoundPricing, error)
}

// BalanceProvider supplies the latest balance snapshot.
type BalanceProvider interface {
	Snapshot() lottery.BalanceSnapshot
}

// Shortcut describes one percentage quick-select option.
type Shortcut struct {
	Percent int  `json:"percent"`
	Tickets int  `json:"tickets"`
	Enabled bool `json:"enabled"`
}

// Result is a full quote for a requested quantity: costs, validation flags
// and the shortcut options derived from the same inputs.
type Result struct {
	RoundID    string                   `json:"round_id"`
	Quote      pricing.Quote            `json:"quote"`
	Validation purchase.ValidationState `json:"validation"`
	Shortcuts  []Shortcut               `json:"shortcuts"`
	Balance    lottery.BalanceSnapshot  `json:"balance"`
}

// Service computes purchase quotes. It holds no state of its own; every
// quote re-reads the round and balance snapshots.
type Service struct {
	rounds  RoundProvider
	balance BalanceProvider
	log     *logger.Logger
}

// New creates a quote service.
func New(roundProvider RoundProvider, balanceProvider BalanceProvider, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("quotes")
	}
	return &Service{
		rounds:  roundProvider,
		balance: balanceProvider,
		log:     log,
	}
}

// QuoteFor computes the quote for a requested ticket quantity. Raw input
// parsing happens at the API boundary; quantity here is already numeric.
// When no round is available or the round carries a zero divisor, the quote
// degrades to zero costs instead of failing.
func (s *Service) QuoteFor(requested int) (Result, error) {
	balance := s.balance.Snapshot()

	round, err := s.rounds.Current()
	if err != nil {
		if errors.Is(err, rounds.ErrNoRound) {
			return s.degraded(requested, balance), nil
		}
		return Result{}, err
	}

	validation := purchase.Evaluate(balance, round.TicketPrice, round.MaxTicketsPerBuy, requested)

	quote, err := pricing.Compute(round.TicketPrice, round.DiscountDivisor, validation.RequestedTickets)
	if err != nil {
		if errors.Is(err, pricing.ErrZeroDivisor) {
			s.log.WithField("round_id", round.RoundID).Warn("round has zero discount divisor")
			quote = pricing.Zero(validation.RequestedTickets)
		} else {
			return Result{}, err
		}
	}

	metrics.RecordQuote()

	return Result{
		RoundID:    round.RoundID,
		Quote:      quote,
		Validation: validation,
		Shortcuts:  shortcuts(balance, validation.MaxPossiblePurchase),
		Balance:    balance,
	}, nil
}

func (s *Service) degraded(requested int, balance lottery.BalanceSnapshot) Result {
	if requested < 0 {
		requested = 0
	}
	return Result{
		Quote:      pricing.Zero(requested),
		Validation: purchase.ValidationState{RequestedTickets: requested},
		Shortcuts:  shortcuts(balance, 0),
		Balance:    balance,
	}
}

func shortcuts(balance lottery.BalanceSnapshot, maxPossible int) []Shortcut {
	out := make([]Shortcut, 0, len(purchase.PercentageShortcuts))
	for _, pct := range purchase.PercentageShortcuts {
		out = append(out, Shortcut{
			Percent: pct,
			Tickets: purchase.ShortcutCount(maxPossible, pct),
			Enabled: purchase.ShortcutEnabled(balance, maxPossible, pct),
		})
	}
	return out
}
