// Package lottery holds the domain model for on-chain lottery rounds.
package lottery

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundStatus represents the lifecycle state of a lottery round.
type RoundStatus string

const (
	RoundStatusPending   RoundStatus = "pending"
	RoundStatusOpen      RoundStatus = "open"
	RoundStatusClosed    RoundStatus = "closed"
	RoundStatusClaimable RoundStatus = "claimable"
)

// RoundPricing is the immutable per-round pricing snapshot. It is supplied
// by the on-chain lottery contract and never mutated by the purchase layer.
type RoundPricing struct {
	RoundID          string          `json:"round_id"`
	Status           RoundStatus     `json:"status"`
	TicketPrice      decimal.Decimal `json:"ticket_price"`        // price per ticket in the payment token
	DiscountDivisor  decimal.Decimal `json:"discount_divisor"`    // bulk-discount curve constant, nonzero in a valid round
	MaxTicketsPerBuy int             `json:"max_tickets_per_buy"` // protocol cap per transaction
	EndsAt           time.Time       `json:"ends_at"`
	FetchedAt        time.Time       `json:"fetched_at"`
}

// Default protocol constants.
const (
	DefaultMaxTicketsPerBuy = 100
)

// BalanceStatus tracks whether the latest balance query has completed.
type BalanceStatus string

const (
	BalanceStatusPending BalanceStatus = "pending"
	BalanceStatusSuccess BalanceStatus = "success"
	BalanceStatusFailed  BalanceStatus = "failed"
)

// BalanceSnapshot is the latest observed token balance of the purchasing
// account. The amount is advisory: the chain remains the source of truth.
type BalanceSnapshot struct {
	Amount    decimal.Decimal `json:"amount"`
	Status    BalanceStatus   `json:"status"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Fetched reports whether the balance query has completed, successfully or not.
func (s BalanceSnapshot) Fetched() bool {
	return s.Status == BalanceStatusSuccess || s.Status == BalanceStatusFailed
}
