// Package purchase contains the purchase-side domain logic: quantity
// validation against balance and protocol cap, and the approve/confirm
// transaction state machine.
package purchase

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
)

// PercentageShortcuts are the quick-select fractions of the purchasable
// maximum offered to the user.
var PercentageShortcuts = []int{10, 25, 50, 100}

// ValidationState is derived from balance, price, cap and the requested
// quantity. It is recomputed on every relevant input change and never
// persisted.
type ValidationState struct {
	RequestedTickets    int  `json:"requested_tickets"`
	MaxPossiblePurchase int  `json:"max_possible_purchase"`
	InsufficientBalance bool `json:"insufficient_balance"`
	CapExceeded         bool `json:"cap_exceeded"`
}

// MaxPurchasable returns min(floor(balance/price), cap). A non-positive
// price yields zero rather than an error: the round is simply not
// purchasable until valid pricing arrives.
func MaxPurchasable(balance, price decimal.Decimal, cap int) int {
	if cap < 0 {
		cap = 0
	}
	if price.Sign() <= 0 || balance.Sign() < 0 {
		return 0
	}
	affordable, _ := balance.QuoRem(price, 0)
	max := affordable.IntPart()
	if max > int64(cap) {
		return cap
	}
	return int(max)
}

// ParseTicketInput normalises a raw user-entered quantity. Non-numeric or
// empty input becomes zero without raising an error; negative values are
// clamped to zero.
func ParseTicketInput(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Evaluate classifies a requested quantity against the balance snapshot,
// the per-ticket price and the per-transaction cap. The requested quantity
// is clamped to the cap before classification.
func Evaluate(balance lottery.BalanceSnapshot, price decimal.Decimal, cap int, requested int) ValidationState {
	maxPossible := MaxPurchasable(balance.Amount, price, cap)

	limited := requested
	if limited < 0 {
		limited = 0
	}
	if limited > cap {
		limited = cap
	}

	state := ValidationState{
		RequestedTickets:    limited,
		MaxPossiblePurchase: maxPossible,
	}

	if balance.Fetched() && maxPossible == 0 {
		state.InsufficientBalance = true
	}

	if limited > 0 {
		cost := price.Mul(decimal.NewFromInt(int64(limited)))
		if cost.GreaterThan(balance.Amount) {
			state.InsufficientBalance = true
		} else if limited == maxPossible {
			// The request sits exactly on the purchasable bound, so any
			// increase would be rejected.
			state.CapExceeded = true
		}
	}

	return state
}

// ShortcutCount returns floor(maxPossible*pct/100) for a percentage
// shortcut button.
func ShortcutCount(maxPossible, pct int) int {
	if maxPossible <= 0 || pct <= 0 {
		return 0
	}
	return maxPossible * pct / 100
}

// ShortcutEnabled reports whether a percentage shortcut may be offered.
// A shortcut that would buy zero tickets, or one computed before the
// balance has been fetched, stays disabled.
func ShortcutEnabled(balance lottery.BalanceSnapshot, maxPossible, pct int) bool {
	if !balance.Fetched() {
		return false
	}
	return ShortcutCount(maxPossible, pct) >= 1
}

// CanPurchase gates the purchase action. Every condition must hold:
// approval granted, flow not already confirmed, balance sufficient, a
// positive requested quantity, and a ticket set whose size matches the
// requested quantity exactly.
func CanPurchase(approved, confirmed bool, state ValidationState, ticketSetSize int) bool {
	return approved &&
		!confirmed &&
		!state.InsufficientBalance &&
		state.RequestedTickets > 0 &&
		ticketSetSize == state.RequestedTickets
}
