package lottery

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrTicketOutOfRange is returned for ticket numbers outside the
// contract-accepted range.
var ErrTicketOutOfRange = errors.New("ticket number out of range")

// TicketNumber is a single purchasable ticket entry. The on-chain contract
// encodes six chosen digits plus a leading 1, so valid numbers occupy
// [1000000, 1999999].
type TicketNumber int32

// Ticket number bounds as enforced by the lottery contract.
const (
	TicketNumberMin TicketNumber = 1_000_000
	TicketNumberMax TicketNumber = 1_999_999
)

// Valid reports whether the number is within the contract-accepted range.
func (n TicketNumber) Valid() bool {
	return n >= TicketNumberMin && n <= TicketNumberMax
}

// ValidateTicketNumbers checks every number in the slice.
func ValidateTicketNumbers(numbers []TicketNumber) error {
	for i, n := range numbers {
		if !n.Valid() {
			return fmt.Errorf("ticket %d: number %d: %w", i, n, ErrTicketOutOfRange)
		}
	}
	return nil
}

// RandomTicketNumbers generates n random ticket numbers in the valid range.
func RandomTicketNumbers(n int) []TicketNumber {
	if n <= 0 {
		return nil
	}
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	numbers := make([]TicketNumber, n)
	span := int32(TicketNumberMax-TicketNumberMin) + 1
	for i := range numbers {
		numbers[i] = TicketNumberMin + TicketNumber(r.Int31n(span))
	}
	return numbers
}
