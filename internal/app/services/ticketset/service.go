// Package ticketset manages the editable ticket numbers for the pending
// purchase.
package ticketset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
	"github.com/CakeLotto/purchase_layer/pkg/logger"
)

var (
	// ErrIndexOutOfRange is returned for edits outside the current set.
	ErrIndexOutOfRange = errors.New("ticket index out of range")

	// ErrSizeMismatch is returned when the set size does not match the
	// quantity being purchased.
	ErrSizeMismatch = errors.New("ticket set size does not match purchase quantity")
)

// Service holds the ticket set being prepared for purchase. The set is
// regenerated whenever the requested quantity changes and cleared after a
// confirmed purchase.
type Service struct {
	log *logger.Logger

	mu      sync.RWMutex
	tickets []lottery.TicketNumber
}

// New creates an empty ticket set.
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ticketset")
	}
	return &Service{log: log}
}

// Randomize replaces the set with n randomly generated ticket numbers.
func (s *Service) Randomize(n int) []lottery.TicketNumber {
	tickets := lottery.RandomTicketNumbers(n)

	s.mu.Lock()
	s.tickets = tickets
	s.mu.Unlock()

	return cloneTickets(tickets)
}

// UpdateTicket replaces the number at the given index.
func (s *Service) UpdateTicket(index int, number lottery.TicketNumber) error {
	if !number.Valid() {
		return fmt.Errorf("ticket %d: %w", number, lottery.ErrTicketOutOfRange)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.tickets) {
		return fmt.Errorf("index %d: %w", index, ErrIndexOutOfRange)
	}
	s.tickets[index] = number
	return nil
}

// Tickets returns a copy of the current set.
func (s *Service) Tickets() []lottery.TicketNumber {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTickets(s.tickets)
}

// Size returns the current set size.
func (s *Service) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets)
}

// TicketsFor returns the current set if its size matches the quantity.
func (s *Service) TicketsFor(quantity int) ([]lottery.TicketNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.tickets) != quantity {
		return nil, fmt.Errorf("have %d tickets for quantity %d: %w", len(s.tickets), quantity, ErrSizeMismatch)
	}
	return cloneTickets(s.tickets), nil
}

// Dismiss clears the set. Called when the purchase flow closes, whether
// confirmed or abandoned.
func (s *Service) Dismiss() {
	s.mu.Lock()
	s.tickets = nil
	s.mu.Unlock()
}

func cloneTickets(tickets []lottery.TicketNumber) []lottery.TicketNumber {
	if tickets == nil {
		return nil
	}
	out := make([]lottery.TicketNumber, len(tickets))
	copy(out, tickets)
	return out
}
