package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
	"github.com/CakeLotto/purchase_layer/internal/app/domain/purchase"
	"github.com/CakeLotto/purchase_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	attempts map[string]purchase.Attempt
}

var _ storage.PurchaseStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:   1,
		attempts: make(map[string]purchase.Attempt),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func (s *Store) CreateAttempt(_ context.Context, attempt purchase.Attempt) (purchase.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt.ID == "" {
		attempt.ID = s.nextIDLocked()
	} else if _, exists := s.attempts[attempt.ID]; exists {
		return purchase.Attempt{}, fmt.Errorf("attempt %s already exists", attempt.ID)
	}

	now := time.Now().UTC()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	attempt.Tickets = cloneTickets(attempt.Tickets)

	s.attempts[attempt.ID] = attempt
	return cloneAttempt(attempt), nil
}

func (s *Store) UpdateAttempt(_ context.Context, attempt purchase.Attempt) (purchase.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.attempts[attempt.ID]
	if !ok {
		return purchase.Attempt{}, fmt.Errorf("attempt %s: %w", attempt.ID, storage.ErrNotFound)
	}

	attempt.CreatedAt = original.CreatedAt
	attempt.UpdatedAt = time.Now().UTC()
	attempt.Tickets = cloneTickets(attempt.Tickets)

	s.attempts[attempt.ID] = attempt
	return cloneAttempt(attempt), nil
}

func (s *Store) GetAttempt(_ context.Context, id string) (purchase.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempt, ok := s.attempts[id]
	if !ok {
		return purchase.Attempt{}, fmt.Errorf("attempt %s: %w", id, storage.ErrNotFound)
	}
	return cloneAttempt(attempt), nil
}

func (s *Store) ListAttempts(_ context.Context, account string) ([]purchase.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]purchase.Attempt, 0)
	for _, attempt := range s.attempts {
		if account == "" || attempt.Account == account {
			result = append(result, cloneAttempt(attempt))
		}
	}
	return result, nil
}

func (s *Store) ListUnfinishedAttempts(_ context.Context) ([]purchase.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]purchase.Attempt, 0)
	for _, attempt := range s.attempts {
		if !attempt.State.Terminal() {
			result = append(result, cloneAttempt(attempt))
		}
	}
	return result, nil
}

func cloneAttempt(attempt purchase.Attempt) purchase.Attempt {
	attempt.Tickets = cloneTickets(attempt.Tickets)
	return attempt
}

func cloneTickets(tickets []lottery.TicketNumber) []lottery.TicketNumber {
	if tickets == nil {
		return nil
	}
	out := make([]lottery.TicketNumber, len(tickets))
	copy(out, tickets)
	return out
}
