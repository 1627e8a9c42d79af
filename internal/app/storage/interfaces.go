package storage

import (
	"context"
	"errors"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/purchase"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PurchaseStore persists purchase attempts and their flow progress.
type PurchaseStore interface {
	CreateAttempt(ctx context.Context, attempt purchase.Attempt) (purchase.Attempt, error)
	UpdateAttempt(ctx context.Context, attempt purchase.Attempt) (purchase.Attempt, error)
	GetAttempt(ctx context.Context, id string) (purchase.Attempt, error)
	ListAttempts(ctx context.Context, account string) ([]purchase.Attempt, error)
	ListUnfinishedAttempts(ctx context.Context) ([]purchase.Attempt, error)
}
