// Package balance tracks the purchasing account's token balance.
package balance

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
	"github.com/CakeLotto/purchase_layer/internal/app/system"
	"github.com/CakeLotto/purchase_layer/pkg/logger"
)

// Source queries the token balance of an account.
type Source interface {
	BalanceOf(ctx context.Context, account string) (decimal.Decimal, error)
}

var _ system.Service = (*Watcher)(nil)

// Watcher polls the payment token balance of the purchasing account. The
// snapshot starts pending; a failed query marks it failed rather than
// pretending the balance is zero.
type Watcher struct {
	source   Source
	account  string
	log      *logger.Logger
	interval time.Duration

	mu       sync.Mutex
	snapshot lottery.BalanceSnapshot
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
}

// New creates a balance watcher for the given account.
func New(source Source, account string, interval time.Duration, log *logger.Logger) *Watcher {
	if log == nil {
		log = logger.NewDefault("balance")
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Watcher{
		source:   source,
		account:  account,
		log:      log,
		interval: interval,
		snapshot: lottery.BalanceSnapshot{Status: lottery.BalanceStatusPending},
	}
}

// Snapshot returns the latest observed balance.
func (w *Watcher) Snapshot() lottery.BalanceSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot
}

// Refresh queries the balance immediately and updates the snapshot. Called
// by the poll loop and after each confirmed purchase.
func (w *Watcher) Refresh(ctx context.Context) error {
	amount, err := w.source.BalanceOf(ctx, w.account)
	now := time.Now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.snapshot = lottery.BalanceSnapshot{
			Amount:    w.snapshot.Amount,
			Status:    lottery.BalanceStatusFailed,
			FetchedAt: now,
		}
		return err
	}

	w.snapshot = lottery.BalanceSnapshot{
		Amount:    amount,
		Status:    lottery.BalanceStatusSuccess,
		FetchedAt: now,
	}
	return nil
}

func (w *Watcher) Name() string { return "balance-watcher" }

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.tick(runCtx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.tick(runCtx)
			}
		}
	}()

	w.log.Info("balance watcher started")
	return nil
}

func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.log.Info("balance watcher stopped")
	return nil
}

func (w *Watcher) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := w.Refresh(ctx); err != nil {
		w.log.WithError(err).Warn("balance query failed")
	}
}
