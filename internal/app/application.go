package app

import (
	"context"
	"fmt"
	"time"

	"github.com/CakeLotto/purchase_layer/internal/app/services/balance"
	purchasesvc "github.com/CakeLotto/purchase_layer/internal/app/services/purchase"
	"github.com/CakeLotto/purchase_layer/internal/app/services/quotes"
	"github.com/CakeLotto/purchase_layer/internal/app/services/rounds"
	"github.com/CakeLotto/purchase_layer/internal/app/services/ticketset"
	"github.com/CakeLotto/purchase_layer/internal/app/storage"
	"github.com/CakeLotto/purchase_layer/internal/app/storage/memory"
	"github.com/CakeLotto/purchase_layer/internal/app/system"
	"github.com/CakeLotto/purchase_layer/pkg/logger"
)

// TokenContract is the payment token surface the application wires in.
type TokenContract interface {
	balance.Source
	purchasesvc.TokenGateway
}

// LotteryContract is the lottery contract surface the application wires in.
type LotteryContract interface {
	rounds.Source
	purchasesvc.LotteryGateway
}

// Stores encapsulates persistence dependencies. A nil store defaults to the
// in-memory implementation.
type Stores struct {
	Purchases storage.PurchaseStore
}

// Config carries the application-level wiring parameters.
type Config struct {
	// Account is the purchasing account's script hash.
	Account string
	// Spender is the lottery contract hash granted the token allowance.
	Spender string
	// UnlimitedApproval selects maximum-amount approvals.
	UnlimitedApproval bool
	// RoundRefreshSpec is the cron spec for round snapshot refreshes.
	RoundRefreshSpec string
	// BalanceRefreshInterval is the balance poll period.
	BalanceRefreshInterval time.Duration
}

// Application ties the purchase services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Rounds    *rounds.Service
	Balance   *balance.Watcher
	TicketSet *ticketset.Service
	Quotes    *quotes.Service
	Purchases *purchasesvc.Service
}

// New builds a fully initialised application against the given contracts.
func New(cfg Config, stores Stores, token TokenContract, lotteryContract LotteryContract, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if token == nil || lotteryContract == nil {
		return nil, fmt.Errorf("token and lottery contracts are required")
	}

	if stores.Purchases == nil {
		stores.Purchases = memory.New()
	}

	manager := system.NewManager()

	roundService := rounds.New(lotteryContract, cfg.RoundRefreshSpec, log)
	balanceWatcher := balance.New(token, cfg.Account, cfg.BalanceRefreshInterval, log)
	ticketSet := ticketset.New(log)
	quoteService := quotes.New(roundService, balanceWatcher, log)
	purchaseService := purchasesvc.New(purchasesvc.Config{
		Account:           cfg.Account,
		Spender:           cfg.Spender,
		UnlimitedApproval: cfg.UnlimitedApproval,
	}, stores.Purchases, token, lotteryContract, roundService, balanceWatcher, ticketSet, log)

	for _, svc := range []system.Service{roundService, balanceWatcher} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Rounds:    roundService,
		Balance:   balanceWatcher,
		TicketSet: ticketSet,
		Quotes:    quoteService,
		Purchases: purchaseService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
