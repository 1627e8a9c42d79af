package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
	"github.com/CakeLotto/purchase_layer/internal/app/domain/purchase"
	"github.com/CakeLotto/purchase_layer/internal/app/storage"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	store := New(db)

	attempt, err := store.CreateAttempt(ctx, purchase.Attempt{
		Account:  "0xbuyer",
		RoundID:  "42",
		Quantity: 3,
		State:    purchase.StateIdle,
	})
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	if attempt.ID == "" {
		t.Fatal("expected generated attempt ID")
	}

	attempt.State = purchase.StateConfirmed
	attempt.PurchaseTxHash = "0xbuy"
	attempt.Tickets = []lottery.TicketNumber{1000001, 1500000, 1999999}
	if _, err := store.UpdateAttempt(ctx, attempt); err != nil {
		t.Fatalf("update attempt: %v", err)
	}

	got, err := store.GetAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.State != purchase.StateConfirmed || len(got.Tickets) != 3 {
		t.Errorf("unexpected attempt after update: %+v", got)
	}

	unfinished, err := store.ListUnfinishedAttempts(ctx)
	if err != nil {
		t.Fatalf("list unfinished: %v", err)
	}
	for _, a := range unfinished {
		if a.ID == attempt.ID {
			t.Error("confirmed attempt listed as unfinished")
		}
	}

	if _, err := store.GetAttempt(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing attempt, got %v", err)
	}
}
