package pricing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute_DiscountTable(t *testing.T) {
	// Documented bulk-discount table at price 5, divisor 2000.
	price := dec("5")
	divisor := dec("2000")

	cases := []struct {
		tickets     int
		wantBefore  string
		wantAfter   string
		wantPercent string
	}{
		{1, "5", "5", "0"},
		{2, "10", "9.995", "0.05"},
		{50, "250", "243.875", "2.45"},
		{100, "500", "475.25", "4.95"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_tickets", tc.tickets), func(t *testing.T) {
			q, err := Compute(price, divisor, tc.tickets)
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			if !q.CostBeforeDiscount.Equal(dec(tc.wantBefore)) {
				t.Errorf("before = %s, want %s", q.CostBeforeDiscount, tc.wantBefore)
			}
			if !q.CostAfterDiscount.Equal(dec(tc.wantAfter)) {
				t.Errorf("after = %s, want %s", q.CostAfterDiscount, tc.wantAfter)
			}
			if !q.DiscountPercent.Equal(dec(tc.wantPercent)) {
				t.Errorf("percent = %s, want %s", q.DiscountPercent, tc.wantPercent)
			}
		})
	}
}

func TestCompute_ZeroTickets(t *testing.T) {
	q, err := Compute(dec("5"), dec("2000"), 0)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !q.CostBeforeDiscount.IsZero() || !q.CostAfterDiscount.IsZero() || !q.DiscountAmount.IsZero() {
		t.Fatalf("expected all-zero quote, got %+v", q)
	}
	if !q.DiscountPercent.IsZero() {
		t.Fatalf("percent should be 0 when base cost is 0, got %s", q.DiscountPercent)
	}
}

func TestCompute_ZeroDivisor(t *testing.T) {
	_, err := Compute(dec("5"), decimal.Zero, 10)
	if !errors.Is(err, ErrZeroDivisor) {
		t.Fatalf("expected ErrZeroDivisor, got %v", err)
	}
}

func TestCompute_Bounds(t *testing.T) {
	// For all n >= 0, price >= 0, divisor > 0:
	// 0 <= costAfterDiscount <= costBeforeDiscount.
	prices := []string{"0", "0.5", "5", "123.456789"}
	divisors := []string{"300", "2000", "10000"}

	for _, p := range prices {
		for _, d := range divisors {
			for n := 0; n <= 120; n += 7 {
				q, err := Compute(dec(p), dec(d), n)
				if err != nil {
					t.Fatalf("compute(%s, %s, %d): %v", p, d, n, err)
				}
				if q.CostAfterDiscount.IsNegative() || q.CostBeforeDiscount.IsNegative() {
					t.Fatalf("negative cost for price=%s divisor=%s n=%d: %+v", p, d, n, q)
				}
				if q.CostAfterDiscount.GreaterThan(q.CostBeforeDiscount) {
					t.Fatalf("after > before for price=%s divisor=%s n=%d: %+v", p, d, n, q)
				}
			}
		}
	}
}

func TestCompute_DegenerateCurveClampedToZero(t *testing.T) {
	// n beyond divisor+1 drives the raw formula negative; the quote must
	// clamp to zero instead of surfacing a negative cost.
	q, err := Compute(dec("5"), dec("10"), 50)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !q.CostAfterDiscount.IsZero() {
		t.Fatalf("expected clamped after-cost, got %s", q.CostAfterDiscount)
	}
	if q.DiscountAmount.IsNegative() {
		t.Fatalf("discount must not be negative, got %s", q.DiscountAmount)
	}
}

func TestCompute_EffectivePriceMonotonic(t *testing.T) {
	// Up to the divisor bound, the per-ticket effective price must not
	// increase with quantity.
	price := dec("5")
	divisor := dec("2000")

	prev := decimal.Decimal{}
	for n := 1; n <= 2000; n *= 2 {
		q, err := Compute(price, divisor, n)
		if err != nil {
			t.Fatalf("compute(%d): %v", n, err)
		}
		perTicket := q.CostAfterDiscount.Div(decimal.NewFromInt(int64(n)))
		if n > 1 && perTicket.GreaterThan(prev) {
			t.Fatalf("per-ticket price increased at n=%d: %s > %s", n, perTicket, prev)
		}
		prev = perTicket
	}
}

func ExampleCompute() {
	price := decimal.NewFromInt(5)
	divisor := decimal.NewFromInt(2000)
	q, _ := Compute(price, divisor, 100)
	fmt.Println(q.CostBeforeDiscount, q.CostAfterDiscount, q.DiscountPercent)
	// Output:
	// 500 475.25 4.95
}
