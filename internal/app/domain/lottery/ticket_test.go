package lottery

import "testing"

func TestTicketNumber_Valid(t *testing.T) {
	cases := []struct {
		number TicketNumber
		want   bool
	}{
		{1_000_000, true},
		{1_999_999, true},
		{1_234_567, true},
		{999_999, false},
		{2_000_000, false},
		{0, false},
		{-1, false},
	}
	for _, tc := range cases {
		if got := tc.number.Valid(); got != tc.want {
			t.Errorf("Valid(%d) = %v, want %v", tc.number, got, tc.want)
		}
	}
}

func TestValidateTicketNumbers(t *testing.T) {
	if err := ValidateTicketNumbers([]TicketNumber{1_000_000, 1_500_000, 1_999_999}); err != nil {
		t.Fatalf("valid numbers rejected: %v", err)
	}
	if err := ValidateTicketNumbers([]TicketNumber{1_000_000, 42}); err == nil {
		t.Fatal("expected error for out-of-range number")
	}
}

func TestRandomTicketNumbers(t *testing.T) {
	numbers := RandomTicketNumbers(100)
	if len(numbers) != 100 {
		t.Fatalf("expected 100 numbers, got %d", len(numbers))
	}
	for _, n := range numbers {
		if !n.Valid() {
			t.Fatalf("generated number %d out of range", n)
		}
	}

	if got := RandomTicketNumbers(0); got != nil {
		t.Fatalf("expected nil for zero count, got %v", got)
	}
}
