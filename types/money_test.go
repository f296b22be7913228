package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"EUR", EUR(19900), 19900, "eur", "€199.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"JPY", JPY(100), 100, "jpy", "¥100"},
		{"New uppercase", New(2500, "CAD"), 2500, "cad", "C$25.00"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
		{"Negative", USD(-500), -500, "usd", "-$5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() (Money, error)
		expected Money
	}{
		{"Add", func() (Money, error) { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() (Money, error) { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Subtract below zero", func() (Money, error) { return USD(100).Subtract(USD(250)) }, USD(-150)},
		{"Multiply", func() (Money, error) { return USD(100).Multiply(3), nil }, USD(300)},
		{"Clamp negative", func() (Money, error) { return USD(-100).ClampToZero(), nil }, USD(0)},
		{"Clamp positive", func() (Money, error) { return USD(100).ClampToZero(), nil }, USD(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.op()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	ops := map[string]func() error{
		"Add": func() error {
			_, err := USD(100).Add(EUR(100))
			return err
		},
		"Subtract": func() error {
			_, err := USD(100).Subtract(EUR(100))
			return err
		},
		"Compare": func() error {
			_, err := USD(100).Compare(EUR(100))
			return err
		},
		"Sum": func() error {
			_, err := Sum("usd", USD(100), EUR(100))
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrCurrencyMismatch) {
				t.Errorf("got %v, want ErrCurrencyMismatch", err)
			}
		})
	}
}

func TestMoneyMultiplyRate(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		rate     string
		expected Money
	}{
		{"ten percent", USD(15000), "0.10", USD(1500)},
		{"half cent rounds up", USD(5), "0.5", USD(3)},
		{"below half rounds down", USD(4), "0.1", USD(0)},
		{"one third", USD(10000), "0.333333", USD(3333)},
		{"exact", USD(1999), "1", USD(1999)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.money.MultiplyRate(decimal.RequireFromString(tt.rate))
			if !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyPercentRoundsOnce(t *testing.T) {
	// 12.5% of $0.99 = 12.375c -> 12c. Applying the two halves separately
	// would round twice and drift.
	got := USD(99).Percent(decimal.RequireFromString("12.5"))
	if !got.Equal(USD(12)) {
		t.Errorf("got %v, want $0.12", got)
	}
}

func TestMoneyCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Money
		want int
	}{
		{"Equal", USD(100), USD(100), 0},
		{"Less", USD(50), USD(100), -1},
		{"Greater", USD(200), USD(100), 1},
		{"Negative less", USD(-100), USD(100), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Compare(tt.b)
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMoneyPredicates(t *testing.T) {
	tests := []struct {
		name       string
		money      Money
		isZero     bool
		isPositive bool
		isNegative bool
	}{
		{"Zero", USD(0), true, false, false},
		{"Positive", USD(100), false, true, false},
		{"Negative", USD(-100), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.IsZero(); got != tt.isZero {
				t.Errorf("IsZero: got %v, want %v", got, tt.isZero)
			}
			if got := tt.money.IsPositive(); got != tt.isPositive {
				t.Errorf("IsPositive: got %v, want %v", got, tt.isPositive)
			}
			if got := tt.money.IsNegative(); got != tt.isNegative {
				t.Errorf("IsNegative: got %v, want %v", got, tt.isNegative)
			}
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		expected Money
		wantErr  bool
	}{
		{"150.00", "usd", USD(15000), false},
		{"80.5", "USD", USD(8050), false},
		{"0.005", "usd", USD(1), false},
		{"100", "jpy", JPY(100), false},
		{"abc", "usd", Money{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in, tt.currency)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("got %v, want ErrInvalidAmount", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMoney: %v", err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{USD(4900), "49.00"},
		{USD(1), "0.01"},
		{USD(0), "0.00"},
		{USD(-4900), "-49.00"},
		{JPY(12345), "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"amount":4900,"currency":"usd","display":"$49.00"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", string(data), expected)
	}

	var back Money
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !back.Equal(USD(4900)) {
		t.Errorf("Unmarshal: got %v", back)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Money
		expected Money
	}{
		{"Empty", nil, Zero("usd")},
		{"Single", []Money{USD(100)}, USD(100)},
		{"Multiple", []Money{USD(100), USD(200), USD(300)}, USD(600)},
		{"With negatives", []Money{USD(100), USD(-50), USD(200)}, USD(250)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Sum("usd", tt.values...)
			if err != nil {
				t.Fatalf("Sum: %v", err)
			}
			if !result.Equal(tt.expected) {
				t.Errorf("Sum: got %v, want %v", result, tt.expected)
			}
		})
	}
}

func BenchmarkMoneyAdd(b *testing.B) {
	m1 := USD(100)
	m2 := USD(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m1.Add(m2)
	}
}
