package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"50", "50", false},
		{"1.23", "1.23", false},
		{" 30 ", "30", false},
		{"abc", "", true},
		{"0", "", true},
		{"-30", "", true},
		{"300000000000000000000", "", true}, // past any plausible money range
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	date := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	good := Transaction{ID: "t1", Amount: decimal.NewFromInt(10), Category: "Food", Date: date, Type: Expense}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"zero amount", Transaction{Amount: decimal.Zero, Category: "Food", Type: Expense}, ErrInvalidAmount},
		{"negative amount", Transaction{Amount: decimal.NewFromInt(-5), Category: "Food", Type: Expense}, ErrInvalidAmount},
		{"blank category", Transaction{Amount: decimal.NewFromInt(5), Category: "   ", Type: Expense}, ErrMissingCategory},
		{"unknown type", Transaction{Amount: decimal.NewFromInt(5), Category: "Food", Type: "transfer"}, ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	// A zero date is tolerated, not rejected.
	noDate := Transaction{Amount: decimal.NewFromInt(5), Category: "Food", Type: Expense}
	if err := noDate.Validate(); err != nil {
		t.Errorf("zero date should validate, got %v", err)
	}
}

func TestDisplayDate(t *testing.T) {
	tx := Transaction{Date: time.Date(2025, 4, 5, 18, 30, 0, 0, time.UTC)}
	if got := tx.DisplayDate(); got != "4/5/2025" {
		t.Errorf("DisplayDate() = %q, want 4/5/2025", got)
	}
	if got := (Transaction{}).DisplayDate(); got != InvalidDateLabel {
		t.Errorf("DisplayDate() on zero date = %q, want %q", got, InvalidDateLabel)
	}
}

func TestSpendingLimitValidate(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	good := SpendingLimit{
		Amount:   decimal.NewFromInt(200),
		Category: Category{ID: "1", Name: "Food"},
		Period:   Monthly,
		SetAt:    now,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name  string
		limit SpendingLimit
		want  error
	}{
		{"non-positive amount", SpendingLimit{Amount: decimal.Zero, Category: Category{Name: "Food"}, Period: Daily}, ErrInvalidAmount},
		{"no category", SpendingLimit{Amount: decimal.NewFromInt(10), Period: Daily}, ErrMissingCategory},
		{"bad period", SpendingLimit{Amount: decimal.NewFromInt(10), Category: Category{Name: "Food"}, Period: "yearly"}, ErrInvalidPeriod},
		{"custom without start date", SpendingLimit{Amount: decimal.NewFromInt(10), Category: Category{Name: "Food"}, Period: Custom}, ErrInvalidPeriod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.limit.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSpendingLimitKey(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	a := SpendingLimit{Amount: decimal.NewFromInt(200), Category: Category{Name: "Food"}, Period: Monthly, SetAt: now}
	b := a
	if a.Key() != b.Key() {
		t.Fatal("identical limits must share a key")
	}
	b.Amount = decimal.NewFromInt(300)
	if a.Key() == b.Key() {
		t.Fatal("changed amount must change the key")
	}
	c := a
	c.SetAt = now.Add(time.Hour)
	if a.Key() == c.Key() {
		t.Fatal("re-setting the limit must change the key")
	}
}

func TestBuiltinCategories(t *testing.T) {
	exp := BuiltinCategories(Expense)
	if len(exp) != 5 || exp[0].Name != "Food" || exp[4].Name != "Entertainment" {
		t.Fatalf("unexpected expense builtins: %+v", exp)
	}
	inc := BuiltinCategories(Income)
	if len(inc) != 4 || inc[0].Name != "Salary" {
		t.Fatalf("unexpected income builtins: %+v", inc)
	}
	for _, c := range exp {
		if c.Source != SourceBuiltin {
			t.Fatalf("builtin category tagged %q", c.Source)
		}
	}
}

func TestNewWallet(t *testing.T) {
	now := time.Now()
	w, err := NewWallet("Main", "EUR", decimal.NewFromInt(100), now)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if w.ID == "" {
		t.Fatal("wallet ID not assigned")
	}
	if _, err := NewWallet("  ", "EUR", decimal.Zero, now); !errors.Is(err, ErrMissingName) {
		t.Fatalf("blank name error = %v, want ErrMissingName", err)
	}
}
