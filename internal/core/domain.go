package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Daily   LimitPeriod = "daily"
	Weekly  LimitPeriod = "weekly"
	Monthly LimitPeriod = "monthly"
	Custom  LimitPeriod = "custom"

	SourceBuiltin CategorySource = "builtin"
	SourceCustom  CategorySource = "custom"
)

// InvalidDateLabel is the sentinel rendered for transactions whose
// date never parsed. Such transactions are tolerated, never rejected.
const InvalidDateLabel = "Invalid Date"

type (
	TransactionType string
	LimitPeriod     string
	CategorySource  string

	// Transaction is a single income or expense record. Immutable once
	// created; the engine only ever reads copies handed out by the store.
	Transaction struct {
		ID          string
		Amount      decimal.Decimal
		Category    string
		Description string
		Date        time.Time
		Type        TransactionType
	}

	// Wallet holds the balance captured at creation time. The live balance
	// is always derived from InitialBalance plus the transaction set and is
	// never read back from storage.
	Wallet struct {
		ID             string
		Name           string
		Currency       string
		InitialBalance decimal.Decimal
		CreatedAt      time.Time
	}

	// Category is one entry of the ordered category set, tagged with its
	// provenance so built-in and user-defined entries stay distinguishable.
	Category struct {
		ID     string
		Name   string
		Source CategorySource
	}

	// SpendingLimit caps expenses in one category over a period window.
	// Edited limits are replaced wholesale; there is no partial update.
	SpendingLimit struct {
		Amount    decimal.Decimal
		Category  Category
		Period    LimitPeriod
		StartDate time.Time // fixed window start, only meaningful for Custom
		SetAt     time.Time
	}

	// ThresholdState tracks which limit notifications already fired.
	// One instance is scoped to the lifetime of the current SpendingLimit
	// and replaced wholesale when the limit identity changes.
	ThresholdState struct {
		NotifiedHalf     bool
		Notified80       bool
		NotifiedExceeded bool
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingCategory = errors.New("missing category")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidPeriod   = errors.New("invalid limit period")
	ErrMissingName     = errors.New("missing name")
)

// maxAmount bounds a single transaction or limit amount. Anything past
// twelve integer digits is treated as input corruption, not money.
var maxAmount = decimal.New(1, 12)

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (p LimitPeriod) IsValid() bool {
	switch p {
	case Daily, Weekly, Monthly, Custom:
		return true
	default:
		return false
	}
}

// ParseAmount parses a user-supplied amount string into a positive decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := validateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func validateAmount(d decimal.Decimal) error {
	if !d.IsPositive() || d.GreaterThan(maxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// NewTransaction builds a validated transaction with a fresh ID.
// A zero date is accepted: it surfaces downstream as the invalid-date
// sentinel instead of blocking the save.
func NewTransaction(amount, category, description string, date time.Time, typ TransactionType) (Transaction, error) {
	amt, err := ParseAmount(amount)
	if err != nil {
		return Transaction{}, err
	}
	tx := Transaction{
		ID:          uuid.NewString(),
		Amount:      amt,
		Category:    strings.TrimSpace(category),
		Description: strings.TrimSpace(description),
		Date:        date,
		Type:        typ,
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (t Transaction) Validate() error {
	if err := validateAmount(t.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrMissingCategory
	}
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	return nil
}

// HasValidDate reports whether the transaction carries a usable timestamp.
func (t Transaction) HasValidDate() bool {
	return !t.Date.IsZero()
}

// DisplayDate formats the date the way the charts and history list key
// their buckets: en-US numeric month/day/year, or the invalid sentinel.
func (t Transaction) DisplayDate() string {
	if !t.HasValidDate() {
		return InvalidDateLabel
	}
	return t.Date.Format("1/2/2006")
}

// NewWallet builds a validated wallet with a fresh ID. InitialBalance may
// be zero or negative; it is the user's declared starting point.
func NewWallet(name, currency string, initialBalance decimal.Decimal, now time.Time) (Wallet, error) {
	w := Wallet{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(name),
		Currency:       strings.TrimSpace(currency),
		InitialBalance: initialBalance,
		CreatedAt:      now,
	}
	if err := w.Validate(); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (w Wallet) Validate() error {
	if w.Name == "" || w.Currency == "" {
		return ErrMissingName
	}
	return nil
}

func (l SpendingLimit) Validate() error {
	if err := validateAmount(l.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(l.Category.Name) == "" {
		return ErrMissingCategory
	}
	if !l.Period.IsValid() {
		return ErrInvalidPeriod
	}
	if l.Period == Custom && l.StartDate.IsZero() {
		return ErrInvalidPeriod
	}
	return nil
}

// Key identifies a limit instance. Threshold notification flags are scoped
// to one key and reset whenever it changes.
func (l SpendingLimit) Key() string {
	return l.Amount.String() + "|" + l.Category.Name + "|" + string(l.Period) + "|" +
		l.StartDate.UTC().Format(time.RFC3339) + "|" + l.SetAt.UTC().Format(time.RFC3339)
}

// BuiltinCategories returns the predefined category set for a transaction
// type, in display order. User-defined categories append after these.
func BuiltinCategories(typ TransactionType) []Category {
	var names []string
	switch typ {
	case Expense:
		names = []string{"Food", "Transport", "Shopping", "Bills", "Entertainment"}
	case Income:
		names = []string{"Salary", "Bonus", "Gift", "Other"}
	}
	cats := make([]Category, len(names))
	for i, n := range names {
		cats[i] = Category{ID: string(typ) + "-builtin-" + n, Name: n, Source: SourceBuiltin}
	}
	return cats
}
