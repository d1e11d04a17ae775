package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

type (
	TransactionType string

	// ID is an entity identifier. The backend may send ids as JSON strings or
	// numbers; both decode into the same textual form.
	ID string

	User struct {
		ID       ID      `json:"id,omitempty"`
		Username string  `json:"username"`
		Email    string  `json:"email"`
		Balance  float64 `json:"balance"`
	}

	Category struct {
		ID   ID              `json:"id"`
		Name string          `json:"name"`
		Type TransactionType `json:"type,omitempty"`
	}

	Transaction struct {
		ID              ID              `json:"id,omitempty"`
		TransactionDate string          `json:"transactionDate"`
		Type            TransactionType `json:"type"`
		CategoryID      ID              `json:"categoryId,omitempty"`
		UserID          ID              `json:"userId,omitempty"`
		Comment         string          `json:"comment"`
		Amount          float64         `json:"amount"`
		BalanceAfter    *float64        `json:"balanceAfter,omitempty"`
	}

	// CurrencyRate is one row of the external rate feed (ISO 4217 numeric codes).
	CurrencyRate struct {
		CurrencyCodeA int     `json:"currencyCodeA"`
		CurrencyCodeB int     `json:"currencyCodeB"`
		Date          int64   `json:"date"`
		RateBuy       float64 `json:"rateBuy,omitempty"`
		RateSell      float64 `json:"rateSell,omitempty"`
		RateCross     float64 `json:"rateCross,omitempty"`
	}
)

var (
	ErrInvalidAmount       = errors.New("Amount must be greater than 0.")
	ErrMissingCategory     = errors.New("Please select a category.")
	ErrNoIncomeCategory    = errors.New("Income category could not be loaded from the API. Cannot add transaction.")
	ErrInvalidType         = errors.New("Transaction type must be INCOME or EXPENSE.")
	ErrMissingID           = errors.New("Transaction id is required.")
	ErrInvalidDate         = errors.New("Transaction date is required.")
	ErrEmailRequired       = errors.New("Email is required")
	ErrInvalidEmail        = errors.New("Please enter a valid email")
	ErrPasswordRequired    = errors.New("Password is required")
	ErrPasswordTooShort    = errors.New("Password must be at least 6 characters")
	ErrPasswordTooLong     = errors.New("Password must be no more than 12 characters")
	ErrConfirmRequired     = errors.New("Confirm Password is required")
	ErrPasswordMismatch    = errors.New("Passwords must match")
	ErrNameRequired        = errors.New("Name is required")
	ErrNameTooShort        = errors.New("Name must be at least 2 characters")
	ErrUnknownCategoryName = errors.New("Unknown Category")
)

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

// Sign returns "+" for income and "-" for expenses.
func (t TransactionType) Sign() string {
	if t == Income {
		return "+"
	}
	return "-"
}

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// MarshalJSON writes purely numeric ids as JSON numbers so that numeric
// backends receive the type they sent.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// IsIncomeCategory reports whether the category is the one the backend uses
// for income transactions.
func (c Category) IsIncomeCategory() bool {
	name := strings.ToLower(strings.TrimSpace(c.Name))
	return name == "income" || name == "transfer"
}

// FindIncomeCategory returns the first income category in the list.
func FindIncomeCategory(categories []Category) (Category, bool) {
	for _, c := range categories {
		if c.IsIncomeCategory() {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryNames maps category ids to display names.
func CategoryNames(categories []Category) map[ID]string {
	out := make(map[ID]string, len(categories))
	for _, c := range categories {
		out[c.ID] = c.Name
	}
	return out
}

// CategoryName resolves the display name of a transaction category. Income
// transactions are always shown as "Income".
func (t Transaction) CategoryName(names map[ID]string) string {
	if t.Type == Income {
		return "Income"
	}
	if name, ok := names[t.CategoryID]; ok && t.CategoryID != "" {
		return name
	}
	return ErrUnknownCategoryName.Error()
}
