package core

import (
	"math"
	"net/mail"
	"strings"
	"time"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 12
	minNameLen     = 2
)

type (
	// TransactionInput is what a user enters in the add/edit form. Amount is
	// always the positive magnitude; the sign is derived from Type.
	TransactionInput struct {
		Type       TransactionType
		Amount     Money
		CategoryID ID
		Date       time.Time
		Comment    string
	}

	LoginInput struct {
		Email    string
		Password string
	}

	RegisterInput struct {
		Name            string
		Email           string
		Password        string
		ConfirmPassword string
	}
)

// Validate checks the form constraints that do not depend on server data.
func (in TransactionInput) Validate() error {
	if err := in.Type.Validate(); err != nil {
		return err
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return ErrInvalidDate
	}
	if in.Type == Expense && in.CategoryID.IsZero() {
		return ErrMissingCategory
	}
	return nil
}

// ToTransaction builds the request body for a new transaction. Income
// transactions are filed under the backend's income category, which must be
// present in categories.
func (in TransactionInput) ToTransaction(categories []Category) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}

	categoryID := in.CategoryID
	if in.Type == Income {
		income, ok := FindIncomeCategory(categories)
		if !ok || income.ID.IsZero() {
			return Transaction{}, ErrNoIncomeCategory
		}
		categoryID = income.ID
	}

	return Transaction{
		TransactionDate: in.Date.UTC().Format(ISOTimeLayout),
		Type:            in.Type,
		CategoryID:      categoryID,
		Comment:         in.Comment,
		Amount:          in.signedAmount(),
	}, nil
}

// ToUpdate builds the PATCH body for an existing transaction. The category is
// only sent for expenses, and is kept from the original transaction.
func (in TransactionInput) ToUpdate(original Transaction) (Transaction, error) {
	if original.ID.IsZero() {
		return Transaction{}, ErrMissingID
	}
	if err := in.Type.Validate(); err != nil {
		return Transaction{}, err
	}
	if err := in.Amount.Validate(); err != nil {
		return Transaction{}, err
	}
	if in.Date.IsZero() {
		return Transaction{}, ErrInvalidDate
	}

	out := Transaction{
		ID:              original.ID,
		TransactionDate: in.Date.UTC().Format(ISOTimeLayout),
		Type:            in.Type,
		Comment:         in.Comment,
		Amount:          in.signedAmount(),
	}
	if in.Type == Expense {
		categoryID := original.CategoryID
		if !in.CategoryID.IsZero() {
			categoryID = in.CategoryID
		}
		if categoryID.IsZero() {
			return Transaction{}, ErrMissingCategory
		}
		out.CategoryID = categoryID
	}
	return out, nil
}

func (in TransactionInput) signedAmount() float64 {
	v := math.Abs(in.Amount.Float())
	if in.Type == Expense {
		return -v
	}
	return v
}

func (in LoginInput) Validate() error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if in.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}

func (in RegisterInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ErrNameRequired
	}
	if len([]rune(name)) < minNameLen {
		return ErrNameTooShort
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	switch {
	case in.Password == "":
		return ErrPasswordRequired
	case len(in.Password) < minPasswordLen:
		return ErrPasswordTooShort
	case len(in.Password) > maxPasswordLen:
		return ErrPasswordTooLong
	}
	if in.ConfirmPassword == "" {
		return ErrConfirmRequired
	}
	if in.ConfirmPassword != in.Password {
		return ErrPasswordMismatch
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}
