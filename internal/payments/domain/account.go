package domain

import (
	"errors"
	"time"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateWithdrawal  = errors.New("withdrawal already recorded for order")
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

// Transaction is one append-only ledger entry. Amount is signed: deposits
// positive, withdrawals negative. OrderID is set only for withdrawals and is
// unique, which makes a withdrawal for a given order idempotent.
type Transaction struct {
	ID        string
	AccountID string
	OrderID   string
	Type      TransactionType
	Amount    float64
	CreatedAt time.Time
}

// Account caches the ledger sum in Balance; the same transaction that appends
// a ledger entry adjusts the balance, keeping the two consistent.
type Account struct {
	ID        string
	UserID    string
	Balance   float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
