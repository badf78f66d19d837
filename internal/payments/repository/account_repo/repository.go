package account_repo

import (
	"context"

	"github.com/seny03/HSE-Software-Design-sub000/internal/outbox"
	"github.com/seny03/HSE-Software-Design-sub000/internal/payments/domain"
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccountByUserID(ctx context.Context, userID string) (*domain.Account, error)
	Deposit(ctx context.Context, userID string, amount float64) (*domain.Transaction, error)
	// Withdraw debits the account and appends the ledger entry under the
	// caller-supplied txnID, so the id can be referenced in an event built
	// before the write. When msg is non-nil it is written to the outbox in
	// the same transaction, so the debit and its payment_completed event
	// commit or roll back together.
	Withdraw(ctx context.Context, userID, orderID, txnID string, amount float64, msg *outbox.Message) (*domain.Transaction, error)
	// GetWithdrawalByOrderID returns nil, nil when no withdrawal exists for
	// the order.
	GetWithdrawalByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error)
}
