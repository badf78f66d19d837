package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/outbox"
	"github.com/seny03/HSE-Software-Design-sub000/internal/payments/domain"
	"github.com/seny03/HSE-Software-Design-sub000/internal/payments/repository/account_repo"
)

const uniqueViolation = "23505"

type pgAccountRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAccountRepository(db *sql.DB, l *zap.Logger) account_repo.AccountRepository {
	return &pgAccountRepository{db: db, logger: l}
}

func (r *pgAccountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `INSERT INTO accounts (id, user_id, balance, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, account.ID, account.UserID, account.Balance, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAccountAlreadyExists
		}
		r.logger.Error("Failed to create account", zap.String("user_id", account.UserID), zap.Error(err))
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *pgAccountRepository) GetAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	account := &domain.Account{}
	query := `SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&account.ID, &account.UserID, &account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		r.logger.Error("Failed to get account for user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get account for user %s: %w", userID, err)
	}
	return account, nil
}

func (r *pgAccountRepository) Deposit(ctx context.Context, userID string, amount float64) (*domain.Transaction, error) {
	return r.applyTransaction(ctx, userID, "", uuid.New().String(), domain.TransactionDeposit, amount, nil)
}

func (r *pgAccountRepository) Withdraw(ctx context.Context, userID, orderID, txnID string, amount float64, msg *outbox.Message) (*domain.Transaction, error) {
	return r.applyTransaction(ctx, userID, orderID, txnID, domain.TransactionWithdrawal, -amount, msg)
}

// applyTransaction locks the account row, verifies the resulting balance,
// appends the ledger entry, adjusts the cached balance and optionally writes
// an outbox message, all in one transaction.
func (r *pgAccountRepository) applyTransaction(
	ctx context.Context,
	userID, orderID, txnID string,
	txnType domain.TransactionType,
	amount float64,
	msg *outbox.Message,
) (txn *domain.Transaction, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for ledger entry", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit ledger transaction", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}()

	account := &domain.Account{}
	lockQuery := `SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, lockQuery, userID).Scan(
		&account.ID, &account.UserID, &account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrAccountNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock account for user %s: %w", userID, err)
	}

	if account.Balance+amount < 0 {
		err = domain.ErrInsufficientFunds
		return nil, err
	}

	now := time.Now()
	txn = &domain.Transaction{
		ID:        txnID,
		AccountID: account.ID,
		OrderID:   orderID,
		Type:      txnType,
		Amount:    amount,
		CreatedAt: now,
	}

	insertQuery := `INSERT INTO transactions (id, account_id, order_id, type, amount, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, insertQuery, txn.ID, txn.AccountID, nullableOrderID(orderID), txn.Type, txn.Amount, txn.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Another writer already recorded a withdrawal for this order.
			err = domain.ErrDuplicateWithdrawal
			return nil, err
		}
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	updateQuery := `UPDATE accounts SET balance = balance + $1, updated_at = $2 WHERE id = $3`
	_, err = tx.ExecContext(ctx, updateQuery, amount, now, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update account balance: %w", err)
	}

	if msg != nil {
		err = outbox.InsertTx(ctx, tx, msg)
		if err != nil {
			return nil, err
		}
	}

	return txn, err
}

func (r *pgAccountRepository) GetWithdrawalByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	var dbOrderID sql.NullString
	query := `SELECT id, account_id, order_id, type, amount, created_at FROM transactions WHERE order_id = $1`
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&txn.ID, &txn.AccountID, &dbOrderID, &txn.Type, &txn.Amount, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to look up withdrawal by order", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to look up withdrawal for order %s: %w", orderID, err)
	}
	if dbOrderID.Valid {
		txn.OrderID = dbOrderID.String
	}
	return txn, nil
}

func nullableOrderID(orderID string) sql.NullString {
	return sql.NullString{String: orderID, Valid: orderID != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
