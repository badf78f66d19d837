package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/event"
	"github.com/seny03/HSE-Software-Design-sub000/internal/outbox"
	"github.com/seny03/HSE-Software-Design-sub000/internal/payments/domain"
	"github.com/seny03/HSE-Software-Design-sub000/internal/payments/repository/account_repo"
)

// OutboxStore is the slice of the outbox used for follow-up events that do
// not ride along with a ledger write.
type OutboxStore interface {
	CreateMessage(ctx context.Context, msg *outbox.Message) error
}

type PaymentService interface {
	CreateAccount(ctx context.Context, userID string) (*domain.Account, error)
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)
	Deposit(ctx context.Context, userID string, amount float64) (*domain.Account, error)
	// Withdraw is the synchronous debit behind POST /payments/account/withdraw.
	// It is idempotent by order id: a withdrawal already recorded for the
	// order succeeds without a second debit.
	Withdraw(ctx context.Context, userID, orderID string, amount float64) error
	// HandleOrderCreated applies the asynchronous payment flow for one
	// order_created event. Business failures (insufficient funds, missing
	// account) are emitted as payment_failed events and never returned as
	// errors; only infrastructure failures propagate and cause redelivery.
	HandleOrderCreated(ctx context.Context, evt *event.OrderCreated) error
}

type paymentService struct {
	accountRepo account_repo.AccountRepository
	outboxStore OutboxStore
	logger      *zap.Logger
}

func NewPaymentService(accountRepo account_repo.AccountRepository, outboxStore OutboxStore, logger *zap.Logger) PaymentService {
	return &paymentService{
		accountRepo: accountRepo,
		outboxStore: outboxStore,
		logger:      logger,
	}
}

func (s *paymentService) CreateAccount(ctx context.Context, userID string) (*domain.Account, error) {
	now := time.Now()
	account := &domain.Account{
		ID:        uuid.New().String(),
		UserID:    userID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.accountRepo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, domain.ErrAccountAlreadyExists) {
			s.logger.Warn("Account already exists for user", zap.String("user_id", userID))
			return nil, domain.ErrAccountAlreadyExists
		}
		s.logger.Error("Failed to create account", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to create account for user %s: %w", userID, err)
	}

	s.logger.Info("Account created", zap.String("account_id", account.ID), zap.String("user_id", userID))
	return account, nil
}

func (s *paymentService) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		s.logger.Error("Failed to get account for user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get account for user %s: %w", userID, err)
	}
	return account, nil
}

func (s *paymentService) Deposit(ctx context.Context, userID string, amount float64) (*domain.Account, error) {
	if _, err := s.accountRepo.Deposit(ctx, userID, amount); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		s.logger.Error("Failed to deposit", zap.String("user_id", userID), zap.Float64("amount", amount), zap.Error(err))
		return nil, fmt.Errorf("failed to deposit for user %s: %w", userID, err)
	}

	s.logger.Info("Deposit applied", zap.String("user_id", userID), zap.Float64("amount", amount))
	return s.accountRepo.GetAccountByUserID(ctx, userID)
}

func (s *paymentService) Withdraw(ctx context.Context, userID, orderID string, amount float64) error {
	existing, err := s.accountRepo.GetWithdrawalByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.logger.Info("Withdrawal already recorded for order, skipping debit",
			zap.String("order_id", orderID),
			zap.String("transaction_id", existing.ID))
		return nil
	}

	_, err = s.accountRepo.Withdraw(ctx, userID, orderID, uuid.New().String(), amount, nil)
	if errors.Is(err, domain.ErrDuplicateWithdrawal) {
		// Lost the race to a concurrent debit for the same order; the money
		// moved exactly once, which is all the caller cares about.
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("Withdrawal applied",
		zap.String("order_id", orderID),
		zap.String("user_id", userID),
		zap.Float64("amount", amount))
	return nil
}

func (s *paymentService) HandleOrderCreated(ctx context.Context, evt *event.OrderCreated) error {
	existing, err := s.accountRepo.GetWithdrawalByOrderID(ctx, evt.OrderID)
	if err != nil {
		return err
	}
	if existing != nil {
		// Funds already moved for this order, either by the synchronous call
		// or by an earlier delivery of this event. Confirm without debiting
		// again.
		s.logger.Info("Order already debited, confirming without a second debit",
			zap.String("order_id", evt.OrderID),
			zap.String("transaction_id", existing.ID))
		return s.enqueueCompleted(ctx, evt, existing.ID)
	}

	// The ledger entry id is chosen up front so the event referencing it can
	// ride in the same transaction as the debit.
	txnID := uuid.New().String()
	msg, err := outbox.NewMessage(event.PaymentCompleted{
		OrderID:       evt.OrderID,
		UserID:        evt.UserID,
		Amount:        evt.TotalAmount,
		TransactionID: txnID,
		Timestamp:     time.Now(),
	})
	if err != nil {
		return err
	}

	_, err = s.accountRepo.Withdraw(ctx, evt.UserID, evt.OrderID, txnID, evt.TotalAmount, msg)
	switch {
	case err == nil:
		s.logger.Info("Payment completed for order",
			zap.String("order_id", evt.OrderID),
			zap.String("transaction_id", txnID),
			zap.Float64("amount", evt.TotalAmount))
		return nil
	case errors.Is(err, domain.ErrDuplicateWithdrawal):
		// Lost the race to a concurrent debit; confirm with the winning
		// ledger entry's id.
		winner, lookupErr := s.accountRepo.GetWithdrawalByOrderID(ctx, evt.OrderID)
		if lookupErr != nil {
			return lookupErr
		}
		winnerID := ""
		if winner != nil {
			winnerID = winner.ID
		}
		return s.enqueueCompleted(ctx, evt, winnerID)
	case errors.Is(err, domain.ErrInsufficientFunds):
		return s.enqueueFailed(ctx, evt, "insufficient funds")
	case errors.Is(err, domain.ErrAccountNotFound):
		return s.enqueueFailed(ctx, evt, "account not found")
	default:
		s.logger.Error("Failed to process payment for order", zap.String("order_id", evt.OrderID), zap.Error(err))
		return fmt.Errorf("failed to process payment for order %s: %w", evt.OrderID, err)
	}
}

func (s *paymentService) enqueueCompleted(ctx context.Context, evt *event.OrderCreated, txnID string) error {
	msg, err := outbox.NewMessage(event.PaymentCompleted{
		OrderID:       evt.OrderID,
		UserID:        evt.UserID,
		Amount:        evt.TotalAmount,
		TransactionID: txnID,
		Timestamp:     time.Now(),
	})
	if err != nil {
		return err
	}
	return s.outboxStore.CreateMessage(ctx, msg)
}

func (s *paymentService) enqueueFailed(ctx context.Context, evt *event.OrderCreated, reason string) error {
	s.logger.Warn("Payment failed for order",
		zap.String("order_id", evt.OrderID),
		zap.String("reason", reason))

	msg, err := outbox.NewMessage(event.PaymentFailed{
		OrderID:   evt.OrderID,
		UserID:    evt.UserID,
		Amount:    evt.TotalAmount,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return s.outboxStore.CreateMessage(ctx, msg)
}
