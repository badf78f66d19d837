package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/event"
	"github.com/seny03/HSE-Software-Design-sub000/internal/outbox"
	"github.com/seny03/HSE-Software-Design-sub000/internal/payments/domain"
)

type fakeAccountRepo struct {
	accounts    map[string]*domain.Account // keyed by user id
	withdrawals map[string]*domain.Transaction
	outboxed    []*outbox.Message
	withdrawErr error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts:    make(map[string]*domain.Account),
		withdrawals: make(map[string]*domain.Transaction),
	}
}

func (r *fakeAccountRepo) CreateAccount(ctx context.Context, account *domain.Account) error {
	if _, ok := r.accounts[account.UserID]; ok {
		return domain.ErrAccountAlreadyExists
	}
	r.accounts[account.UserID] = account
	return nil
}

func (r *fakeAccountRepo) GetAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	account, ok := r.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

func (r *fakeAccountRepo) Deposit(ctx context.Context, userID string, amount float64) (*domain.Transaction, error) {
	account, ok := r.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	account.Balance += amount
	return &domain.Transaction{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		Type:      domain.TransactionDeposit,
		Amount:    amount,
		CreatedAt: time.Now(),
	}, nil
}

func (r *fakeAccountRepo) Withdraw(ctx context.Context, userID, orderID, txnID string, amount float64, msg *outbox.Message) (*domain.Transaction, error) {
	if r.withdrawErr != nil {
		return nil, r.withdrawErr
	}
	account, ok := r.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if _, ok := r.withdrawals[orderID]; ok {
		return nil, domain.ErrDuplicateWithdrawal
	}
	if account.Balance < amount {
		return nil, domain.ErrInsufficientFunds
	}
	account.Balance -= amount
	txn := &domain.Transaction{
		ID:        txnID,
		AccountID: account.ID,
		OrderID:   orderID,
		Type:      domain.TransactionWithdrawal,
		Amount:    -amount,
		CreatedAt: time.Now(),
	}
	r.withdrawals[orderID] = txn
	if msg != nil {
		r.outboxed = append(r.outboxed, msg)
	}
	return txn, nil
}

func (r *fakeAccountRepo) GetWithdrawalByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	txn, ok := r.withdrawals[orderID]
	if !ok {
		return nil, nil
	}
	return txn, nil
}

type fakeOutboxStore struct {
	messages []*outbox.Message
}

func (s *fakeOutboxStore) CreateMessage(ctx context.Context, msg *outbox.Message) error {
	s.messages = append(s.messages, msg)
	return nil
}

const testUserID = "0d6c1b1e-1a7c-4ae8-9f33-111111111111"

func seedAccount(repo *fakeAccountRepo, balance float64) {
	now := time.Now()
	repo.accounts[testUserID] = &domain.Account{
		ID:        uuid.New().String(),
		UserID:    testUserID,
		Balance:   balance,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAccount(t *testing.T) {
	repo := newFakeAccountRepo()
	svc := NewPaymentService(repo, &fakeOutboxStore{}, zap.NewNop())

	account, err := svc.CreateAccount(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, testUserID, account.UserID)
	assert.Equal(t, 0.0, account.Balance)

	_, err = svc.CreateAccount(context.Background(), testUserID)
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
}

func TestDeposit(t *testing.T) {
	repo := newFakeAccountRepo()
	seedAccount(repo, 10)
	svc := NewPaymentService(repo, &fakeOutboxStore{}, zap.NewNop())

	account, err := svc.Deposit(context.Background(), testUserID, 15)
	require.NoError(t, err)
	assert.Equal(t, 25.0, account.Balance)

	_, err = svc.Deposit(context.Background(), "2e9c1b1e-1a7c-4ae8-9f33-999999999999", 5)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestWithdrawIsIdempotentByOrderID(t *testing.T) {
	repo := newFakeAccountRepo()
	seedAccount(repo, 100)
	svc := NewPaymentService(repo, &fakeOutboxStore{}, zap.NewNop())

	require.NoError(t, svc.Withdraw(context.Background(), testUserID, "order-1", 30))
	assert.Equal(t, 70.0, repo.accounts[testUserID].Balance)

	// The same order id must not debit a second time.
	require.NoError(t, svc.Withdraw(context.Background(), testUserID, "order-1", 30))
	assert.Equal(t, 70.0, repo.accounts[testUserID].Balance)
	assert.Len(t, repo.withdrawals, 1)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	repo := newFakeAccountRepo()
	seedAccount(repo, 10)
	svc := NewPaymentService(repo, &fakeOutboxStore{}, zap.NewNop())

	err := svc.Withdraw(context.Background(), testUserID, "order-1", 30)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, 10.0, repo.accounts[testUserID].Balance)
}

func TestHandleOrderCreatedDebitsAndEnqueuesCompleted(t *testing.T) {
	repo := newFakeAccountRepo()
	seedAccount(repo, 100)
	svc := NewPaymentService(repo, &fakeOutboxStore{}, zap.NewNop())

	err := svc.HandleOrderCreated(context.Background(), &event.OrderCreated{
		OrderID: "order-1", UserID: testUserID, TotalAmount: 40,
	})
	require.NoError(t, err)

	assert.Equal(t, 60.0, repo.accounts[testUserID].Balance)
	// The debit and its payment_completed event commit together.
	require.Len(t, repo.outboxed, 1)
	assert.Equal(t, event.TypePaymentCompleted, repo.outboxed[0].EventType)
	assert.Equal(t, "order-1", repo.outboxed[0].AggregateID)

	// The event references the ledger entry written in the same transaction.
	decoded, err := event.Decode(repo.outboxed[0].EventType, repo.outboxed[0].Payload)
	require.NoError(t, err)
	completed, ok := decoded.(event.PaymentCompleted)
	require.True(t, ok)
	require.NotEmpty(t, completed.TransactionID)
	assert.Equal(t, repo.withdrawals["order-1"].ID, completed.TransactionID)
}

func TestHandleOrderCreatedInsufficientFundsEmitsFailed(t *testing.T) {
	repo := newFakeAccountRepo()
	seedAccount(repo, 5)
	store := &fakeOutboxStore{}
	svc := NewPaymentService(repo, store, zap.NewNop())

	err := svc.HandleOrderCreated(context.Background(), &event.OrderCreated{
		OrderID: "order-1", UserID: testUserID, TotalAmount: 40,
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, repo.accounts[testUserID].Balance)
	require.Len(t, store.messages, 1)
	assert.Equal(t, event.TypePaymentFailed, store.messages[0].EventType)

	decoded, err := event.Decode(store.messages[0].EventType, store.messages[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "insufficient funds", decoded.(event.PaymentFailed).Reason)
}

func TestHandleOrderCreatedMissingAccountEmitsFailed(t *testing.T) {
	repo := newFakeAccountRepo()
	store := &fakeOutboxStore{}
	svc := NewPaymentService(repo, store, zap.NewNop())

	err := svc.HandleOrderCreated(context.Background(), &event.OrderCreated{
		OrderID: "order-1", UserID: testUserID, TotalAmount: 40,
	})
	require.NoError(t, err)

	require.Len(t, store.messages, 1)
	assert.Equal(t, event.TypePaymentFailed, store.messages[0].EventType)

	decoded, err := event.Decode(store.messages[0].EventType, store.messages[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "account not found", decoded.(event.PaymentFailed).Reason)
}

func TestHandleOrderCreatedRedeliveryConfirmsWithoutSecondDebit(t *testing.T) {
	repo := newFakeAccountRepo()
	seedAccount(repo, 100)
	store := &fakeOutboxStore{}
	svc := NewPaymentService(repo, store, zap.NewNop())

	evt := &event.OrderCreated{OrderID: "order-1", UserID: testUserID, TotalAmount: 40}
	require.NoError(t, svc.HandleOrderCreated(context.Background(), evt))
	require.NoError(t, svc.HandleOrderCreated(context.Background(), evt))

	// Exactly one debit; the redelivery re-confirms via the outbox store.
	assert.Equal(t, 60.0, repo.accounts[testUserID].Balance)
	assert.Len(t, repo.withdrawals, 1)
	require.Len(t, store.messages, 1)
	assert.Equal(t, event.TypePaymentCompleted, store.messages[0].EventType)

	decoded, err := event.Decode(store.messages[0].EventType, store.messages[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, repo.withdrawals["order-1"].ID, decoded.(event.PaymentCompleted).TransactionID)
}

func TestHandleOrderCreatedInfrastructureErrorPropagates(t *testing.T) {
	repo := newFakeAccountRepo()
	seedAccount(repo, 100)
	repo.withdrawErr = errors.New("connection reset")
	svc := NewPaymentService(repo, &fakeOutboxStore{}, zap.NewNop())

	err := svc.HandleOrderCreated(context.Background(), &event.OrderCreated{
		OrderID: "order-1", UserID: testUserID, TotalAmount: 40,
	})
	assert.Error(t, err)
}
