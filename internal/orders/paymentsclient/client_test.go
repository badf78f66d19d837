package paymentsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWithdrawServer(t *testing.T, status int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments/account/withdraw", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))
		assert.Equal(t, "order-1", r.URL.Query().Get("orderId"))
		assert.Equal(t, "25.5", r.URL.Query().Get("amount"))
		w.WriteHeader(status)
	}))
}

func TestWithdrawSuccess(t *testing.T) {
	srv := newWithdrawServer(t, http.StatusOK, nil)
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	err := client.Withdraw(context.Background(), "user-1", "order-1", 25.5)
	assert.NoError(t, err)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	srv := newWithdrawServer(t, http.StatusPaymentRequired, nil)
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	err := client.Withdraw(context.Background(), "user-1", "order-1", 25.5)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestWithdrawAccountNotFound(t *testing.T) {
	srv := newWithdrawServer(t, http.StatusNotFound, nil)
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	err := client.Withdraw(context.Background(), "user-1", "order-1", 25.5)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestBusinessDeclinesDoNotTripBreaker(t *testing.T) {
	srv := newWithdrawServer(t, http.StatusPaymentRequired, nil)
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	for i := 0; i < 10; i++ {
		err := client.Withdraw(context.Background(), "user-1", "order-1", 25.5)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	}
}

func TestBreakerOpensAfterServerErrors(t *testing.T) {
	var calls int
	srv := newWithdrawServer(t, http.StatusInternalServerError, &calls)
	defer srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	for i := 0; i < 5; i++ {
		err := client.Withdraw(context.Background(), "user-1", "order-1", 25.5)
		require.Error(t, err)
		require.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	// The breaker is open now; the call is rejected before reaching the server.
	before := calls
	err := client.Withdraw(context.Background(), "user-1", "order-1", 25.5)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, before, calls)
}

func TestWithdrawServerUnreachable(t *testing.T) {
	srv := newWithdrawServer(t, http.StatusOK, nil)
	srv.Close()

	client := New(srv.URL, time.Second, zap.NewNop())
	err := client.Withdraw(context.Background(), "user-1", "order-1", 25.5)
	assert.Error(t, err)
}
