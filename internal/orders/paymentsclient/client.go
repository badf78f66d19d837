package paymentsclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// Client is the synchronous bridge to the Payments service used during order
// creation. It is best effort, not an ACID operation spanning two services;
// callers treat any error as "payment failed" and record the order anyway.
type Client interface {
	Withdraw(ctx context.Context, userID, orderID string, amount float64) error
}

type httpClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) Client {
	settings := gobreaker.Settings{
		Name:        "PaymentsService",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &httpClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cb:         gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

func (c *httpClient) Withdraw(ctx context.Context, userID, orderID string, amount float64) error {
	// Business declines (402/404) are valid responses and must not trip the
	// breaker; only transport errors and 5xx count as failures.
	status, err := c.cb.Execute(func() (interface{}, error) {
		return c.doWithdraw(ctx, userID, orderID, amount)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("Payments service circuit breaker rejected the call",
				zap.String("order_id", orderID),
				zap.Error(err))
		}
		return err
	}

	switch status.(int) {
	case http.StatusOK:
		return nil
	case http.StatusPaymentRequired:
		return ErrInsufficientFunds
	case http.StatusNotFound:
		return ErrAccountNotFound
	default:
		return fmt.Errorf("withdraw request returned unexpected status %d", status.(int))
	}
}

func (c *httpClient) doWithdraw(ctx context.Context, userID, orderID string, amount float64) (int, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("orderId", orderID)
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	endpoint := fmt.Sprintf("%s/payments/account/withdraw?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build withdraw request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("withdraw request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, fmt.Errorf("payments service returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
