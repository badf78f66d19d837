package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	app "github.com/seny03/HSE-Software-Design-sub000/internal/payments/app/payments"
	"github.com/seny03/HSE-Software-Design-sub000/internal/payments/domain"
)

type PaymentHandler struct {
	service  app.PaymentService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewPaymentHandler(s app.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:  s,
		validate: validator.New(),
		logger:   l,
	}
}

func (h *PaymentHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req app.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.logger.Warn("Validation failed for CreateAccount", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountAlreadyExists) {
			http.Error(w, "Account already exists", http.StatusConflict)
			return
		}
		h.logger.Error("Error creating account", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(mapAccountToResponse(account))
}

func (h *PaymentHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "User ID is required", http.StatusBadRequest)
		return
	}

	account, err := h.service.GetAccount(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Error getting account", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mapAccountToResponse(account))
}

func (h *PaymentHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req app.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.logger.Warn("Validation failed for Deposit", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.service.Deposit(r.Context(), req.UserID, req.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Error applying deposit", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mapAccountToResponse(account))
}

// Withdraw is the synchronous reservation endpoint the Orders service calls
// while creating an order: 200 on success, 402 on insufficient funds, 404 on
// a missing account.
func (h *PaymentHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	orderID := r.URL.Query().Get("orderId")
	amountStr := r.URL.Query().Get("amount")

	if userID == "" || orderID == "" || amountStr == "" {
		http.Error(w, "userId, orderId and amount are required", http.StatusBadRequest)
		return
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil || amount <= 0 {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	err = h.service.Withdraw(r.Context(), userID, orderID, amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			h.logger.Warn("Withdrawal declined: insufficient funds",
				zap.String("user_id", userID),
				zap.String("order_id", orderID),
				zap.Float64("amount", amount))
			http.Error(w, "Insufficient funds", http.StatusPaymentRequired)
		case errors.Is(err, domain.ErrAccountNotFound):
			http.Error(w, "Account not found", http.StatusNotFound)
		default:
			h.logger.Error("Error processing withdrawal",
				zap.String("user_id", userID),
				zap.String("order_id", orderID),
				zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

func mapAccountToResponse(account *domain.Account) *app.AccountResponse {
	return &app.AccountResponse{
		ID:        account.ID,
		UserID:    account.UserID,
		Balance:   account.Balance,
		CreatedAt: account.CreatedAt,
	}
}
