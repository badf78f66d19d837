package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	app "github.com/seny03/HSE-Software-Design-sub000/internal/orders/app/orders"
)

type OrderHandler struct {
	service  app.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(s app.OrderService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  s,
		validate: validator.New(),
		logger:   l,
	}
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body for CreateOrder", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.logger.Warn("Validation failed for CreateOrder", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrProductNotFound), errors.Is(err, app.ErrInvalidOrder):
			h.logger.Warn("Bad request for CreateOrder", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("Error creating order", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, app.ErrOrderNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Error getting order", zap.String("order_id", orderID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *OrderHandler) GetOrdersByUserID(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "User ID is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.GetOrdersByUserID(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error getting orders for user", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *OrderHandler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetAllOrders(r.Context())
	if err != nil {
		h.logger.Error("Error getting all orders", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}
