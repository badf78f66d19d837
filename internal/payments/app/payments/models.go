package payments

import "time"

type CreateAccountRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type DepositRequest struct {
	UserID string  `json:"user_id" validate:"required,uuid"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type AccountResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}
