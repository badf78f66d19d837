package payments

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	app "github.com/seny03/HSE-Software-Design-sub000/internal/payments/app/payments"
)

func RegisterRoutes(r chi.Router, s app.PaymentService, l *zap.Logger) {
	handler := NewPaymentHandler(s, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", handler.CreateAccount)
		r.Post("/deposit", handler.Deposit)
		r.Get("/{userID}", handler.GetAccount)
	})

	r.Post("/payments/account/withdraw", handler.Withdraw)
}
