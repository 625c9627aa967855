package payments

import (
	acctsvc "estate-backend/internal/application/accounts"
	"estate-backend/internal/middleware"
	"estate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// Metadata keys written on every top-up PaymentIntent and read back by the webhook.
const (
	MetaIdentity = "identity"
	MetaToken    = "payment_token"
)

// StripePaymentIntentCreator abstracts Stripe PaymentIntent creation for testability.
type StripePaymentIntentCreator interface {
	Create(amount int64, currency string, metadata map[string]string) (*StripePaymentIntentResult, error)
}

type StripePaymentIntentResult struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// RealStripeCreator uses the Stripe Go SDK to create PaymentIntents.
type RealStripeCreator struct {
	SecretKey string
}

func (r *RealStripeCreator) Create(amount int64, currency string, metadata map[string]string) (*StripePaymentIntentResult, error) {
	if r.SecretKey == "" {
		return nil, fiber.NewError(fiber.StatusNotImplemented, "Stripe is not configured")
	}
	stripe.Key = r.SecretKey
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		Metadata: metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &StripePaymentIntentResult{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

type TopUpHandlers struct {
	Accounts      *acctsvc.Service
	StripeCreator StripePaymentIntentCreator
	Currency      string
}

type topUpRequest struct {
	Amount int64 `json:"amount"`
}

// POST /api/v1/accounts/top-up: opens a PaymentIntent for amount minor currency
// units. The ledger is credited by the webhook once the payment succeeds.
func (h *TopUpHandlers) CreateTopUp(c *fiber.Ctx) error {
	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Amount <= 0 {
		return response.BadRequest(c, "Amount must be a positive number")
	}
	if h.StripeCreator == nil {
		return response.Error(c, "Stripe not configured", fiber.StatusInternalServerError, nil)
	}

	identity := middleware.GetIdentity(c)
	pi, err := h.StripeCreator.Create(req.Amount, h.Currency, map[string]string{
		MetaIdentity: identity,
		MetaToken:    h.Accounts.PaymentToken,
	})
	if err != nil {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		log.Warn().Err(err).Str("identity", identity).Msg("payment intent creation failed")
		return response.Error(c, err.Error(), code, nil)
	}

	return response.SuccessCreated(c, "Payment intent created", fiber.Map{
		"payment_intent_id": pi.ID,
		"client_secret":     pi.ClientSecret,
		"amount":            req.Amount,
		"currency":          h.Currency,
		"token":             h.Accounts.PaymentToken,
	}, nil)
}
