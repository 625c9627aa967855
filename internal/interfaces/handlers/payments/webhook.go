package payments

import (
	"encoding/json"
	"errors"
	"fmt"

	acctsvc "estate-backend/internal/application/accounts"
	"estate-backend/internal/application/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

type WebhookHandler struct {
	Accounts      *acctsvc.Service
	WebhookSecret string
}

// HandleWebhook POST /api/v1/stripe/webhook: raw body, signature verification, then
// a ledger credit for payment_intent.succeeded. Payments that can never be credited
// are acknowledged with 200 so Stripe stops retrying; storage failures return 500.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	if len(rawBody) == 0 {
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: empty body")
	}
	if wh.WebhookSecret == "" {
		log.Warn().Msg("Stripe webhook received without a configured secret")
		return c.Status(fiber.StatusBadRequest).SendString("Webhook Error: not configured")
	}

	event, err := webhook.ConstructEventWithOptions(rawBody, c.Get("Stripe-Signature"), wh.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		log.Warn().Err(err).Msg("Stripe webhook verification failed")
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	if event.Type != stripe.EventTypePaymentIntentSucceeded || event.Data == nil {
		return c.Status(fiber.StatusOK).SendString("ok")
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("payment intent payload unreadable")
		return c.Status(fiber.StatusOK).SendString("ok")
	}

	_, err = wh.Accounts.CreditTopUp(c.UserContext(), acctsvc.TopUp{
		PaymentIntentID: pi.ID,
		EventID:         event.ID,
		Identity:        pi.Metadata[MetaIdentity],
		Token:           pi.Metadata[MetaToken],
		AmountReceived:  pi.AmountReceived,
		Currency:        string(pi.Currency),
		Status:          string(pi.Status),
		Raw:             event.Data.Raw,
	})
	switch {
	case err == nil:
	case errors.Is(err, acctsvc.ErrTopUpIncomplete),
		errors.Is(err, acctsvc.ErrTopUpToken),
		errors.Is(err, ledger.ErrBalanceOverflow):
		log.Warn().Err(err).Str("payment_intent", pi.ID).Msg("payment not credited")
	default:
		log.Error().Err(err).Str("payment_intent", pi.ID).Msg("top-up credit failed")
		return c.Status(fiber.StatusInternalServerError).SendString("Webhook Error: credit failed")
	}
	return c.Status(fiber.StatusOK).SendString("ok")
}
