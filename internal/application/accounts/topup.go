package accounts

import (
	"context"
	"errors"

	"estate-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrTopUpIncomplete = errors.New("Payment is missing identity or amount")
	ErrTopUpToken      = errors.New("Payment was made for a different token")
)

// TopUp is a succeeded card payment to be credited as payment-token units, one unit
// per minor currency unit received.
type TopUp struct {
	PaymentIntentID string
	EventID         string
	Identity        string
	Token           string
	AmountReceived  int64
	Currency        string
	Status          string
	Raw             []byte
}

// CreditTopUp mints the payment token for a succeeded payment. The payment row and
// the mint commit together, and a PaymentIntent is credited at most once; the
// returned bool is false when it was already credited.
func (s *Service) CreditTopUp(ctx context.Context, in TopUp) (bool, error) {
	if in.PaymentIntentID == "" || in.Identity == "" || in.AmountReceived <= 0 {
		return false, ErrTopUpIncomplete
	}
	if in.Token != s.PaymentToken {
		return false, ErrTopUpToken
	}
	units := uint64(in.AmountReceived)
	raw := in.Raw
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	credited := false
	err := s.Ledger.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Payment{}).
			Where("stripe_payment_intent_id = ?", in.PaymentIntentID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(&domain.Payment{
			StripePaymentIntentID: in.PaymentIntentID,
			StripeEventID:         in.EventID,
			Identity:              in.Identity,
			Token:                 in.Token,
			Units:                 domain.Units(units),
			AmountPaid:            in.AmountReceived,
			Currency:              in.Currency,
			Status:                in.Status,
			RawPaymentIntent:      datatypes.JSON(raw),
		}).Error; err != nil {
			return err
		}
		if err := s.Ledger.Bind(tx).Mint(ctx, s.PaymentToken, in.Identity, units, FaucetAuthority); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if credited {
		log.Info().Str("identity", in.Identity).Str("payment_intent", in.PaymentIntentID).
			Uint64("units", units).Str("token", s.PaymentToken).Msg("top-up credited")
	} else {
		log.Info().Str("payment_intent", in.PaymentIntentID).Msg("top-up already credited")
	}
	return credited, nil
}
