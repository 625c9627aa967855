package yield

import (
	"context"

	"estate-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PurchaseResult is returned by BuyTokens.
type PurchaseResult struct {
	AssetID    uuid.UUID `json:"asset_id"`
	Amount     uint64    `json:"amount"`
	Cost       uint64    `json:"cost"`
	TokensLeft uint64    `json:"tokens_left"`
}

// BuyTokens sells amount unsold shares to buyer at the fixed price. The payment to
// the owner, the share delivery and the supply decrement commit together.
func (s *Service) BuyTokens(ctx context.Context, assetID uuid.UUID, buyer string, amount uint64) (*PurchaseResult, error) {
	var result PurchaseResult

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findAsset(tx, assetID, true)
		if err != nil {
			return err
		}
		if amount > uint64(a.TokensLeft) {
			return ErrInsufficientTokens
		}
		cost, err := purchaseCost(uint64(a.PricePerToken), amount)
		if err != nil {
			return err
		}

		l := s.Ledger.Bind(tx)
		if err := l.Transfer(ctx, a.PaymentToken, buyer, a.Owner, cost, buyer); err != nil {
			return err
		}
		if err := l.Transfer(ctx, a.ShareToken, a.HoldingAccount(), buyer, amount, a.Authority); err != nil {
			return err
		}

		left := uint64(a.TokensLeft) - amount
		if err := tx.Model(&domain.Asset{}).Where("asset_id = ?", assetID).
			Updates(map[string]interface{}{
				"tokens_left": domain.Units(left),
				"revision":    gorm.Expr("revision + 1"),
			}).Error; err != nil {
			return err
		}
		if err := recordEvent(tx, assetID, domain.EventPurchased, buyer, map[string]interface{}{
			"amount":      amount,
			"cost":        cost,
			"tokens_left": left,
		}); err != nil {
			return err
		}

		result = PurchaseResult{AssetID: assetID, Amount: amount, Cost: cost, TokensLeft: left}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, assetID)
	log.Info().Str("asset_id", assetID.String()).Str("buyer", buyer).
		Uint64("amount", amount).Uint64("cost", result.Cost).Msg("tokens purchased")
	return &result, nil
}
