package yield

import (
	"context"

	"estate-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// MintCrosschain mints amount bridge units for recipient under the asset's
// authority. Shares and the accumulator are untouched. Only the owner may call it.
func (s *Service) MintCrosschain(ctx context.Context, assetID uuid.UUID, caller, recipient string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findAsset(tx, assetID, false)
		if err != nil {
			return err
		}
		if a.Owner != caller {
			return ErrNotOwner
		}
		if err := s.Ledger.Bind(tx).Mint(ctx, a.BridgeToken, recipient, amount, a.Authority); err != nil {
			return err
		}
		return recordEvent(tx, assetID, domain.EventBridgeMinted, caller, map[string]interface{}{
			"recipient": recipient,
			"amount":    amount,
		})
	})
	if err != nil {
		return err
	}
	log.Info().Str("asset_id", assetID.String()).Str("recipient", recipient).
		Uint64("amount", amount).Msg("bridge mint")
	return nil
}
