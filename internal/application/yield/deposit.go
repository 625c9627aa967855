package yield

import (
	"context"

	"estate-backend/internal/domain"
	"estate-backend/internal/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DepositResult is returned by DepositYield.
type DepositResult struct {
	AssetID          uuid.UUID         `json:"asset_id"`
	Amount           uint64            `json:"amount"`
	YieldAccumulator fixedpoint.Scaled `json:"yield_accumulator"`
}

// DepositYield moves amount from depositor into the asset's yield pool and raises
// the per-share accumulator by amount * Precision / total_tokens. Cost is O(1) in
// the number of holders.
func (s *Service) DepositYield(ctx context.Context, assetID uuid.UUID, depositor string, amount uint64) (*DepositResult, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	var result DepositResult

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findAsset(tx, assetID, true)
		if err != nil {
			return err
		}
		if a.TotalTokens == 0 {
			log.Error().Str("asset_id", assetID.String()).Msg("asset has zero total supply")
			return ErrDivisionByZero
		}
		next, err := accrue(a.YieldAccumulator, amount, uint64(a.TotalTokens))
		if err != nil {
			return err
		}

		if err := s.Ledger.Bind(tx).Transfer(ctx, a.PaymentToken, depositor, a.YieldPoolAccount(), amount, depositor); err != nil {
			return err
		}
		if err := tx.Model(&domain.Asset{}).Where("asset_id = ?", assetID).
			Updates(map[string]interface{}{
				"yield_accumulator": next,
				"revision":          gorm.Expr("revision + 1"),
			}).Error; err != nil {
			return err
		}
		if err := recordEvent(tx, assetID, domain.EventYieldDeposited, depositor, map[string]interface{}{
			"amount":            amount,
			"yield_accumulator": next.String(),
		}); err != nil {
			return err
		}

		result = DepositResult{AssetID: assetID, Amount: amount, YieldAccumulator: next}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, assetID)
	log.Info().Str("asset_id", assetID.String()).Str("depositor", depositor).
		Uint64("amount", amount).Str("yield_accumulator", result.YieldAccumulator.String()).Msg("yield deposited")
	return &result, nil
}
