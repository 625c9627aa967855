package yield

import (
	"context"
	"errors"

	"estate-backend/internal/domain"
	"estate-backend/internal/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ClaimYield pays holder everything accrued on their current share balance since
// their last claim. The snapshot is advanced before the payout transfer is issued,
// so a retried or failed payout can never pay the same gap twice.
func (s *Service) ClaimYield(ctx context.Context, assetID uuid.UUID, holder string) (uint64, error) {
	var paid uint64

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findAsset(tx, assetID, true)
		if err != nil {
			return err
		}
		l := s.Ledger.Bind(tx)
		balance, err := l.BalanceOf(ctx, holder, a.ShareToken)
		if err != nil {
			return err
		}
		last, seen, err := loadSnapshot(tx, assetID, holder)
		if err != nil {
			return err
		}
		pending, err := pendingYield(a.YieldAccumulator, last, balance)
		if err != nil {
			if errors.Is(err, ErrSnapshotConsistency) {
				log.Error().Str("asset_id", assetID.String()).Str("holder", holder).
					Str("snapshot", last.String()).Str("yield_accumulator", a.YieldAccumulator.String()).
					Msg("snapshot ahead of accumulator")
			}
			return err
		}
		if pending == 0 {
			return ErrNoYield
		}
		if !seen && s.MaxSnapshots > 0 {
			var n int64
			if err := tx.Model(&domain.YieldSnapshot{}).Where("asset_id = ?", assetID).Count(&n).Error; err != nil {
				return err
			}
			if n >= int64(s.MaxSnapshots) {
				return ErrSnapshotLimit
			}
		}

		if err := advanceSnapshot(tx, assetID, holder, a.YieldAccumulator, seen); err != nil {
			return err
		}
		if err := tx.Model(&domain.Asset{}).Where("asset_id = ?", assetID).
			Update("revision", gorm.Expr("revision + 1")).Error; err != nil {
			return err
		}

		if err := l.Transfer(ctx, a.PaymentToken, a.YieldPoolAccount(), holder, pending, a.Authority); err != nil {
			return err
		}
		if err := recordEvent(tx, assetID, domain.EventYieldClaimed, holder, map[string]interface{}{
			"amount":            pending,
			"share_balance":     balance,
			"yield_accumulator": a.YieldAccumulator.String(),
		}); err != nil {
			return err
		}
		paid = pending
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx, assetID)
	log.Info().Str("asset_id", assetID.String()).Str("holder", holder).
		Uint64("amount", paid).Msg("yield claimed")
	return paid, nil
}

func advanceSnapshot(tx *gorm.DB, assetID uuid.UUID, holder string, acc fixedpoint.Scaled, seen bool) error {
	if seen {
		return tx.Model(&domain.YieldSnapshot{}).
			Where("asset_id = ? AND holder = ?", assetID, holder).
			Update("last_accumulator", acc).Error
	}
	return tx.Create(&domain.YieldSnapshot{
		AssetID:         assetID,
		Holder:          holder,
		LastAccumulator: acc,
	}).Error
}
