// Package yield settles purchases and yield for tokenised assets.
//
// Each operation runs in a single database transaction and reads the asset row
// with SELECT ... FOR UPDATE. That row lock is the per-asset serialization the
// accounting relies on: BuyTokens checks tokens_left once and does not
// re-validate after its transfers, so callers that bypass Service must serialize
// same-asset operations themselves. Operations on different assets never contend.
package yield

import (
	"context"
	"encoding/json"
	"errors"

	"estate-backend/internal/application/ledger"
	"estate-backend/internal/domain"
	"estate-backend/internal/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordCache holds encoded asset records between mutations.
type RecordCache interface {
	Get(ctx context.Context, assetID uuid.UUID) ([]byte, bool, error)
	Put(ctx context.Context, assetID uuid.UUID, record []byte) error
	Invalidate(ctx context.Context, assetID uuid.UUID) error
}

// Service encapsulates the asset registry, purchase, deposit and claim paths.
type Service struct {
	DB           *gorm.DB
	Ledger       ledger.Binder
	PaymentToken string
	// MaxSnapshots bounds distinct claiming holders per asset; 0 means unbounded.
	MaxSnapshots int
	Cache        RecordCache
}

// GetAsset returns the current asset row.
func (s *Service) GetAsset(ctx context.Context, assetID uuid.UUID) (*domain.Asset, error) {
	var a domain.Asset
	if err := s.DB.WithContext(ctx).Where("asset_id = ?", assetID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListAssets returns all assets, newest first.
func (s *Service) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	var assets []domain.Asset
	if err := s.DB.WithContext(ctx).Order(`"createdAt" DESC`).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// Events returns the settlement log of one asset in order of occurrence.
func (s *Service) Events(ctx context.Context, assetID uuid.UUID) ([]domain.SettlementEvent, error) {
	if _, err := s.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	var events []domain.SettlementEvent
	if err := s.DB.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order(`"createdAt" ASC`).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// PendingYield reports what ClaimYield would pay holder now, without changing state.
func (s *Service) PendingYield(ctx context.Context, assetID uuid.UUID, holder string) (uint64, error) {
	var pending uint64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findAsset(tx, assetID, false)
		if err != nil {
			return err
		}
		balance, err := s.Ledger.Bind(tx).BalanceOf(ctx, holder, a.ShareToken)
		if err != nil {
			return err
		}
		last, _, err := loadSnapshot(tx, assetID, holder)
		if err != nil {
			return err
		}
		pending, err = pendingYield(a.YieldAccumulator, last, balance)
		return err
	})
	return pending, err
}

func findAsset(tx *gorm.DB, assetID uuid.UUID, forUpdate bool) (*domain.Asset, error) {
	q := tx
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a domain.Asset
	if err := q.Where("asset_id = ?", assetID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &a, nil
}

// loadSnapshot returns the holder's snapshot, or zero when the holder never claimed.
func loadSnapshot(tx *gorm.DB, assetID uuid.UUID, holder string) (fixedpoint.Scaled, bool, error) {
	var snap domain.YieldSnapshot
	err := tx.Where("asset_id = ? AND holder = ?", assetID, holder).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fixedpoint.Zero(), false, nil
	}
	if err != nil {
		return fixedpoint.Scaled{}, false, err
	}
	return snap.LastAccumulator, true, nil
}

func recordEvent(tx *gorm.DB, assetID uuid.UUID, eventType, actor string, data map[string]interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return tx.Create(&domain.SettlementEvent{
		AssetID:   assetID,
		EventType: eventType,
		Actor:     actor,
		EventData: datatypes.JSON(b),
	}).Error
}

// invalidate drops the cached record after a committed change. A stale entry is
// only a read-side problem, so failures are logged rather than returned.
func (s *Service) invalidate(ctx context.Context, assetID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, assetID); err != nil {
		log.Warn().Err(err).Str("asset_id", assetID.String()).Msg("record cache invalidate failed")
	}
}
