package yield

import (
	"context"

	"estate-backend/internal/domain"
	"estate-backend/internal/pkg/assetrecord"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Record returns the persisted binary form of an asset with its snapshot map,
// served from the cache when a valid copy is present.
func (s *Service) Record(ctx context.Context, assetID uuid.UUID) ([]byte, error) {
	if b, ok := s.cachedRecord(ctx, assetID); ok {
		return b, nil
	}

	data, rev, err := s.buildRecord(ctx, assetID)
	if err != nil {
		return nil, err
	}
	s.storeRecord(ctx, assetID, data, rev)
	return data, nil
}

// cachedRecord returns cached bytes only when they still decode as a record.
func (s *Service) cachedRecord(ctx context.Context, assetID uuid.UUID) ([]byte, bool) {
	if s.Cache == nil {
		return nil, false
	}
	b, ok, err := s.Cache.Get(ctx, assetID)
	if err != nil {
		log.Warn().Err(err).Str("asset_id", assetID.String()).Msg("record cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if _, err := assetrecord.Decode(b); err != nil {
		log.Warn().Err(err).Str("asset_id", assetID.String()).Msg("discarding corrupt cached record")
		s.invalidate(ctx, assetID)
		return nil, false
	}
	return b, true
}

// buildRecord encodes the asset and its snapshots from one consistent read and
// returns the asset revision the bytes reflect.
func (s *Service) buildRecord(ctx context.Context, assetID uuid.UUID) ([]byte, int64, error) {
	var (
		data []byte
		rev  int64
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findAsset(tx, assetID, false)
		if err != nil {
			return err
		}
		var snaps []domain.YieldSnapshot
		if err := tx.Where("asset_id = ?", assetID).Order("holder").Find(&snaps).Error; err != nil {
			return err
		}
		hash, err := a.HashBytes()
		if err != nil {
			return err
		}
		rec := &assetrecord.Record{
			Owner:            a.Owner,
			MetadataHash:     hash,
			MetadataURI:      a.MetadataURI,
			AnnualReturnBP:   a.AnnualReturnBP,
			TotalTokens:      uint64(a.TotalTokens),
			TokensLeft:       uint64(a.TokensLeft),
			PricePerToken:    uint64(a.PricePerToken),
			YieldAccumulator: a.YieldAccumulator,
			Snapshots:        make([]assetrecord.Snapshot, 0, len(snaps)),
		}
		for _, sn := range snaps {
			rec.Snapshots = append(rec.Snapshots, assetrecord.Snapshot{Holder: sn.Holder, Value: sn.LastAccumulator})
		}
		rev = a.Revision
		data, err = assetrecord.Encode(rec, s.MaxSnapshots)
		return err
	})
	return data, rev, err
}

// storeRecord caches data built at revision rev. A mutation that committed after
// the build has either already moved the revision, and the entry is dropped here,
// or will invalidate the entry itself once it commits.
func (s *Service) storeRecord(ctx context.Context, assetID uuid.UUID, data []byte, rev int64) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Put(ctx, assetID, data); err != nil {
		log.Warn().Err(err).Str("asset_id", assetID.String()).Msg("record cache write failed")
		return
	}
	var revs []int64
	err := s.DB.WithContext(ctx).Model(&domain.Asset{}).
		Where("asset_id = ?", assetID).
		Pluck("revision", &revs).Error
	if err != nil || len(revs) != 1 || revs[0] != rev {
		s.invalidate(ctx, assetID)
	}
}
