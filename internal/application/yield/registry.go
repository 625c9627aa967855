package yield

import (
	"context"
	"encoding/hex"

	"estate-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CreateInput describes a new property.
type CreateInput struct {
	Owner          string
	MetadataHash   string
	MetadataURI    string
	AnnualReturnBP uint16
	TotalTokens    uint64
	PricePerToken  uint64
}

// CreateProperty registers an asset and mints its whole share supply into the
// asset's holding area. The asset authority (derived from the new id) is the mint
// authority of the share and bridge tokens and controls the holding and yield pools.
func (s *Service) CreateProperty(ctx context.Context, in CreateInput) (*domain.Asset, error) {
	if in.TotalTokens == 0 {
		return nil, ErrInvalidAmount
	}
	hash, err := domain.DecodeMetadataHash(in.MetadataHash)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	authority := domain.AssetAuthority(id)
	asset := domain.Asset{
		AssetID:        id,
		Owner:          in.Owner,
		MetadataHash:   hex.EncodeToString(hash[:]),
		MetadataURI:    in.MetadataURI,
		AnnualReturnBP: in.AnnualReturnBP,
		TotalTokens:    domain.Units(in.TotalTokens),
		TokensLeft:     domain.Units(in.TotalTokens),
		PricePerToken:  domain.Units(in.PricePerToken),
		Authority:      authority,
		ShareToken:     domain.ShareTokenID(id),
		BridgeToken:    domain.BridgeTokenID(id),
		PaymentToken:   s.PaymentToken,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l := s.Ledger.Bind(tx)
		if err := l.CreateToken(ctx, asset.ShareToken, authority); err != nil {
			return err
		}
		if err := l.CreateToken(ctx, asset.BridgeToken, authority); err != nil {
			return err
		}
		if err := l.OpenAccount(ctx, asset.ShareToken, asset.HoldingAccount(), authority); err != nil {
			return err
		}
		if err := l.OpenAccount(ctx, asset.PaymentToken, asset.YieldPoolAccount(), authority); err != nil {
			return err
		}
		if err := tx.Create(&asset).Error; err != nil {
			return err
		}
		if err := l.Mint(ctx, asset.ShareToken, asset.HoldingAccount(), in.TotalTokens, authority); err != nil {
			return err
		}
		return recordEvent(tx, id, domain.EventCreated, in.Owner, map[string]interface{}{
			"total_tokens":     asset.TotalTokens,
			"price_per_token":  asset.PricePerToken,
			"annual_return_bp": asset.AnnualReturnBP,
			"metadata_uri":     asset.MetadataURI,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("asset_id", id.String()).Str("owner", in.Owner).
		Uint64("total_tokens", in.TotalTokens).Msg("property created")
	return &asset, nil
}
