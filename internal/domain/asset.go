package domain

import (
	"encoding/hex"
	"errors"
	"time"

	"estate-backend/internal/pkg/fixedpoint"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MetadataHashLen is the byte length of Asset.MetadataHash once decoded.
const MetadataHashLen = 32

var ErrInvalidMetadataHash = errors.New("metadata_hash must be 32 bytes of hex")

// Asset is one tokenised property. TotalTokens, PricePerToken and the token ids are
// fixed at creation; TokensLeft only decreases and YieldAccumulator only increases.
type Asset struct {
	AssetID          uuid.UUID         `gorm:"column:asset_id;type:uuid;primaryKey" json:"asset_id"`
	Owner            string            `gorm:"column:owner;type:varchar(128);not null;index" json:"owner"`
	MetadataHash     string            `gorm:"column:metadata_hash;type:char(64);not null" json:"metadata_hash"`
	MetadataURI      string            `gorm:"column:metadata_uri;type:text;not null" json:"metadata_uri"`
	AnnualReturnBP   uint16            `gorm:"column:annual_return_bp;not null;default:0" json:"annual_return_bp"`
	TotalTokens      Units             `gorm:"column:total_tokens;type:varchar(20);not null" json:"total_tokens"`
	TokensLeft       Units             `gorm:"column:tokens_left;type:varchar(20);not null" json:"tokens_left"`
	PricePerToken    Units             `gorm:"column:price_per_token;type:varchar(20);not null" json:"price_per_token"`
	YieldAccumulator fixedpoint.Scaled `gorm:"column:yield_accumulator;type:varchar(40);not null;default:'0'" json:"yield_accumulator"`
	Authority        string            `gorm:"column:authority;type:varchar(128);not null" json:"authority"`
	ShareToken       string            `gorm:"column:share_token;type:varchar(128);not null" json:"share_token"`
	BridgeToken      string            `gorm:"column:bridge_token;type:varchar(128);not null" json:"bridge_token"`
	PaymentToken     string            `gorm:"column:payment_token;type:varchar(64);not null" json:"payment_token"`
	// Revision is bumped by every mutation that changes the persisted record.
	Revision  int64     `gorm:"column:revision;not null;default:0" json:"revision"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Asset) TableName() string {
	return "Assets"
}

// BeforeCreate: never insert zero UUID for primary key; generate random when not set.
func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.AssetID == uuid.Nil {
		a.AssetID = uuid.New()
	}
	return nil
}

// HoldingAccount is the ledger account holding unsold shares.
func (a *Asset) HoldingAccount() string { return HoldingAccount(a.AssetID) }

// YieldPoolAccount is the ledger account holding deposited, unclaimed yield.
func (a *Asset) YieldPoolAccount() string { return YieldPoolAccount(a.AssetID) }

// HashBytes decodes MetadataHash.
func (a *Asset) HashBytes() ([MetadataHashLen]byte, error) {
	return DecodeMetadataHash(a.MetadataHash)
}

// DecodeMetadataHash parses a 64 character hex string.
func DecodeMetadataHash(s string) ([MetadataHashLen]byte, error) {
	var out [MetadataHashLen]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != MetadataHashLen {
		return out, ErrInvalidMetadataHash
	}
	copy(out[:], b)
	return out, nil
}
