package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Settlement event types.
const (
	EventCreated        = "CREATED"
	EventPurchased      = "PURCHASED"
	EventYieldDeposited = "YIELD_DEPOSITED"
	EventYieldClaimed   = "YIELD_CLAIMED"
	EventBridgeMinted   = "BRIDGE_MINTED"
)

// SettlementEvent is the append-only log of successful asset operations.
type SettlementEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	AssetID   uuid.UUID      `gorm:"column:asset_id;type:uuid;not null;index" json:"asset_id"`
	EventType string         `gorm:"column:event_type;type:varchar(32);not null" json:"event_type"`
	Actor     string         `gorm:"column:actor;type:varchar(128);not null" json:"actor"`
	EventData datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	CreatedAt time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (SettlementEvent) TableName() string {
	return "SettlementEvents"
}

func (e *SettlementEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
