package domain

import (
	"time"

	"estate-backend/internal/pkg/fixedpoint"

	"github.com/google/uuid"
)

// YieldSnapshot is the accumulator value a holder last claimed at. Rows are created
// on a holder's first claim; a missing row means zero.
type YieldSnapshot struct {
	AssetID         uuid.UUID         `gorm:"column:asset_id;type:uuid;primaryKey" json:"asset_id"`
	Holder          string            `gorm:"column:holder;type:varchar(128);primaryKey" json:"holder"`
	LastAccumulator fixedpoint.Scaled `gorm:"column:last_accumulator;type:varchar(40);not null" json:"last_accumulator"`
	CreatedAt       time.Time         `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time         `gorm:"column:updatedAt" json:"updatedAt"`
}

func (YieldSnapshot) TableName() string {
	return "YieldSnapshots"
}
