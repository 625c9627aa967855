package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment is a settled Stripe PaymentIntent that was credited to the ledger as
// payment-token units. One row per PaymentIntent.
type Payment struct {
	ID                    uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StripePaymentIntentID string         `gorm:"column:stripe_payment_intent_id;type:varchar(255);uniqueIndex;not null" json:"stripe_payment_intent_id"`
	StripeEventID         string         `gorm:"column:stripe_event_id;type:varchar(255);not null" json:"stripe_event_id"`
	Identity              string         `gorm:"column:identity;type:varchar(128);not null;index" json:"identity"`
	Token                 string         `gorm:"column:token;type:varchar(128);not null" json:"token"`
	Units                 Units          `gorm:"column:units;type:varchar(20);not null" json:"units"`
	AmountPaid            int64          `gorm:"column:amount_paid;not null" json:"amount_paid"`
	Currency              string         `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status                string         `gorm:"column:status;type:varchar(32);not null" json:"status"`
	RawPaymentIntent      datatypes.JSON `gorm:"column:raw_payment_intent;type:jsonb;not null" json:"raw_payment_intent"`
	CreatedAt             time.Time      `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt             time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Payment) TableName() string {
	return "Payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
