package domain

import "time"

// LedgerToken is a unit type on the balance ledger (payment currency, shares of one
// asset, bridged units). Only MintAuthority may mint.
type LedgerToken struct {
	TokenID       string    `gorm:"column:token_id;type:varchar(128);primaryKey" json:"token_id"`
	MintAuthority string    `gorm:"column:mint_authority;type:varchar(128);not null" json:"mint_authority"`
	Supply        Units     `gorm:"column:supply;type:varchar(20);not null;default:'0'" json:"supply"`
	CreatedAt     time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (LedgerToken) TableName() string {
	return "LedgerTokens"
}

// LedgerAccount holds the balance of one holder in one token. Authority is the
// identity allowed to move funds out; for user accounts it is the holder itself.
type LedgerAccount struct {
	Token     string    `gorm:"column:token;type:varchar(128);primaryKey" json:"token"`
	Holder    string    `gorm:"column:holder;type:varchar(128);primaryKey" json:"holder"`
	Authority string    `gorm:"column:authority;type:varchar(128);not null" json:"authority"`
	Balance   Units     `gorm:"column:balance;type:varchar(20);not null;default:'0'" json:"balance"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (LedgerAccount) TableName() string {
	return "LedgerAccounts"
}
