package ledger

import (
	"context"
	"errors"
	"math"

	"estate-backend/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger owns unit balances. Every method either applies fully or not at all.
type Ledger interface {
	CreateToken(ctx context.Context, tokenID, mintAuthority string) error
	OpenAccount(ctx context.Context, token, holder, authority string) error
	Mint(ctx context.Context, token, to string, amount uint64, authority string) error
	Transfer(ctx context.Context, token, from, to string, amount uint64, authority string) error
	BalanceOf(ctx context.Context, holder, token string) (uint64, error)
}

// Binder hands out a Ledger that runs inside the caller's transaction, so ledger
// movements commit or roll back together with the caller's own writes.
type Binder interface {
	Bind(tx *gorm.DB) Ledger
}

// GormLedger stores tokens and accounts through GORM.
type GormLedger struct {
	DB *gorm.DB
}

var (
	_ Ledger = (*GormLedger)(nil)
	_ Binder = (*GormLedger)(nil)
)

func (l *GormLedger) Bind(tx *gorm.DB) Ledger {
	return &GormLedger{DB: tx}
}

// CreateToken registers a token with zero supply.
func (l *GormLedger) CreateToken(ctx context.Context, tokenID, mintAuthority string) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.LedgerToken{}).Where("token_id = ?", tokenID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrTokenExists
		}
		return tx.Create(&domain.LedgerToken{TokenID: tokenID, MintAuthority: mintAuthority}).Error
	})
}

// OpenAccount creates an empty account controlled by authority instead of the holder.
func (l *GormLedger) OpenAccount(ctx context.Context, token, holder, authority string) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findToken(tx, token); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&domain.LedgerAccount{}).Where("token = ? AND holder = ?", token, holder).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAccountExists
		}
		return tx.Create(&domain.LedgerAccount{Token: token, Holder: holder, Authority: authority}).Error
	})
}

// Mint creates amount new units of token for to. Only the token's mint authority may mint.
func (l *GormLedger) Mint(ctx context.Context, token, to string, amount uint64, authority string) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tok, err := findToken(tx, token)
		if err != nil {
			return err
		}
		if tok.MintAuthority != authority {
			return ErrUnauthorized
		}
		supply := uint64(tok.Supply)
		if amount > math.MaxUint64-supply {
			return ErrBalanceOverflow
		}
		if err := tx.Model(&domain.LedgerToken{}).Where("token_id = ?", token).
			Update("supply", domain.Units(supply+amount)).Error; err != nil {
			return err
		}
		return credit(tx, token, to, amount)
	})
}

// Transfer moves amount of token from one holder to another on behalf of authority.
func (l *GormLedger) Transfer(ctx context.Context, token, from, to string, amount uint64, authority string) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findToken(tx, token); err != nil {
			return err
		}
		var src domain.LedgerAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ? AND holder = ?", token, from).First(&src).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if amount == 0 {
				return nil
			}
			return ErrInsufficientFunds
		}
		if err != nil {
			return err
		}
		if src.Authority != authority {
			return ErrUnauthorized
		}
		if uint64(src.Balance) < amount {
			return ErrInsufficientFunds
		}
		if amount == 0 || from == to {
			return nil
		}
		if err := tx.Model(&domain.LedgerAccount{}).Where("token = ? AND holder = ?", token, from).
			Update("balance", src.Balance-domain.Units(amount)).Error; err != nil {
			return err
		}
		return credit(tx, token, to, amount)
	})
}

// BalanceOf returns 0 for holders without an account.
func (l *GormLedger) BalanceOf(ctx context.Context, holder, token string) (uint64, error) {
	var acct domain.LedgerAccount
	err := l.DB.WithContext(ctx).Where("token = ? AND holder = ?", token, holder).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(acct.Balance), nil
}

// Accounts lists every account held by holder.
func (l *GormLedger) Accounts(ctx context.Context, holder string) ([]domain.LedgerAccount, error) {
	var accts []domain.LedgerAccount
	if err := l.DB.WithContext(ctx).Where("holder = ?", holder).Order("token").Find(&accts).Error; err != nil {
		return nil, err
	}
	return accts, nil
}

func findToken(tx *gorm.DB, token string) (*domain.LedgerToken, error) {
	var tok domain.LedgerToken
	if err := tx.Where("token_id = ?", token).First(&tok).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}
	return &tok, nil
}

// credit adds amount to holder's account, opening a self-controlled account if needed.
func credit(tx *gorm.DB, token, holder string, amount uint64) error {
	var dst domain.LedgerAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ? AND holder = ?", token, holder).First(&dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&domain.LedgerAccount{
			Token:     token,
			Holder:    holder,
			Authority: holder,
			Balance:   domain.Units(amount),
		}).Error
	}
	if err != nil {
		return err
	}
	if amount > math.MaxUint64-uint64(dst.Balance) {
		return ErrBalanceOverflow
	}
	return tx.Model(&domain.LedgerAccount{}).Where("token = ? AND holder = ?", token, holder).
		Update("balance", dst.Balance+domain.Units(amount)).Error
}
