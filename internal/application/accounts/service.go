// Package accounts exposes ledger balances to users and the payment token faucet.
package accounts

import (
	"context"
	"errors"

	"estate-backend/internal/application/ledger"

	"github.com/rs/zerolog/log"
)

// FaucetAuthority is the mint authority of the payment token.
const FaucetAuthority = "faucet"

var ErrInvalidAmount = errors.New("Invalid amount")

// Balance is one ledger position of a holder.
type Balance struct {
	Token   string `json:"token"`
	Balance uint64 `json:"balance"`
}

// Service reads balances and funds identities with the payment token.
type Service struct {
	Ledger       *ledger.GormLedger
	PaymentToken string
}

// EnsurePaymentToken registers the payment token on first start.
func (s *Service) EnsurePaymentToken(ctx context.Context) error {
	err := s.Ledger.CreateToken(ctx, s.PaymentToken, FaucetAuthority)
	if errors.Is(err, ledger.ErrTokenExists) {
		return nil
	}
	return err
}

// Balances lists every ledger position of identity.
func (s *Service) Balances(ctx context.Context, identity string) ([]Balance, error) {
	accts, err := s.Ledger.Accounts(ctx, identity)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(accts))
	for _, a := range accts {
		out = append(out, Balance{Token: a.Token, Balance: uint64(a.Balance)})
	}
	return out, nil
}

// Faucet mints amount of the payment token to identity.
func (s *Service) Faucet(ctx context.Context, identity string, amount uint64) error {
	if amount == 0 || identity == "" {
		return ErrInvalidAmount
	}
	if err := s.Ledger.Mint(ctx, s.PaymentToken, identity, amount, FaucetAuthority); err != nil {
		return err
	}
	log.Info().Str("identity", identity).Uint64("amount", amount).Str("token", s.PaymentToken).Msg("faucet mint")
	return nil
}
