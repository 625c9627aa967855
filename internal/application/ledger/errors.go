package ledger

import "errors"

var (
	ErrInsufficientFunds = errors.New("Insufficient funds")
	ErrUnauthorized      = errors.New("Authority does not control this account")
	ErrUnknownToken      = errors.New("Token not found")
	ErrTokenExists       = errors.New("Token already exists")
	ErrAccountExists     = errors.New("Account already exists")
	ErrBalanceOverflow   = errors.New("Balance overflow")
)
