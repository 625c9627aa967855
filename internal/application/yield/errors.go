package yield

import (
	"errors"

	"estate-backend/internal/domain"
	"estate-backend/internal/pkg/fixedpoint"
)

var (
	ErrAssetNotFound       = errors.New("Asset not found")
	ErrInsufficientTokens  = errors.New("Insufficient tokens available")
	ErrInvalidAmount       = errors.New("Invalid amount")
	ErrNoYield             = errors.New("No yield available")
	ErrNotOwner            = errors.New("Only the asset owner can do this")
	ErrSnapshotLimit       = errors.New("Holder snapshot capacity reached")
	ErrInvalidMetadataHash = domain.ErrInvalidMetadataHash

	// Internal consistency faults: unreachable while the creation and monotonicity
	// invariants hold.
	ErrDivisionByZero      = fixedpoint.ErrDivisionByZero
	ErrSnapshotConsistency = errors.New("Snapshot is ahead of the yield accumulator")

	ErrArithmeticOverflow = fixedpoint.ErrOverflow
)
