package domain

import (
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const authorityDomain = "estate-asset-authority"

// AssetAuthority derives the identity that controls an asset's pools and mints.
// It depends only on the asset id, so every process computes the same value.
func AssetAuthority(assetID uuid.UUID) string {
	buf := make([]byte, 0, len(authorityDomain)+len(assetID))
	buf = append(buf, authorityDomain...)
	buf = append(buf, assetID[:]...)
	sum := blake2b.Sum256(buf)
	return "authority:" + hex.EncodeToString(sum[:])
}

func HoldingAccount(assetID uuid.UUID) string {
	return AssetAuthority(assetID) + "/holding"
}

func YieldPoolAccount(assetID uuid.UUID) string {
	return AssetAuthority(assetID) + "/yield"
}

func ShareTokenID(assetID uuid.UUID) string {
	return "share:" + assetID.String()
}

func BridgeTokenID(assetID uuid.UUID) string {
	return "bridge:" + assetID.String()
}
