package file

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes returns the hex sha256 digest of the payload.
func HashBytes(payload []byte) string {
	digest := sha256.Sum256(payload)
	return hex.EncodeToString(digest[:])
}
