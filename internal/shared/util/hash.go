package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserKey returns a storage-safe identifier for a user ID. Google and
// guest IDs both contain a colon, which local paths and S3 keys should not.
func HashUserKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
