package gifbox

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Digest returns the lowercase hex SHA-512 of data (128 characters).
func Digest(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}

// NewStorageName returns a fresh opaque blob name. Names are random, so two
// uploads of identical bytes never share a blob.
func NewStorageName() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "") + "." + CanonicalExtension
}
