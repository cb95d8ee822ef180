package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for derived identifiers.
// The version suffix leaves room for algorithm migration.
const (
	DomainFingerprint = "formdoc/fingerprint/v1"
)

// Sum returns the hex SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Digest returns the hex SHA-256 of the canonical serialization of v.
func Digest(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return Sum(b), nil
}

// HashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + part0 + 0x00 + part1 ...).
// The null separators prevent boundary ambiguity between parts.
func HashWithDomain(domain string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
