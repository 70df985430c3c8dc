// Package dedup detects already-processed upstream responses so a download
// cycle can skip work its provider has produced before. It combines a
// canonicalizing content hasher with a small persisted store of
// (date, hash) records, one file per provider.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash canonicalizes a JSON response body and returns the hex-encoded
// SHA-256 of the canonical form. Two responses that decode to the same value
// hash identically regardless of key order or whitespace: Go re-marshals
// maps with sorted keys and no extraneous whitespace.
func Hash(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("failed to decode response for hashing: %w", err)
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize response: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
