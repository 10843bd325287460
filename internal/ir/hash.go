package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for derived keys.
// Version suffix enables future algorithm migration.
const (
	DomainQuery = "livequery/query/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryKey derives a stable key for a query against table.
// Two descriptions with the same ordered JSON form share a key.
func QueryKey(table string, description any) (string, error) {
	body, err := MarshalOrdered(description)
	if err != nil {
		return "", fmt.Errorf("QueryKey: failed to marshal: %w", err)
	}
	data := make([]byte, 0, len(table)+1+len(body))
	data = append(data, table...)
	data = append(data, 0x00)
	data = append(data, body...)
	return hashWithDomain(DomainQuery, data), nil
}

// MustQueryKey is like QueryKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustQueryKey(table string, description any) string {
	key, err := QueryKey(table, description)
	if err != nil {
		panic(err)
	}
	return key
}
