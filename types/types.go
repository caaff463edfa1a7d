// Package types provides common type definitions for stakeberry.
package types

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// AccountName identifies an account. Names are lowercase, start with a
// letter, and are 3..16 characters of [a-z0-9.-].
type AccountName string

// AssetSymbol identifies an asset. Symbols are uppercase, dot-separated
// for sub-assets ("BERRY", "MARKET.GOLD").
type AssetSymbol string

// ObjectID is the per-table identifier assigned by the object store.
type ObjectID uint64

// Height represents a block height in the chain.
type Height int64

// Hash represents a cryptographic hash (typically 32 bytes for SHA-256).
type Hash []byte

var accountNameRe = regexp.MustCompile(`^[a-z][a-z0-9.-]{2,15}$`)
var assetSymbolRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,7}(\.[A-Z][A-Z0-9]{0,7})*$`)

// IsValid reports whether the name is well formed. Consecutive dots or
// dashes and trailing separators are rejected.
func (n AccountName) IsValid() bool {
	s := string(n)
	if !accountNameRe.MatchString(s) {
		return false
	}
	if strings.Contains(s, "..") || strings.Contains(s, "--") {
		return false
	}
	last := s[len(s)-1]
	return last != '.' && last != '-'
}

// String returns the name as a string.
func (n AccountName) String() string {
	return string(n)
}

// IsEmpty returns true if the name is empty.
func (n AccountName) IsEmpty() bool {
	return n == ""
}

// IsValid reports whether the symbol is well formed.
func (s AssetSymbol) IsValid() bool {
	return assetSymbolRe.MatchString(string(s))
}

// String returns the symbol as a string.
func (s AssetSymbol) String() string {
	return string(s)
}

// Parent returns the parent symbol for a sub-asset ("A.B" -> "A") and
// the empty symbol for a top-level asset.
func (s AssetSymbol) Parent() AssetSymbol {
	i := strings.LastIndexByte(string(s), '.')
	if i < 0 {
		return ""
	}
	return s[:i]
}

// String returns the height as a string.
func (h Height) String() string {
	return fmt.Sprintf("%d", h)
}

// Int64 returns the height as an int64.
func (h Height) Int64() int64 {
	return int64(h)
}

// String returns the hash as a hexadecimal string.
func (h Hash) String() string {
	return hex.EncodeToString(h)
}

// Bytes returns the raw bytes of the hash.
func (h Hash) Bytes() []byte {
	return []byte(h)
}

// IsEmpty returns true if the hash is nil or zero-length.
func (h Hash) IsEmpty() bool {
	return len(h) == 0
}

// Equal returns true if the hashes are equal.
func (h Hash) Equal(other Hash) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// HashFromHex parses a hexadecimal string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return Hash(b), nil
}
