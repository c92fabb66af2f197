// Package seeds derives deterministic sub-account addresses from a role tag
// and one or more parent addresses, and provides one-way hashing of the
// duress trigger secret.
//
// Derived addresses are stable: the same (tag, parents...) pair always maps
// to the same address, so the vault, alert, and flag accounts for an owner
// can be located without any lookup table.
package seeds

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Role tags for derived sub-accounts.
const (
	TagConfig      = "panic_config"
	TagVault       = "vault"
	TagAlert       = "alert"
	TagAggressor   = "aggressor"
	TagCompromised = "compromised"
)

// HashSize is the byte length of a trigger hash.
const HashSize = sha256.Size

// Derive computes the deterministic address for (tag, parts...).
// The result is a 20-byte address in 0x-hex form, the same shape as a
// regular wallet address, so derived accounts slot into the ledger
// unchanged.
func Derive(tag string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(tag))
	for _, p := range parts {
		h.Write([]byte{0}) // domain separator between components
		h.Write([]byte(strings.ToLower(p)))
	}
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[:20])
}

// VaultAddress returns the custody account address for an owner.
func VaultAddress(owner string) string {
	return Derive(TagVault, owner)
}

// AlertID returns the deterministic identifier for an (owner, contact)
// alert record. At most one alert exists per pair.
func AlertID(owner, contact string) string {
	return Derive(TagAlert, owner, contact)
}

// HashTrigger computes the one-way digest of a duress secret.
// The plaintext is never stored; only this digest is persisted.
func HashTrigger(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:]
}

// VerifyTrigger compares a candidate secret against a stored digest in
// constant time. The comparison cost does not depend on where the first
// differing byte is.
func VerifyTrigger(secret, storedHash []byte) bool {
	if len(storedHash) != HashSize {
		return false
	}
	candidate := sha256.Sum256(secret)
	return subtle.ConstantTimeCompare(candidate[:], storedHash) == 1
}

// EncodeHash renders a trigger hash as lowercase hex for storage/transport.
func EncodeHash(hash []byte) string {
	return hex.EncodeToString(hash)
}

// DecodeHash parses a hex-encoded trigger hash. Returns (nil, false) if the
// input is not exactly 32 bytes of hex.
func DecodeHash(s string) ([]byte, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != HashSize {
		return nil, false
	}
	return b, true
}
