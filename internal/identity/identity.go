// Package identity derives a stable pseudo-identity for inbound requests.
//
// The fingerprint is a best-effort key for quota accounting, not a security
// boundary: distinct users behind the same NAT with identical client
// signatures collide, and that is accepted.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the hex length of a derived identity.
const fingerprintLen = 32

// Fingerprint derives a deterministic identity token from the request's
// network origin and client signature. It is total and never fails; empty
// inputs still produce a stable token.
func Fingerprint(origin, clientSignature string) string {
	sum := sha256.Sum256([]byte(origin + ":" + clientSignature))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// Short returns a truncated identity suitable for log lines.
func Short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
