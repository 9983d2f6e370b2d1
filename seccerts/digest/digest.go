/*
Package digest derives the stable 16-hex-character identifier that keys every
certificate across the system. The digest is a pure function of a certificate's
identity fields, so it survives re-runs, re-downloads and re-extraction.
*/
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator joins canonicalized identity fields before hashing. It is a
// control character so it can never collide with field content.
const Separator = "\x1f"

// Length is the number of hex characters in a digest.
const Length = 16

// Canonicalize maps a field to its canonical form: trimmed, lowercased,
// internal whitespace collapsed to single spaces, NFC-normalized.
func Canonicalize(field string) string {
	field = norm.NFC.String(field)
	field = strings.ToLower(strings.TrimSpace(field))
	return strings.Join(strings.Fields(field), " ")
}

// Compute returns the digest for the given identity fields.
func Compute(fields ...string) string {
	canonical := make([]string, len(fields))
	for i, field := range fields {
		canonical[i] = Canonicalize(field)
	}
	payload := strings.Join(canonical, Separator)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:Length]
}

// Assigner hands out digests while resolving collisions deterministically:
// when the computed digest is already taken by a different certificate, a
// "\x1f<n>" suffix is appended to the hash input (n starting at 1) and the
// digest recomputed until unique.
type Assigner struct {
	taken map[string]string // digest -> joined canonical identity that owns it
}

func NewAssigner() *Assigner {
	return &Assigner{taken: make(map[string]string)}
}

// Seed marks a digest as taken by the given identity, e.g. when loading the
// previous snapshot so that existing assignments stay stable.
func (a *Assigner) Seed(digestValue string, fields ...string) {
	a.taken[digestValue] = canonicalJoin(fields)
}

// Assign returns the digest for the identity fields, applying the collision
// suffix rule against every previously assigned digest.
func (a *Assigner) Assign(fields ...string) string {
	identity := canonicalJoin(fields)

	payload := identity
	for n := 0; ; n++ {
		if n > 0 {
			payload = identity + Separator + strconv.Itoa(n)
		}
		sum := sha256.Sum256([]byte(payload))
		candidate := hex.EncodeToString(sum[:])[:Length]

		owner, exists := a.taken[candidate]
		if !exists {
			a.taken[candidate] = identity
			return candidate
		}
		if owner == identity {
			// same certificate asking again
			return candidate
		}
	}
}

func canonicalJoin(fields []string) string {
	canonical := make([]string, len(fields))
	for i, field := range fields {
		canonical[i] = Canonicalize(field)
	}
	return strings.Join(canonical, Separator)
}
