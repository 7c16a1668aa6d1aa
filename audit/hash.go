// api/audit/hash.go
package audit

import (
	"crypto/sha256"
	"encoding/hex"
)

// GenesisHash is the well-known prev_hash of the first ledger entry. It is
// a fixed all-zero digest so independent verifiers agree on entry 1 without
// any shared state.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ComputeHash digests prevHash concatenated with the canonical encoding.
// Pure and deterministic; this is the only hash construction the chain uses.
func ComputeHash(prevHash string, canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// EntryHash recomputes the hash an entry should carry given its own fields
// and prev_hash. Used by the appender when sealing a new entry and by the
// verifier when checking a stored one.
func EntryHash(e Entry) (string, error) {
	canonical, err := CanonicalEncode(e)
	if err != nil {
		return "", err
	}
	return ComputeHash(e.PrevHash, canonical), nil
}
