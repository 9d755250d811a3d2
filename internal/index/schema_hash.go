package index

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ComputeSchemaHash digests an ordered field set into a deterministic,
// order-independent hash: fields are sorted canonically before hashing so
// two engines naming the same field set in a different order produce the
// same schema_hash.
func ComputeSchemaHash(fields []string) string {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x1f")))
	return hex.EncodeToString(sum[:])[:16]
}
