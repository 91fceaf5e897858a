// Package identity generates deterministic, content-addressed identifiers
// for records that have no natural primary key upstream.
package identity

import (
	"crypto/md5"
	"strings"

	"github.com/google/uuid"
)

// Separator joins the input parts before hashing. Changing it would change
// every previously generated id, so it is fixed forever.
const Separator = "-"

// StableID returns a 36-character lowercase identifier in the canonical
// 8-4-4-4-12 grouped-hex layout, derived from the MD5 digest of the parts.
// The same parts always produce the same id; callers must include enough
// discriminating fields (pull request id, event kind, raw timestamp) to keep
// distinct events from colliding.
func StableID(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, Separator)))
	id, err := uuid.FromBytes(sum[:])
	if err != nil {
		// FromBytes only fails on a length mismatch, which cannot
		// happen with a 16-byte digest.
		panic(err)
	}
	return id.String()
}
