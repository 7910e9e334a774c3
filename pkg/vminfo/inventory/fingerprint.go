package inventory

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies a logical query. Two descriptors that differ only in
// term order, duplicate terms, the letter case of names or patterns, Skip or
// Top share a fingerprint.
type Fingerprint string

func (f Fingerprint) String() string {
	return string(f)
}

// Short is the 12 character prefix used in logs and listings.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// fingerprintKey separates fingerprints from any other BLAKE3 use. Bump the
// version suffix when the canonical encoding changes.
var fingerprintKey = blake3.Sum256([]byte("vminfo result cache fingerprint v1"))

// FingerprintOf hashes the canonical encoding of d with keyed BLAKE3.
func FingerprintOf(d Descriptor) Fingerprint {
	n := d.Normalize()

	var b strings.Builder
	b.WriteString("regexp=")
	b.WriteString(strconv.FormatBool(n.RegexpMode))
	b.WriteString("\nextensions=")
	b.WriteString(strconv.FormatBool(n.IncludeExtensions))
	b.WriteString("\ntags=")
	b.WriteString(strconv.FormatBool(n.IncludeTags))
	// Length prefixes keep terms containing the separators unambiguous.
	for _, term := range n.Terms {
		b.WriteString("\nterm:")
		b.WriteString(strconv.Itoa(len(term)))
		b.WriteByte(':')
		b.WriteString(term)
	}
	for _, sub := range n.Subscriptions {
		b.WriteString("\nsubscription:")
		b.WriteString(sub)
	}

	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("inventory: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(b.String()))
	return Fingerprint(hex.EncodeToString(hasher.Sum(nil)))
}
