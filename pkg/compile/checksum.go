package compile

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"slices"
	"strings"

	"github.com/gantry-dev/gantry/internal"
)

// checksumOf digests every materialized secret payload into a single stable
// hash. Payloads are ordered by composite key and every field is length
// prefixed, so the result is a pure function of logical content: reordering
// containers or files cannot change it, flipping any payload byte must.
func checksumOf(payloads []secretPayload) string {
	ordered := slices.Clone(payloads)
	slices.SortFunc(ordered, func(a, b secretPayload) int {
		return strings.Compare(a.key, b.key)
	})

	digest := sha256.New()
	for _, payload := range ordered {
		writeField(digest, []byte(payload.key))
		for _, key := range internal.SortedKeys(payload.data) {
			writeField(digest, []byte(key))
			writeField(digest, payload.data[key])
		}
	}

	return hex.EncodeToString(digest.Sum(nil))
}

func writeField(digest hash.Hash, value []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(value)))
	digest.Write(length[:])
	digest.Write(value)
}
