// Package idgen mints the opaque record ids used across the memory graph:
// "<prefix>_<epoch_ms>_<6-char base36 random>". Prefixes are
// never parsed back out by callers; they exist purely so a human skimming
// logs can tell a memory id from a session or proposal id at a glance.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// New returns a fresh id with the given prefix ("mem", "sess", "prop",
// "found").
func New(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), randomBase36(6))
}

func randomBase36(n int) string {
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36Alphabet))))
		if err != nil {
			// crypto/rand failure on a sane OS is effectively impossible;
			// fall back to uuid's own randomness source rather than
			// degrading to a fixed character (which would collapse every
			// id minted during an outage onto the same suffix).
			out[i] = base36Alphabet[fallbackByte(i)%len(base36Alphabet)]
			continue
		}
		out[i] = base36Alphabet[idx.Int64()]
	}
	return string(out)
}

// fallbackByte draws a byte of randomness from a freshly minted UUID when
// crypto/rand itself has failed. uuid.New() panics rather than silently
// degrading on a broken entropy source, so a panic here surfaces the
// underlying system fault instead of minting a second layer of fallback.
func fallbackByte(i int) int {
	id := uuid.New()
	return int(id[i%len(id)])
}
