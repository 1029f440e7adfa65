package guardstack

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// Checksum selects the algorithm used by the hash layers.
type Checksum uint8

const (
	// ChecksumFold rotates the running value left by one bit and XORs in the
	// next word (or byte). Cheap, order-sensitive, not collision resistant.
	ChecksumFold Checksum = iota

	// ChecksumXXH64 uses XXH64.
	ChecksumXXH64

	// ChecksumBLAKE3 uses the first 8 bytes of a BLAKE3-256 digest.
	ChecksumBLAKE3
)

// foldSeed is the initial value of the fold checksum.
const foldSeed uint64 = 0x600D4A54

var checksumNames = [...]string{
	ChecksumFold:   "fold",
	ChecksumXXH64:  "xxh64",
	ChecksumBLAKE3: "blake3",
}

func (c Checksum) valid() bool {
	return int(c) < len(checksumNames)
}

func (c Checksum) String() string {
	if !c.valid() {
		return fmt.Sprintf("checksum(%d)", uint8(c))
	}

	return checksumNames[c]
}

// ParseChecksum maps "fold", "xxh64" or "blake3" to a Checksum.
// The empty string selects ChecksumFold.
func ParseChecksum(s string) (Checksum, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return ChecksumFold, nil
	}

	for i, candidate := range checksumNames {
		if candidate == name {
			return Checksum(i), nil
		}
	}

	return ChecksumFold, fmt.Errorf("unknown checksum %q: %w", s, ErrInvalidInput)
}

// sumBytes checksums an arbitrary byte slice.
func (c Checksum) sumBytes(data []byte) uint64 {
	switch c {
	case ChecksumXXH64:
		return xxhash.Sum64(data)
	case ChecksumBLAKE3:
		digest := blake3.Sum256(data)

		return binary.LittleEndian.Uint64(digest[:8])
	default:
		hash := foldSeed
		for _, b := range data {
			hash = bits.RotateLeft64(hash, 1) ^ uint64(b)
		}

		return hash
	}
}

// sumWords checksums a fixed list of 64-bit words.
//
// The fold variant consumes whole words, matching how the metadata checksum
// has always been defined. The other algorithms hash the little-endian
// encoding.
func (c Checksum) sumWords(words ...uint64) uint64 {
	if c == ChecksumFold {
		hash := foldSeed
		for _, w := range words {
			hash = bits.RotateLeft64(hash, 1) ^ w
		}

		return hash
	}

	buf := make([]byte, 0, 8*len(words))
	for _, w := range words {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}

	return c.sumBytes(buf)
}
