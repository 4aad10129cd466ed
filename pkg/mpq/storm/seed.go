package storm

import (
	"fmt"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
)

// seedCheckMask must leave no bits set in the second decrypted word. It is a
// plausibility check only and can accept a wrong seed.
const seedCheckMask = 0xFFFC0000

// DetectSeed recovers the key of an encrypted block whose first plaintext word
// is known. cipher0 and cipher1 are the first two encrypted words of the block.
// Candidates are tried in key-stream index order and the first one passing
// both checks wins.
func (t *Table) DetectSeed(cipher0, cipher1, plain0 uint32) (uint32, error) {
	temp := (cipher0 ^ plain0) - cryptSeed2

	for i := uint32(0); i < 0x100; i++ {
		seed1 := temp - t[0x400+i]
		seed2 := uint32(cryptSeed2) + t[0x400+(seed1&0xFF)]
		result := cipher0 ^ (seed1 + seed2)
		if result != plain0 {
			continue
		}

		candidate := seed1

		seed1, seed2 = advance(seed1, seed2, result)
		seed2 += t[0x400+(seed1&0xFF)]
		result = cipher1 ^ (seed1 + seed2)

		if result&seedCheckMask == 0 {
			return candidate, nil
		}
	}

	return 0, fmt.Errorf("%w: no candidate matches plaintext 0x%08x", mpqerrors.ErrSeedNotFound, plain0)
}

// DetectSeed recovers a block key with the default table.
func DetectSeed(cipher0, cipher1, plain0 uint32) (uint32, error) {
	return defaultTable.DetectSeed(cipher0, cipher1, plain0)
}
