package storm

import (
	"encoding/binary"
)

const cryptSeed2 = 0xEEEEEEEE

// advance steps the feedback state after one word has been processed.
func advance(seed1, seed2, plain uint32) (uint32, uint32) {
	seed1 = ((^seed1 << 21) + 0x11111111) | (seed1 >> 11)
	seed2 = plain + seed2 + (seed2 << 5) + 3
	return seed1, seed2
}

// EncryptWords encrypts data in place with the given key.
func (t *Table) EncryptWords(data []uint32, seed1 uint32) {
	seed2 := uint32(cryptSeed2)

	for i, plain := range data {
		seed2 += t[0x400+(seed1&0xFF)]
		data[i] = plain ^ (seed1 + seed2)
		seed1, seed2 = advance(seed1, seed2, plain)
	}
}

// DecryptWords decrypts data in place with the given key. The state is fed
// with the recovered plaintext, so decryption only inverts EncryptWords when
// applied to the same word stream from its first word.
func (t *Table) DecryptWords(data []uint32, seed1 uint32) {
	seed2 := uint32(cryptSeed2)

	for i, cipher := range data {
		seed2 += t[0x400+(seed1&0xFF)]
		plain := cipher ^ (seed1 + seed2)
		data[i] = plain
		seed1, seed2 = advance(seed1, seed2, plain)
	}
}

// EncryptBytes encrypts data in place as little-endian words.
// A trailing remainder of one to three bytes is left as is.
func (t *Table) EncryptBytes(data []byte, seed1 uint32) {
	seed2 := uint32(cryptSeed2)

	for i := 0; i+4 <= len(data); i += 4 {
		seed2 += t[0x400+(seed1&0xFF)]
		plain := binary.LittleEndian.Uint32(data[i:])
		binary.LittleEndian.PutUint32(data[i:], plain^(seed1+seed2))
		seed1, seed2 = advance(seed1, seed2, plain)
	}
}

// DecryptBytes decrypts data in place as little-endian words.
// A trailing remainder of one to three bytes is left as is.
func (t *Table) DecryptBytes(data []byte, seed1 uint32) {
	seed2 := uint32(cryptSeed2)

	for i := 0; i+4 <= len(data); i += 4 {
		seed2 += t[0x400+(seed1&0xFF)]
		plain := binary.LittleEndian.Uint32(data[i:]) ^ (seed1 + seed2)
		binary.LittleEndian.PutUint32(data[i:], plain)
		seed1, seed2 = advance(seed1, seed2, plain)
	}
}

// EncryptWords encrypts data in place with the default table.
func EncryptWords(data []uint32, seed1 uint32) { defaultTable.EncryptWords(data, seed1) }

// DecryptWords decrypts data in place with the default table.
func DecryptWords(data []uint32, seed1 uint32) { defaultTable.DecryptWords(data, seed1) }

// EncryptBytes encrypts data in place with the default table.
func EncryptBytes(data []byte, seed1 uint32) { defaultTable.EncryptBytes(data, seed1) }

// DecryptBytes decrypts data in place with the default table.
func DecryptBytes(data []byte, seed1 uint32) { defaultTable.DecryptBytes(data, seed1) }
