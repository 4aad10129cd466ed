package storm

import (
	"golang.org/x/text/encoding/charmap"
)

// HashType selects one of the four independent hash channels.
type HashType uint32

const (
	HashTableOffset HashType = 0x000 // slot index in the hash table
	HashNameA       HashType = 0x100 // first name check
	HashNameB       HashType = 0x200 // second name check
	HashFileKey     HashType = 0x300 // encryption key
)

const (
	hashSeed1 = 0x7FED7FED
	hashSeed2 = 0xEEEEEEEE
)

// Hash folds input through the key-stream table on the given channel.
// Bytes are upper-cased with ASCII rules before hashing, so names that differ
// only in letter case hash identically.
func (t *Table) Hash(input []byte, kind HashType) uint32 {
	seed1 := uint32(hashSeed1)
	seed2 := uint32(hashSeed2)

	for _, b := range input {
		val := uint32(upper(b))
		seed1 = t[uint32(kind)+val] ^ (seed1 + seed2)
		seed2 = val + seed1 + seed2 + (seed2 << 5) + 3
	}

	return seed1
}

// HashString hashes a filename. Names are treated as 8-bit Latin-1 text; a
// name holding characters outside Latin-1 is hashed over its UTF-8 bytes.
// Only ASCII letters are case-folded, so "café" and "CAFÉ" hash differently.
func (t *Table) HashString(name string, kind HashType) uint32 {
	return t.Hash(nameBytes(name), kind)
}

// Hash hashes input with the default table.
func Hash(input []byte, kind HashType) uint32 {
	return defaultTable.Hash(input, kind)
}

// HashString hashes a filename with the default table. Only ASCII letters
// are case-folded.
func HashString(name string, kind HashType) uint32 {
	return defaultTable.HashString(name, kind)
}

func nameBytes(name string) []byte {
	encoded, err := charmap.ISO8859_1.NewEncoder().String(name)
	if err != nil {
		return []byte(name)
	}
	return []byte(encoded)
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
