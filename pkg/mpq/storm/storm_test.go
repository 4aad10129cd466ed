package storm

import (
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
)

func TestBuildTableIsReproducible(t *testing.T) {
	first := BuildTable()
	second := BuildTable()

	require.Equal(t, *first, *second)
	assert.Equal(t, *first, *Default())
	assert.NotZero(t, first[0])
	assert.NotZero(t, first[TableSize-1])
}

func TestHashWellKnownTableKeys(t *testing.T) {
	testCases := []struct {
		name     string
		expected uint32
	}{
		{name: "(hash table)", expected: 0xC3AF3770},
		{name: "(block table)", expected: 0xEC83B3A3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, HashString(tc.name, HashFileKey))
		})
	}
}

func TestHashIsCaseInsensitive(t *testing.T) {
	for _, kind := range []HashType{HashTableOffset, HashNameA, HashNameB, HashFileKey} {
		assert.Equal(t, HashString("Foo.txt", kind), HashString("FOO.TXT", kind))
		assert.Equal(t, HashString("units\\human\\footman.mdx", kind), HashString("UNITS\\HUMAN\\FOOTMAN.MDX", kind))
	}
}

func TestHashChannelsAreIndependent(t *testing.T) {
	name := "war3map.j"
	seen := map[uint32]HashType{}
	for _, kind := range []HashType{HashTableOffset, HashNameA, HashNameB, HashFileKey} {
		h := HashString(name, kind)
		_, dup := seen[h]
		assert.False(t, dup, "channel 0x%03x collides", uint32(kind))
		seen[h] = kind
	}
}

func TestHashIsDeterministic(t *testing.T) {
	input := []byte("replay.smk")
	assert.Equal(t, Hash(input, HashNameA), Hash(input, HashNameA))
	assert.Equal(t, Hash(input, HashNameA), HashString("replay.smk", HashNameA))
	assert.NotEqual(t, HashString("a.txt", HashNameA), HashString("b.txt", HashNameA))
}

func TestHashLatin1Names(t *testing.T) {
	// "é" is a single Latin-1 byte, so the UTF-8 form must not leak into the hash.
	assert.Equal(t, Hash([]byte{'c', 'a', 'f', 0xE9}, HashNameA), HashString("café", HashNameA))
}

func TestHashFoldsOnlyASCII(t *testing.T) {
	testCases := []struct {
		name  string
		lower string
		upper string
		same  bool
	}{
		{name: "ascii", lower: "war3map.w3e", upper: "WAR3MAP.W3E", same: true},
		{name: "latin1 stem ascii extension", lower: "café.txt", upper: "café.TXT", same: true},
		{name: "latin1 letter", lower: "café.txt", upper: "CAFÉ.TXT", same: false},
		{name: "latin1 letter alone", lower: "é", upper: "É", same: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, kind := range []HashType{HashTableOffset, HashNameA, HashNameB, HashFileKey} {
				lower, upper := HashString(tc.lower, kind), HashString(tc.upper, kind)
				if tc.same {
					assert.Equal(t, lower, upper)
				} else {
					assert.NotEqual(t, lower, upper)
				}
			}
		})
	}
}

func TestEncryptDecryptWordsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, n := range []int{1, 2, 3, 16, 257} {
		for i := 0; i < 8; i++ {
			key := rng.Uint32()
			plain := make([]uint32, n)
			for j := range plain {
				plain[j] = rng.Uint32()
			}

			data := append([]uint32(nil), plain...)
			EncryptWords(data, key)
			if n > 1 {
				assert.NotEqual(t, plain, data)
			}
			DecryptWords(data, key)
			require.Equal(t, plain, data, "n=%d key=0x%08x", n, key)
		}
	}
}

func TestEncryptDecryptBytesMatchesWords(t *testing.T) {
	words := []uint32{0x11223344, 0xDEADBEEF, 0x00000000, 0xFFFFFFFF}
	raw := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(raw[i*4:], w)
	}

	EncryptWords(words, 0xC3AF3770)
	EncryptBytes(raw, 0xC3AF3770)

	for i, w := range words {
		assert.Equal(t, w, binary.LittleEndian.Uint32(raw[i*4:]))
	}

	DecryptBytes(raw, 0xC3AF3770)
	assert.Equal(t, uint32(0x11223344), binary.LittleEndian.Uint32(raw))
}

func TestEncryptBytesLeavesRemainder(t *testing.T) {
	plain := []byte{1, 2, 3, 4, 5, 6, 7}
	data := append([]byte(nil), plain...)

	EncryptBytes(data, 0x12345678)
	assert.NotEqual(t, plain[:4], data[:4])
	assert.Equal(t, plain[4:], data[4:])

	DecryptBytes(data, 0x12345678)
	assert.Equal(t, plain, data)

	short := []byte{9, 8, 7}
	EncryptBytes(short, 0x12345678)
	assert.Equal(t, []byte{9, 8, 7}, short)
}

func TestDetectSeed(t *testing.T) {
	testCases := []struct {
		name  string
		seed  uint32
		plain []uint32
	}{
		{name: "sector table", seed: 0x1234ABCD, plain: []uint32{0x0C, 0x1000, 0x1800}},
		{name: "high seed", seed: 0xC3AF3770, plain: []uint32{0x2C, 0x200, 0x400, 0x600}},
		{name: "small seed", seed: 0x00000005, plain: []uint32{0x08, 0x35}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := append([]uint32(nil), tc.plain...)
			EncryptWords(data, tc.seed)

			seed, err := DetectSeed(data[0], data[1], tc.plain[0])
			require.NoError(t, err)
			assert.Equal(t, tc.seed, seed)
		})
	}
}

func TestDetectSeedNotFound(t *testing.T) {
	data := []uint32{0x0C, 0x1000}
	EncryptWords(data, 0x0BADF00D)

	// Wrong plaintext guess: no candidate survives the first check.
	_, err := DetectSeed(data[0], data[1], 0x10)
	require.Error(t, err)
	assert.ErrorIs(t, err, mpqerrors.ErrNotFound)
	assert.ErrorIs(t, err, mpqerrors.ErrSeedNotFound)
}
