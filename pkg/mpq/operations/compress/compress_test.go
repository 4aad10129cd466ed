package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
	"github.com/provide-io/mpqpack/pkg/mpq/operations"
)

func sectorData() []byte {
	return bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog. "), 90)
}

func TestCodecsRegistered(t *testing.T) {
	for _, mask := range []uint8{operations.MASK_ZLIB, operations.MASK_BZIP2} {
		codec, err := operations.Get(mask)
		require.NoError(t, err)
		assert.Equal(t, mask, codec.Mask())
	}
}

func TestCodecRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		codec operations.Codec
	}{
		{"zlib", NewZlibCodec()},
		{"bzip2", NewBzip2Codec()},
	}

	data := sectorData()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			compressed, err := tc.codec.Compress(data)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(data))

			restored, err := tc.codec.Decompress(compressed, len(data))
			require.NoError(t, err)
			assert.Equal(t, data, restored)

			restored, err = tc.codec.Decompress(compressed, -1)
			require.NoError(t, err)
			assert.Equal(t, data, restored)
		})
	}
}

func TestChainRoundTrip(t *testing.T) {
	data := sectorData()

	for _, mask := range []uint8{operations.MASK_ZLIB, operations.MASK_BZIP2} {
		t.Run(operations.MaskToString(mask), func(t *testing.T) {
			framed, err := operations.Compress(data, mask)
			require.NoError(t, err)
			assert.Equal(t, mask, framed[0])

			restored, err := operations.Decompress(framed, len(data))
			require.NoError(t, err)
			assert.Equal(t, data, restored)
		})
	}
}

func TestChainRejectsUnsupported(t *testing.T) {
	data := sectorData()

	_, err := operations.Compress(data, operations.MASK_PKWARE)
	assert.ErrorIs(t, err, mpqerrors.ErrUnsupportedCompression)
	assert.ErrorIs(t, err, mpqerrors.ErrNotSupported)

	_, err = operations.Decompress([]byte{operations.MASK_LZMA, 1, 2, 3}, 100)
	assert.ErrorIs(t, err, mpqerrors.ErrUnsupportedCompression)

	_, err = operations.Decompress([]byte{operations.MASK_HUFFMAN, 1, 2, 3}, 100)
	assert.ErrorIs(t, err, mpqerrors.ErrUnsupportedCompression)
}

func TestChainSizeMismatch(t *testing.T) {
	data := sectorData()
	framed, err := operations.Compress(data, operations.MASK_ZLIB)
	require.NoError(t, err)

	_, err = operations.Decompress(framed, len(data)-10)
	assert.ErrorIs(t, err, mpqerrors.ErrFormat)
}
