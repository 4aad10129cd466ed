// Package operations holds the per-sector compression codecs of an archive.
// Each codec owns one bit of the compression mask byte that prefixes a
// compressed sector.
package operations

import (
	"fmt"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
)

// Compression mask bits.
const (
	MASK_NONE         = 0x00
	MASK_HUFFMAN      = 0x01
	MASK_ZLIB         = 0x02
	MASK_PKWARE       = 0x08
	MASK_BZIP2        = 0x10
	MASK_SPARSE       = 0x20
	MASK_ADPCM_MONO   = 0x40
	MASK_ADPCM_STEREO = 0x80

	// MASK_LZMA is a whole-byte value, not a bit combination.
	MASK_LZMA = 0x12
)

// Codec compresses or restores one sector.
type Codec interface {
	// Mask returns the codec's bit in the compression mask.
	Mask() uint8

	// Name returns the human-readable name.
	Name() string

	// Compress compresses a whole sector.
	Compress(input []byte) ([]byte, error)

	// Decompress restores a sector whose uncompressed length is outSize.
	Decompress(input []byte, outSize int) ([]byte, error)
}

// BaseCodec provides the identity half of a Codec.
type BaseCodec struct {
	CodecMask uint8
	CodecName string
}

func (c *BaseCodec) Mask() uint8 {
	return c.CodecMask
}

func (c *BaseCodec) Name() string {
	return c.CodecName
}

// Registry maps mask bits to implementations.
var Registry = make(map[uint8]Codec)

// Register registers a codec implementation.
func Register(c Codec) {
	Registry[c.Mask()] = c
}

// Get retrieves a codec by its mask bit.
func Get(mask uint8) (Codec, error) {
	c, ok := Registry[mask]
	if !ok {
		return nil, fmt.Errorf("%w: %s (0x%02x)", mpqerrors.ErrUnsupportedCompression, GetName(mask), mask)
	}
	return c, nil
}

// GetName returns the name of a single mask bit.
func GetName(mask uint8) string {
	switch mask {
	case MASK_NONE:
		return "NONE"
	case MASK_HUFFMAN:
		return "HUFFMAN"
	case MASK_ZLIB:
		return "ZLIB"
	case MASK_PKWARE:
		return "PKWARE"
	case MASK_BZIP2:
		return "BZIP2"
	case MASK_SPARSE:
		return "SPARSE"
	case MASK_ADPCM_MONO:
		return "ADPCM_MONO"
	case MASK_ADPCM_STEREO:
		return "ADPCM_STEREO"
	case MASK_LZMA:
		return "LZMA"
	default:
		return fmt.Sprintf("UNKNOWN_%02x", mask)
	}
}
