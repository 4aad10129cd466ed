package operations

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
)

var logger = hclog.L().Named("mpq.operations")

// decompressOrder lists mask bits in the order a reader undoes them.
// Compression runs the same list backwards.
var decompressOrder = []uint8{
	MASK_BZIP2,
	MASK_PKWARE,
	MASK_ZLIB,
	MASK_HUFFMAN,
	MASK_ADPCM_STEREO,
	MASK_ADPCM_MONO,
}

// UnpackMask splits a mask byte into its codec bits in decompression order.
func UnpackMask(mask uint8) ([]uint8, error) {
	if mask == MASK_LZMA {
		return nil, fmt.Errorf("%w: LZMA", mpqerrors.ErrUnsupportedCompression)
	}

	var bits []uint8
	rest := mask
	for _, bit := range decompressOrder {
		if mask&bit != 0 {
			bits = append(bits, bit)
			rest &^= bit
		}
	}
	if rest != 0 {
		return nil, fmt.Errorf("%w: unknown mask bits 0x%02x", mpqerrors.ErrUnsupportedCompression, rest)
	}
	return bits, nil
}

// MaskToString converts a mask to a human-readable string.
func MaskToString(mask uint8) string {
	if mask == MASK_NONE {
		return "raw"
	}
	bits, err := UnpackMask(mask)
	if err != nil {
		return strings.ToLower(GetName(mask))
	}

	names := make([]string, len(bits))
	for i, bit := range bits {
		names[i] = strings.ToLower(GetName(bit))
	}
	return strings.Join(names, "|")
}

// namedMasks holds the names accepted by StringToMask.
var namedMasks = map[string]uint8{
	"raw":     MASK_NONE,
	"none":    MASK_NONE,
	"zlib":    MASK_ZLIB,
	"deflate": MASK_ZLIB,
	"bzip2":   MASK_BZIP2,
	"huffman": MASK_HUFFMAN,
	"pkware":  MASK_PKWARE,
	"implode": MASK_PKWARE,
}

// StringToMask parses a mask string such as "zlib" or "zlib|bzip2".
func StringToMask(s string) (uint8, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return MASK_NONE, nil
	}

	var mask uint8
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bit, ok := namedMasks[part]
		if !ok {
			return 0, fmt.Errorf("%w: unknown compression %q", mpqerrors.ErrUnsupportedCompression, part)
		}
		mask |= bit
	}
	if mask == MASK_LZMA {
		return 0, fmt.Errorf("%w: %q collides with the LZMA mask", mpqerrors.ErrUnsupportedCompression, s)
	}
	return mask, nil
}

// Compress compresses a sector with every codec in mask and prefixes the
// result with the mask byte. A MASK_NONE request returns data unchanged.
func Compress(data []byte, mask uint8) ([]byte, error) {
	if mask == MASK_NONE {
		return data, nil
	}

	bits, err := UnpackMask(mask)
	if err != nil {
		return nil, err
	}

	current := data
	for i := len(bits) - 1; i >= 0; i-- {
		codec, err := Get(bits[i])
		if err != nil {
			return nil, err
		}
		result, err := codec.Compress(current)
		if err != nil {
			return nil, fmt.Errorf("applying %s: %w", codec.Name(), err)
		}
		current = result
	}

	out := make([]byte, 0, len(current)+1)
	out = append(out, mask)
	out = append(out, current...)
	logger.Trace("🗜️ Compressed sector", "mask", MaskToString(mask), "in", len(data), "out", len(out))
	return out, nil
}

// Decompress restores a sector of outSize bytes. A sector that already has
// outSize bytes was stored raw and is returned unchanged.
func Decompress(data []byte, outSize int) ([]byte, error) {
	if len(data) == outSize {
		return data, nil
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty compressed sector", mpqerrors.ErrTruncated)
	}

	mask := data[0]
	bits, err := UnpackMask(mask)
	if err != nil {
		return nil, err
	}

	current := data[1:]
	for i, bit := range bits {
		codec, err := Get(bit)
		if err != nil {
			return nil, err
		}
		// Only the last stage knows the final size.
		size := outSize
		if i < len(bits)-1 {
			size = -1
		}
		result, err := codec.Decompress(current, size)
		if err != nil {
			return nil, fmt.Errorf("reversing %s: %w", codec.Name(), err)
		}
		current = result
	}

	if len(current) != outSize {
		return nil, fmt.Errorf("%w: sector decompressed to %d bytes, want %d", mpqerrors.ErrFormat, len(current), outSize)
	}
	return current, nil
}
