package archive

import (
	"encoding/binary"
	"fmt"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
	"github.com/provide-io/mpqpack/pkg/mpq/format"
	"github.com/provide-io/mpqpack/pkg/mpq/operations"
	"github.com/provide-io/mpqpack/pkg/mpq/storm"
)

// storageFlags normalizes the flags a source asks for: the exists bit is
// always set and the compression bit follows the compression mask.
func storageFlags(src Source) (format.FileFlags, uint8, error) {
	flags := src.Flags | format.FlagExists
	if flags.Has(format.FlagCompressedPK) {
		return 0, 0, fmt.Errorf("%w: %s requests implode", mpqerrors.ErrUnsupportedCompression, src.Name)
	}
	if flags.Has(format.FlagHasMetadata) {
		return 0, 0, fmt.Errorf("%w: %s requests sector checksums", mpqerrors.ErrNotSupported, src.Name)
	}

	mask := src.Compression
	if mask == operations.MASK_NONE && flags.Has(format.FlagCompressedMulti) {
		mask = operations.MASK_ZLIB
	}
	if _, err := operations.UnpackMask(mask); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", src.Name, err)
	}

	flags &^= format.FlagCompressed
	if mask != operations.MASK_NONE && len(src.Data) > 0 {
		flags |= format.FlagCompressedMulti
	} else {
		mask = operations.MASK_NONE
	}
	if len(src.Data) == 0 {
		flags &^= format.FlagEncrypted | format.FlagFixKey
	}
	return flags, mask, nil
}

// encodePayload turns raw file bytes into their stored form.
func encodePayload(data []byte, flags format.FileFlags, mask uint8, blockSize int, seed uint32) ([]byte, error) {
	encrypted := flags.Has(format.FlagEncrypted)

	if flags.Has(format.FlagSingleUnit) || len(data) == 0 {
		out := append([]byte(nil), data...)
		if mask != operations.MASK_NONE {
			compressed, err := operations.Compress(data, mask)
			if err != nil {
				return nil, err
			}
			if len(compressed) < len(data) {
				out = compressed
			}
		}
		if encrypted {
			storm.EncryptBytes(out, seed)
		}
		return out, nil
	}

	sectors := (len(data) + blockSize - 1) / blockSize

	if mask == operations.MASK_NONE {
		out := append([]byte(nil), data...)
		if encrypted {
			for i := 0; i < sectors; i++ {
				end := min((i+1)*blockSize, len(out))
				storm.EncryptBytes(out[i*blockSize:end], seed+uint32(i))
			}
		}
		return out, nil
	}

	tableSize := (sectors + 1) * 4
	out := make([]byte, tableSize, tableSize+len(data))
	offsets := make([]uint32, 0, sectors+1)
	offsets = append(offsets, uint32(tableSize))

	for i := 0; i < sectors; i++ {
		raw := data[i*blockSize : min((i+1)*blockSize, len(data))]

		sector, err := operations.Compress(raw, mask)
		if err != nil {
			return nil, fmt.Errorf("sector %d: %w", i, err)
		}
		if len(sector) >= len(raw) {
			sector = append([]byte(nil), raw...)
		}
		if encrypted {
			storm.EncryptBytes(sector, seed+uint32(i))
		}

		out = append(out, sector...)
		offsets = append(offsets, uint32(len(out)))
	}

	for i, offset := range offsets {
		binary.LittleEndian.PutUint32(out[i*4:], offset)
	}
	if encrypted {
		storm.EncryptBytes(out[:tableSize], seed-1)
	}
	return out, nil
}
