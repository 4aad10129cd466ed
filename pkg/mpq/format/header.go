package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hashicorp/go-hclog"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
)

// Header is the fixed archive header. HashTablePos and BlockTablePos are
// stored relative to the header; after Rebase they are absolute stream
// positions.
type Header struct {
	Signature         uint32
	DataOffset        uint32 // offset of the first file, normally the header size
	ArchiveSize       uint32
	FormatVersion     uint16
	BlockSizeShift    uint16 // sector size is 0x200 << BlockSizeShift
	HashTablePos      uint32
	BlockTablePos     uint32
	HashTableEntries  uint32
	BlockTableEntries uint32

	// Version 1 fields. Only read so that a non-zero value can be rejected.
	ExtendedBlockTableOffset int64
	HashTablePosHigh         int16
	BlockTablePosHigh        int16

	// Offset is the absolute position of the header in its stream.
	Offset int64
}

// BlockSize returns the sector size in bytes.
func (h *Header) BlockSize() uint32 {
	return BaseBlockSize << h.BlockSizeShift
}

// Pack serializes the version 0 header to exactly HeaderSize bytes.
func (h *Header) Pack() []byte {
	buf := make([]byte, HeaderSize)

	binary.LittleEndian.PutUint32(buf[0:4], h.Signature)
	binary.LittleEndian.PutUint32(buf[4:8], h.DataOffset)
	binary.LittleEndian.PutUint32(buf[8:12], h.ArchiveSize)
	binary.LittleEndian.PutUint16(buf[12:14], h.FormatVersion)
	binary.LittleEndian.PutUint16(buf[14:16], h.BlockSizeShift)
	binary.LittleEndian.PutUint32(buf[16:20], h.HashTablePos)
	binary.LittleEndian.PutUint32(buf[20:24], h.BlockTablePos)
	binary.LittleEndian.PutUint32(buf[24:28], h.HashTableEntries)
	binary.LittleEndian.PutUint32(buf[28:32], h.BlockTableEntries)

	return buf
}

// WriteTo writes the packed header. Version 1 headers cannot be written.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	if h.FormatVersion != 0 {
		return 0, fmt.Errorf("%w: writing format version %d", mpqerrors.ErrNotSupported, h.FormatVersion)
	}
	n, err := w.Write(h.Pack())
	return int64(n), err
}

// UnpackHeader parses a header from data, which must start with the signature.
// Version 1 headers are accepted only when every version 1 field is zero.
func UnpackHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, got %d", mpqerrors.ErrTruncated, HeaderSize, len(data))
	}

	h := &Header{
		Signature:         binary.LittleEndian.Uint32(data[0:4]),
		DataOffset:        binary.LittleEndian.Uint32(data[4:8]),
		ArchiveSize:       binary.LittleEndian.Uint32(data[8:12]),
		FormatVersion:     binary.LittleEndian.Uint16(data[12:14]),
		BlockSizeShift:    binary.LittleEndian.Uint16(data[14:16]),
		HashTablePos:      binary.LittleEndian.Uint32(data[16:20]),
		BlockTablePos:     binary.LittleEndian.Uint32(data[20:24]),
		HashTableEntries:  binary.LittleEndian.Uint32(data[24:28]),
		BlockTableEntries: binary.LittleEndian.Uint32(data[28:32]),
	}

	if h.Signature != HeaderMagic {
		return nil, fmt.Errorf("%w: got 0x%08x", mpqerrors.ErrInvalidMagic, h.Signature)
	}

	switch h.FormatVersion {
	case 0:
	case 1:
		if len(data) < HeaderSizeExtended {
			return nil, fmt.Errorf("%w: version 1 header needs %d bytes, got %d", mpqerrors.ErrTruncated, HeaderSizeExtended, len(data))
		}
		h.ExtendedBlockTableOffset = int64(binary.LittleEndian.Uint64(data[32:40]))
		h.HashTablePosHigh = int16(binary.LittleEndian.Uint16(data[40:42]))
		h.BlockTablePosHigh = int16(binary.LittleEndian.Uint16(data[42:44]))

		if h.ExtendedBlockTableOffset != 0 || h.HashTablePosHigh != 0 || h.BlockTablePosHigh != 0 {
			return nil, fmt.Errorf("%w: version 1 features are not supported", mpqerrors.ErrUnsupportedVersion)
		}
	default:
		return nil, fmt.Errorf("%w: got %d", mpqerrors.ErrUnsupportedVersion, h.FormatVersion)
	}

	return h, nil
}

// Rebase records the header's absolute offset and converts the stored table
// positions to absolute stream positions.
func (h *Header) Rebase(offset int64) {
	h.Offset = offset
	h.HashTablePos += uint32(offset)
	h.BlockTablePos += uint32(offset)
	if h.DataOffset == ProtectedDataOffset {
		h.DataOffset = uint32(HeaderSize + offset)
	}
}

// Locate scans r for the header at every HeaderAlignment boundary and returns
// the first one found, already rebased. The archive may be appended to an
// arbitrary host file, so the header need not start at byte 0.
func Locate(r io.ReadSeeker, logger hclog.Logger) (*Header, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measuring stream: %w", err)
	}

	buf := make([]byte, HeaderSizeExtended)
	for offset := int64(0); offset+HeaderSize <= size; offset += HeaderAlignment {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking to 0x%x: %w", offset, err)
		}
		if _, err := io.ReadFull(r, buf[:HeaderSize]); err != nil {
			return nil, fmt.Errorf("reading header candidate at 0x%x: %w", offset, err)
		}
		if binary.LittleEndian.Uint32(buf) != HeaderMagic {
			continue
		}

		data := buf[:HeaderSize]
		if binary.LittleEndian.Uint16(buf[12:14]) == 1 {
			if _, err := io.ReadFull(r, buf[HeaderSize:HeaderSizeExtended]); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return nil, fmt.Errorf("%w: version 1 header at 0x%x", mpqerrors.ErrTruncated, offset)
				}
				return nil, fmt.Errorf("reading version 1 header at 0x%x: %w", offset, err)
			}
			data = buf[:HeaderSizeExtended]
		}

		h, err := UnpackHeader(data)
		if err != nil {
			return nil, err
		}
		h.Rebase(offset)

		logger.Debug("🔍 Found archive header",
			"offset", offset,
			"version", h.FormatVersion,
			"hash_table_pos", h.HashTablePos,
			"block_table_pos", h.BlockTablePos,
		)
		return h, nil
	}

	return nil, fmt.Errorf("%w: scanned %d bytes", mpqerrors.ErrInvalidMagic, size)
}

// ComputeHeader derives a version 0 header for a freshly built archive laid
// out as header, file bytes, hash table, block table. Positions are relative
// to the header.
func ComputeHeader(layout Layout, archivedBytes, hashEntries, blockEntries uint32, blockSizeShift uint16) (*Header, error) {
	if layout != LayoutArchiveBeforeTables {
		return nil, fmt.Errorf("%w: %s", mpqerrors.ErrUnsupportedLayout, layout)
	}

	hashTableBytes := uint64(hashEntries) * HashEntrySize
	blockTableBytes := uint64(blockEntries) * BlockEntrySize
	hashTablePos := uint64(HeaderSize) + uint64(archivedBytes)
	blockTablePos := hashTablePos + hashTableBytes
	archiveSize := blockTablePos + blockTableBytes

	if archiveSize > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", mpqerrors.ErrArchiveTooLarge, archiveSize)
	}

	return &Header{
		Signature:         HeaderMagic,
		DataOffset:        HeaderSize,
		ArchiveSize:       uint32(archiveSize),
		FormatVersion:     0,
		BlockSizeShift:    blockSizeShift,
		HashTablePos:      uint32(hashTablePos),
		BlockTablePos:     uint32(blockTablePos),
		HashTableEntries:  hashEntries,
		BlockTableEntries: blockEntries,
	}, nil
}
