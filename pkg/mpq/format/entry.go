package format

import (
	"encoding/binary"
	"fmt"
	"strings"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
	"github.com/provide-io/mpqpack/pkg/mpq/storm"
)

// FileFlags describes how a file's bytes are stored.
type FileFlags uint32

const (
	FlagCompressedPK    FileFlags = 0x00000100 // imploded
	FlagCompressedMulti FileFlags = 0x00000200 // per-sector compression mask
	FlagCompressed      FileFlags = 0x0000FF00
	FlagEncrypted       FileFlags = 0x00010000
	FlagFixKey          FileFlags = 0x00020000 // key adjusted by block offset
	FlagSingleUnit      FileFlags = 0x01000000
	FlagHasMetadata     FileFlags = 0x04000000 // sector checksums follow the data
	FlagExists          FileFlags = 0x80000000
)

// Has reports whether every bit of mask is set.
func (f FileFlags) Has(mask FileFlags) bool {
	return f&mask == mask
}

func (f FileFlags) String() string {
	var parts []string
	for _, flag := range []struct {
		bit  FileFlags
		name string
	}{
		{FlagCompressedPK, "implode"},
		{FlagCompressedMulti, "compress"},
		{FlagEncrypted, "encrypted"},
		{FlagFixKey, "fixkey"},
		{FlagSingleUnit, "single"},
		{FlagHasMetadata, "metadata"},
		{FlagExists, "exists"},
	} {
		if f&flag.bit != 0 {
			parts = append(parts, flag.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// BlockEntry describes one file in the block table.
//
// Entries parsed from an archive have a fixed position and no filename.
// Entries created for a build know their filename and get their position
// exactly once through SetPosition.
type BlockEntry struct {
	CompressedSize uint32
	FileSize       uint32
	Flags          FileFlags

	fileOffset uint32 // relative to the header
	filePos    uint32 // absolute stream position
	added      bool

	filename string
	named    bool
	seed     uint32
}

// NewBlockEntry creates a build-time entry whose position is not yet known.
func NewBlockEntry(filename string, compressedSize, fileSize uint32, flags FileFlags) *BlockEntry {
	e := &BlockEntry{
		CompressedSize: compressedSize,
		FileSize:       fileSize,
		Flags:          flags,
	}
	e.SetFilename(filename)
	return e
}

// UnpackBlockEntry decodes a 16-byte block table record.
func UnpackBlockEntry(data []byte, headerOffset uint32) (*BlockEntry, error) {
	if len(data) != BlockEntrySize {
		return nil, fmt.Errorf("%w: block entry needs %d bytes, got %d", mpqerrors.ErrTruncated, BlockEntrySize, len(data))
	}

	fileOffset := binary.LittleEndian.Uint32(data[0:4])
	return &BlockEntry{
		fileOffset:     fileOffset,
		filePos:        headerOffset + fileOffset,
		CompressedSize: binary.LittleEndian.Uint32(data[4:8]),
		FileSize:       binary.LittleEndian.Uint32(data[8:12]),
		Flags:          FileFlags(binary.LittleEndian.Uint32(data[12:16])),
		added:          true,
	}, nil
}

// Pack encodes the entry with its offset re-derived from the absolute
// position and headerOffset.
func (e *BlockEntry) Pack(headerOffset uint32) []byte {
	buf := make([]byte, BlockEntrySize)
	binary.LittleEndian.PutUint32(buf[0:4], e.filePos-headerOffset)
	binary.LittleEndian.PutUint32(buf[4:8], e.CompressedSize)
	binary.LittleEndian.PutUint32(buf[8:12], e.FileSize)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(e.Flags))
	return buf
}

// SetPosition fixes the entry's absolute position. It fails if the position
// was already assigned. The seed is recomputed because key-adjusted files
// mix their offset into it.
func (e *BlockEntry) SetPosition(filePos, headerOffset uint32) error {
	if e.added {
		return fmt.Errorf("%w: entry %s at %d", mpqerrors.ErrPositionAlreadySet, e, e.filePos)
	}
	e.filePos = filePos
	e.fileOffset = filePos - headerOffset
	e.added = true
	e.seed = e.computeSeed()
	return nil
}

// SetFilename attaches a filename and recomputes the encryption seed.
func (e *BlockEntry) SetFilename(filename string) {
	e.filename = filename
	e.named = true
	e.seed = e.computeSeed()
}

// Filename returns the attached filename, if any.
func (e *BlockEntry) Filename() (string, bool) {
	return e.filename, e.named
}

// Seed returns the derived encryption seed, zero while no filename is known.
func (e *BlockEntry) Seed() uint32 { return e.seed }

// FilePos returns the absolute stream position of the file's bytes.
func (e *BlockEntry) FilePos() uint32 { return e.filePos }

// FileOffset returns the position relative to the header.
func (e *BlockEntry) FileOffset() uint32 { return e.fileOffset }

// IsAdded reports whether the entry's position is fixed.
func (e *BlockEntry) IsAdded() bool { return e.added }

func (e *BlockEntry) IsEncrypted() bool  { return e.Flags&FlagEncrypted != 0 }
func (e *BlockEntry) IsCompressed() bool { return e.Flags&FlagCompressed != 0 }
func (e *BlockEntry) IsSingleUnit() bool { return e.Flags&FlagSingleUnit != 0 }
func (e *BlockEntry) Exists() bool       { return e.Flags != 0 }

func (e *BlockEntry) String() string {
	if !e.named {
		if !e.Exists() {
			return "(Deleted file)"
		}
		return fmt.Sprintf("Unknown file @ %d", e.filePos)
	}
	return e.filename
}

func (e *BlockEntry) computeSeed() uint32 {
	if !e.named {
		return 0
	}
	return FileSeed(e.filename, e.fileOffset, e.FileSize, e.Flags)
}

// FileSeed derives a file's encryption seed from its name. Only the last path
// component is hashed; key-adjusted files also mix in offset and size.
func FileSeed(filename string, fileOffset, fileSize uint32, flags FileFlags) uint32 {
	seed := storm.HashString(baseName(filename), storm.HashFileKey)
	if flags.Has(FlagFixKey) {
		seed = (seed + fileOffset) ^ fileSize
	}
	return seed
}

func baseName(filename string) string {
	if i := strings.LastIndexAny(filename, `\/`); i >= 0 {
		return filename[i+1:]
	}
	return filename
}
