package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
	"github.com/provide-io/mpqpack/pkg/mpq/format"
	"github.com/provide-io/mpqpack/pkg/mpq/operations"
	"github.com/provide-io/mpqpack/pkg/mpq/storm"

	// Register the sector codecs.
	_ "github.com/provide-io/mpqpack/pkg/mpq/operations/compress"
)

// File reads the uncompressed, decrypted bytes of one archived file.
type File struct {
	archive *Archive
	entry   *format.BlockEntry

	seed      uint32
	blockSize int64
	offsets   []uint32 // sector boundaries relative to the file start, nil when sectors are contiguous

	pos int64

	cachedIndex int
	cached      []byte
}

// OpenFile opens the file stored under filename.
func (a *Archive) OpenFile(filename string) (*File, error) {
	entry, err := a.Lookup(filename)
	if err != nil {
		return nil, err
	}
	return a.OpenEntry(entry)
}

// OpenEntry opens the file described by entry. An encrypted entry without a
// filename has its key recovered from its sector offset table.
func (a *Archive) OpenEntry(entry *format.BlockEntry) (*File, error) {
	if !entry.Exists() {
		return nil, fmt.Errorf("%w: %s", mpqerrors.ErrFileNotFound, entry)
	}
	if entry.Flags.Has(format.FlagCompressedPK) {
		return nil, fmt.Errorf("%w: imploded file %s", mpqerrors.ErrUnsupportedCompression, entry)
	}

	f := &File{
		archive:     a,
		entry:       entry,
		seed:        entry.Seed(),
		blockSize:   int64(a.blockSize),
		cachedIndex: -1,
	}

	if entry.FileSize == 0 {
		return f, nil
	}
	if end := int64(entry.FilePos()) + int64(entry.CompressedSize); end > a.size {
		return nil, fmt.Errorf("%w: %s ends at %d beyond stream size %d", mpqerrors.ErrTruncated, entry, end, a.size)
	}

	if f.hasOffsetTable() {
		if err := f.loadOffsets(); err != nil {
			return nil, err
		}
	} else if entry.IsEncrypted() {
		if _, named := entry.Filename(); !named {
			return nil, fmt.Errorf("%w: %s has no offset table to recover its key from", mpqerrors.ErrSeedNotFound, entry)
		}
	}

	a.logger.Trace("📄 Opened file",
		"file", entry.String(),
		"size", entry.FileSize,
		"compressed_size", entry.CompressedSize,
		"flags", entry.Flags.String(),
	)
	return f, nil
}

func (f *File) hasOffsetTable() bool {
	return f.entry.IsCompressed() && !f.entry.IsSingleUnit()
}

func (f *File) sectorCount() int {
	return int((int64(f.entry.FileSize) + f.blockSize - 1) / f.blockSize)
}

func (f *File) loadOffsets() error {
	count := f.sectorCount() + 1
	if f.entry.Flags.Has(format.FlagHasMetadata) {
		count++
	}

	raw := make([]byte, count*4)
	if err := f.archive.readAt(raw, int64(f.entry.FilePos())); err != nil {
		return fmt.Errorf("reading sector offsets of %s: %w", f.entry, err)
	}

	if f.entry.IsEncrypted() {
		if _, named := f.entry.Filename(); !named {
			seed, err := storm.DetectSeed(
				binary.LittleEndian.Uint32(raw[0:4]),
				binary.LittleEndian.Uint32(raw[4:8]),
				uint32(len(raw)),
			)
			if err != nil {
				return fmt.Errorf("recovering key of %s: %w", f.entry, err)
			}
			f.seed = seed + 1
			f.archive.logger.Debug("🔑 Recovered file key", "file", f.entry.String(), "seed", fmt.Sprintf("0x%08x", f.seed))
		}
		storm.DecryptBytes(raw, f.seed-1)
	}

	offsets := make([]uint32, count)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}

	if offsets[0] != uint32(len(raw)) {
		return fmt.Errorf("%w: %s sector table starts at %d, want %d", mpqerrors.ErrFormat, f.entry, offsets[0], len(raw))
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] || offsets[i] > f.entry.CompressedSize {
			return fmt.Errorf("%w: %s sector %d offset %d out of order", mpqerrors.ErrFormat, f.entry, i, offsets[i])
		}
	}

	f.offsets = offsets
	return nil
}

// Entry returns the block entry being read.
func (f *File) Entry() *format.BlockEntry { return f.entry }

// Size returns the uncompressed size.
func (f *File) Size() int64 { return int64(f.entry.FileSize) }

// Close drops cached sector data. The archive stays open.
func (f *File) Close() error {
	f.cached = nil
	f.cachedIndex = -1
	return nil
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	if errors.Is(err, io.EOF) && n > 0 {
		err = nil
	}
	return n, err
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", mpqerrors.ErrState, off)
	}

	size := f.Size()
	n := 0
	for n < len(p) && off < size {
		var index int
		var within int64
		if f.entry.IsSingleUnit() {
			index, within = 0, off
		} else {
			index, within = int(off/f.blockSize), off%f.blockSize
		}

		sector, err := f.sector(index)
		if err != nil {
			return n, err
		}

		copied := copy(p[n:], sector[within:])
		n += copied
		off += int64(copied)
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = f.pos + offset
	case io.SeekEnd:
		target = f.Size() + offset
	default:
		return f.pos, fmt.Errorf("%w: whence %d", mpqerrors.ErrState, whence)
	}
	if target < 0 {
		return f.pos, fmt.Errorf("%w: seek to negative position %d", mpqerrors.ErrState, target)
	}
	f.pos = target
	return target, nil
}

// sector returns the decoded bytes of sector index, caching the last one.
func (f *File) sector(index int) ([]byte, error) {
	if index == f.cachedIndex {
		return f.cached, nil
	}

	var data []byte
	var err error
	if f.entry.IsSingleUnit() {
		data, err = f.readSingleUnit()
	} else {
		data, err = f.readSector(index)
	}
	if err != nil {
		return nil, err
	}

	f.cachedIndex = index
	f.cached = data
	return data, nil
}

func (f *File) readSingleUnit() ([]byte, error) {
	data := make([]byte, f.entry.CompressedSize)
	if err := f.archive.readAt(data, int64(f.entry.FilePos())); err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.entry, err)
	}
	if f.entry.IsEncrypted() {
		storm.DecryptBytes(data, f.seed)
	}

	if f.entry.IsCompressed() && f.entry.CompressedSize < f.entry.FileSize {
		return operations.Decompress(data, int(f.entry.FileSize))
	}
	return truncate(data, int(f.entry.FileSize), f.entry)
}

func (f *File) readSector(index int) ([]byte, error) {
	expected := f.blockSize
	if rest := f.Size() - int64(index)*f.blockSize; rest < expected {
		expected = rest
	}

	var start, length int64
	if f.offsets != nil {
		start = int64(f.offsets[index])
		length = int64(f.offsets[index+1]) - start
	} else {
		start = int64(index) * f.blockSize
		length = expected
	}

	data := make([]byte, length)
	if err := f.archive.readAt(data, int64(f.entry.FilePos())+start); err != nil {
		return nil, fmt.Errorf("reading sector %d of %s: %w", index, f.entry, err)
	}
	if f.entry.IsEncrypted() {
		storm.DecryptBytes(data, f.seed+uint32(index))
	}

	if f.offsets != nil && length < expected {
		out, err := operations.Decompress(data, int(expected))
		if err != nil {
			return nil, fmt.Errorf("sector %d of %s: %w", index, f.entry, err)
		}
		return out, nil
	}
	return truncate(data, int(expected), f.entry)
}

func truncate(data []byte, size int, entry *format.BlockEntry) ([]byte, error) {
	if len(data) < size {
		return nil, fmt.Errorf("%w: %s stores %d bytes, want %d", mpqerrors.ErrTruncated, entry, len(data), size)
	}
	return data[:size], nil
}
