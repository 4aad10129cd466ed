// Package archive opens existing archives and builds new ones.
//
// An Archive owns its stream. Reads from several File handles of the same
// Archive are serialized through one lock, so handles may be used from
// different goroutines; the tables themselves are never mutated concurrently
// by this package.
package archive

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
	"github.com/provide-io/mpqpack/pkg/mpq/format"
)

// MaxBlockSizeShift bounds the sector size to 2 GiB.
const MaxBlockSizeShift = 22

// OpenOptions configures OpenExisting.
type OpenOptions struct {
	// Logger receives diagnostics. Defaults to a null logger.
	Logger hclog.Logger

	// LoadListfile reads "(listfile)" after the tables are parsed and attaches
	// every filename it resolves.
	LoadListfile bool
}

// Archive is an opened archive.
type Archive struct {
	mu sync.Mutex
	rs io.ReadSeeker

	header    *format.Header
	hashes    *format.HashTable
	blocks    *format.BlockTable
	blockSize uint32
	size      int64 // stream length at open

	logger hclog.Logger
}

// Open opens the archive file at path.
func Open(path string, opts OpenOptions) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	a, err := OpenExisting(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

// OpenExisting locates the header in rs and parses both tables. The archive
// takes ownership of rs; Close closes it if it is an io.Closer.
func OpenExisting(rs io.ReadSeeker, opts OpenOptions) (*Archive, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	header, err := format.Locate(rs, logger)
	if err != nil {
		return nil, err
	}
	if header.FormatVersion != 0 {
		logger.Debug("🔍 Version 1 header without extended fields", "offset", header.Offset)
	}
	if header.BlockSizeShift > MaxBlockSizeShift {
		return nil, fmt.Errorf("%w: block size shift %d", mpqerrors.ErrFormat, header.BlockSizeShift)
	}

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measuring stream: %w", err)
	}
	if err := checkTableBounds("hash table", header.HashTablePos, header.HashTableEntries, format.HashEntrySize, size); err != nil {
		return nil, err
	}
	if err := checkTableBounds("block table", header.BlockTablePos, header.BlockTableEntries, format.BlockEntrySize, size); err != nil {
		return nil, err
	}

	if _, err := rs.Seek(int64(header.HashTablePos), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to hash table: %w", err)
	}
	hashes, err := format.ParseHashTable(rs, header.HashTableEntries)
	if err != nil {
		return nil, err
	}

	if _, err := rs.Seek(int64(header.BlockTablePos), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to block table: %w", err)
	}
	blocks, err := format.ParseBlockTable(rs, header.BlockTableEntries, uint32(header.Offset))
	if err != nil {
		return nil, err
	}

	a := &Archive{
		rs:        rs,
		header:    header,
		hashes:    hashes,
		blocks:    blocks,
		blockSize: header.BlockSize(),
		size:      size,
		logger:    logger,
	}

	logger.Debug("📂 Opened archive",
		"header_offset", header.Offset,
		"hash_entries", header.HashTableEntries,
		"block_entries", header.BlockTableEntries,
		"block_size", a.blockSize,
	)

	if opts.LoadListfile {
		n, err := a.AddListfileFilenames()
		switch {
		case errors.Is(err, mpqerrors.ErrNotFound):
			logger.Debug("📋 No listfile in archive")
		case err != nil:
			return nil, err
		default:
			logger.Debug("📋 Loaded listfile", "resolved", n)
		}
	}

	return a, nil
}

func checkTableBounds(name string, pos, entries uint32, entrySize int, streamSize int64) error {
	end := int64(pos) + int64(entries)*int64(entrySize)
	if end > streamSize {
		return fmt.Errorf("%w: %s ends at %d beyond stream size %d", mpqerrors.ErrTruncated, name, end, streamSize)
	}
	return nil
}

// Close releases the underlying stream.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rs == nil {
		return nil
	}
	rs := a.rs
	a.rs = nil
	if c, ok := rs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Header returns the rebased header.
func (a *Archive) Header() *format.Header { return a.header }

// BlockSize returns the sector size in bytes.
func (a *Archive) BlockSize() uint32 { return a.blockSize }

// Count returns the number of block table entries.
func (a *Archive) Count() int { return a.blocks.Len() }

// Entry returns the block entry at index i.
func (a *Archive) Entry(i int) (*format.BlockEntry, error) {
	return a.blocks.At(i)
}

// Entries yields every block entry with its index.
func (a *Archive) Entries() iter.Seq2[int, *format.BlockEntry] {
	return a.blocks.All()
}

// FileExists reports whether filename is in the hash table.
func (a *Archive) FileExists(filename string) bool {
	_, _, err := a.hashes.Lookup(filename)
	return err == nil
}

// Lookup resolves filename to its block entry and attaches the name to the
// entry if it had none.
func (a *Archive) Lookup(filename string) (*format.BlockEntry, error) {
	hash, _, err := a.hashes.Lookup(filename)
	if err != nil {
		return nil, err
	}

	entry, err := a.blocks.At(int(hash.BlockIndex))
	if err != nil {
		return nil, fmt.Errorf("%w: hash entry for %s points past the block table", mpqerrors.ErrFormat, filename)
	}
	if _, named := entry.Filename(); !named {
		entry.SetFilename(filename)
	}
	return entry, nil
}

// HashEntryOf returns the hash slot that refers to blockIndex.
func (a *Archive) HashEntryOf(blockIndex int) (format.HashEntry, error) {
	slot, err := a.hashes.ReverseLookup(uint32(blockIndex))
	if err != nil {
		return format.HashEntry{}, err
	}
	return a.hashes.Entry(slot), nil
}

// readAt reads len(buf) bytes at absolute stream position pos.
func (a *Archive) readAt(buf []byte, pos int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rs == nil {
		return fmt.Errorf("%w: archive is closed", mpqerrors.ErrState)
	}
	if _, err := a.rs.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to %d: %w", pos, err)
	}
	if _, err := io.ReadFull(a.rs, buf); err != nil {
		return fmt.Errorf("reading %d bytes at %d: %w", len(buf), pos, err)
	}
	return nil
}
