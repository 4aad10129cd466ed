package format

import (
	"fmt"
	"io"
	"iter"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
	"github.com/provide-io/mpqpack/pkg/mpq/storm"
)

// BlockTable is the ordered sequence of file descriptors. A hash entry's
// BlockIndex is an index into it.
type BlockTable struct {
	entries      []*BlockEntry
	headerOffset uint32
}

// NewBlockTable creates an empty table for an archive whose header sits at headerOffset.
func NewBlockTable(capacity int, headerOffset uint32) *BlockTable {
	return &BlockTable{
		entries:      make([]*BlockEntry, 0, capacity),
		headerOffset: headerOffset,
	}
}

// ParseBlockTable reads count encrypted records from r.
func ParseBlockTable(r io.Reader, count uint32, headerOffset uint32) (*BlockTable, error) {
	data := make([]byte, int(count)*BlockEntrySize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("reading block table: %w", err)
	}
	storm.DecryptBytes(data, blockTableKey)

	table := NewBlockTable(int(count), headerOffset)
	for i := 0; i < int(count); i++ {
		entry, err := UnpackBlockEntry(data[i*BlockEntrySize:(i+1)*BlockEntrySize], headerOffset)
		if err != nil {
			return nil, err
		}
		table.entries = append(table.entries, entry)
	}

	logger.Trace("📂 Parsed block table", "entries", count, "header_offset", headerOffset)
	return table, nil
}

// Append adds an entry. Entries without an assigned position are rejected.
func (t *BlockTable) Append(entry *BlockEntry) error {
	if !entry.IsAdded() {
		return fmt.Errorf("%w: %s", mpqerrors.ErrPositionUnset, entry)
	}
	t.entries = append(t.entries, entry)
	return nil
}

// Len returns the number of entries.
func (t *BlockTable) Len() int { return len(t.entries) }

// At returns the entry at index i.
func (t *BlockTable) At(i int) (*BlockEntry, error) {
	if i < 0 || i >= len(t.entries) {
		return nil, fmt.Errorf("%w: block index %d out of range [0,%d)", mpqerrors.ErrNotFound, i, len(t.entries))
	}
	return t.entries[i], nil
}

// All yields every entry with its block index. The sequence can be ranged
// over any number of times.
func (t *BlockTable) All() iter.Seq2[int, *BlockEntry] {
	return func(yield func(int, *BlockEntry) bool) {
		for i, entry := range t.entries {
			if !yield(i, entry) {
				return
			}
		}
	}
}

// Pack serializes every entry without encryption.
func (t *BlockTable) Pack() []byte {
	buf := make([]byte, 0, len(t.entries)*BlockEntrySize)
	for _, entry := range t.entries {
		buf = append(buf, entry.Pack(t.headerOffset)...)
	}
	return buf
}

// WriteTo encrypts the table with the block table key and writes it.
func (t *BlockTable) WriteTo(w io.Writer) (int64, error) {
	data := t.Pack()
	storm.EncryptBytes(data, blockTableKey)

	n, err := w.Write(data)
	logger.Trace("📦 Wrote block table", "entries", len(t.entries), "bytes", n)
	return int64(n), err
}
