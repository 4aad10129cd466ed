package format

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
	"github.com/provide-io/mpqpack/pkg/mpq/storm"
)

// HashEntry is one slot of the hash table. BlockIndex points into the block
// table or holds HashEntryEmpty / HashEntryDeleted.
type HashEntry struct {
	Name1      uint32
	Name2      uint32
	Locale     uint16
	Platform   uint16
	BlockIndex uint32
}

// IsEmpty reports a never-used slot. Probing stops here.
func (e HashEntry) IsEmpty() bool { return e.BlockIndex == HashEntryEmpty }

// IsDeleted reports a tombstone. Probing continues past it.
func (e HashEntry) IsDeleted() bool { return e.BlockIndex == HashEntryDeleted }

// IsOccupied reports a slot that refers to a block entry.
func (e HashEntry) IsOccupied() bool { return !e.IsEmpty() && !e.IsDeleted() }

func emptyHashEntry() HashEntry {
	return HashEntry{
		Name1:      0xFFFFFFFF,
		Name2:      0xFFFFFFFF,
		Locale:     0xFFFF,
		Platform:   0xFFFF,
		BlockIndex: HashEntryEmpty,
	}
}

// Pack encodes the entry as a 16-byte record.
func (e HashEntry) Pack() []byte {
	buf := make([]byte, HashEntrySize)
	binary.LittleEndian.PutUint32(buf[0:4], e.Name1)
	binary.LittleEndian.PutUint32(buf[4:8], e.Name2)
	binary.LittleEndian.PutUint16(buf[8:10], e.Locale)
	binary.LittleEndian.PutUint16(buf[10:12], e.Platform)
	binary.LittleEndian.PutUint32(buf[12:16], e.BlockIndex)
	return buf
}

// UnpackHashEntry decodes a 16-byte record.
func UnpackHashEntry(data []byte) (HashEntry, error) {
	if len(data) != HashEntrySize {
		return HashEntry{}, fmt.Errorf("%w: hash entry needs %d bytes, got %d", mpqerrors.ErrTruncated, HashEntrySize, len(data))
	}
	return HashEntry{
		Name1:      binary.LittleEndian.Uint32(data[0:4]),
		Name2:      binary.LittleEndian.Uint32(data[4:8]),
		Locale:     binary.LittleEndian.Uint16(data[8:10]),
		Platform:   binary.LittleEndian.Uint16(data[10:12]),
		BlockIndex: binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}

// HashTable is the closed, open-addressed filename index. Capacity is always
// a power of two and probing wraps from the last slot to the first.
type HashTable struct {
	entries []HashEntry
	mask    uint32
}

// NewHashTable creates an empty table.
func NewHashTable(capacity uint32) (*HashTable, error) {
	if capacity == 0 || bits.OnesCount32(capacity) != 1 {
		return nil, fmt.Errorf("%w: got %d", mpqerrors.ErrInvalidCapacity, capacity)
	}

	entries := make([]HashEntry, capacity)
	for i := range entries {
		entries[i] = emptyHashEntry()
	}
	return &HashTable{entries: entries, mask: capacity - 1}, nil
}

// HashTableCapacity returns the capacity a build uses for fileCount files when
// the caller asked for requested slots: the larger of the two, rounded up to a
// power of two.
func HashTableCapacity(requested uint32, fileCount int) uint32 {
	size := requested
	if uint32(fileCount) > size {
		size = uint32(fileCount)
	}
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len32(size-1)
}

// ParseHashTable reads count encrypted records from r.
func ParseHashTable(r io.Reader, count uint32) (*HashTable, error) {
	if count == 0 || bits.OnesCount32(count) != 1 {
		return nil, fmt.Errorf("%w: hash table holds %d entries", mpqerrors.ErrInvalidTableSize, count)
	}

	data := make([]byte, int(count)*HashEntrySize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("reading hash table: %w", err)
	}
	storm.DecryptBytes(data, hashTableKey)

	entries := make([]HashEntry, count)
	for i := range entries {
		entry, err := UnpackHashEntry(data[i*HashEntrySize : (i+1)*HashEntrySize])
		if err != nil {
			return nil, err
		}
		entries[i] = entry
	}

	logger.Trace("📂 Parsed hash table", "entries", count)
	return &HashTable{entries: entries, mask: count - 1}, nil
}

// Len returns the capacity.
func (t *HashTable) Len() int { return len(t.entries) }

// Mask returns capacity - 1.
func (t *HashTable) Mask() uint32 { return t.mask }

// Entry returns the slot at index i.
func (t *HashTable) Entry(i int) HashEntry { return t.entries[i] }

// Lookup finds the slot holding filename.
func (t *HashTable) Lookup(filename string) (HashEntry, int, error) {
	index := storm.HashString(filename, storm.HashTableOffset)
	name1 := storm.HashString(filename, storm.HashNameA)
	name2 := storm.HashString(filename, storm.HashNameB)

	entry, slot, err := t.LookupHashes(index, name1, name2)
	if err != nil {
		return HashEntry{}, -1, fmt.Errorf("%w: %s", err, filename)
	}
	return entry, slot, nil
}

// LookupHashes probes from index&mask for the (name1, name2) pair. Probing
// skips tombstones and stops at the first empty slot or after visiting every
// slot once.
func (t *HashTable) LookupHashes(index, name1, name2 uint32) (HashEntry, int, error) {
	start := index & t.mask
	for i := uint32(0); i <= t.mask; i++ {
		slot := (start + i) & t.mask
		entry := t.entries[slot]

		if entry.IsEmpty() {
			break
		}
		if entry.IsDeleted() {
			continue
		}
		if entry.Name1 == name1 && entry.Name2 == name2 {
			return entry, int(slot), nil
		}
	}
	return HashEntry{}, -1, mpqerrors.ErrFileNotFound
}

// Insert places filename at the first empty or deleted slot of its probe
// chain and returns how many occupied slots were passed on the way.
func (t *HashTable) Insert(filename string, locale uint16, blockIndex uint32) (int, error) {
	return t.InsertHashes(
		storm.HashString(filename, storm.HashTableOffset),
		storm.HashString(filename, storm.HashNameA),
		storm.HashString(filename, storm.HashNameB),
		locale,
		blockIndex,
	)
}

// InsertHashes is Insert for precomputed hashes. A full table fails with
// ErrHashTableFull after one full wrap.
func (t *HashTable) InsertHashes(index, name1, name2 uint32, locale uint16, blockIndex uint32) (int, error) {
	start := index & t.mask
	for i := uint32(0); i <= t.mask; i++ {
		slot := (start + i) & t.mask
		if t.entries[slot].IsOccupied() {
			continue
		}

		t.entries[slot] = HashEntry{
			Name1:      name1,
			Name2:      name2,
			Locale:     locale,
			Platform:   0,
			BlockIndex: blockIndex,
		}
		return int(i), nil
	}
	return 0, fmt.Errorf("%w: %d slots occupied", mpqerrors.ErrHashTableFull, len(t.entries))
}

// ReverseLookup returns the slot referring to blockIndex by scanning the whole table.
func (t *HashTable) ReverseLookup(blockIndex uint32) (int, error) {
	for i, entry := range t.entries {
		if entry.IsOccupied() && entry.BlockIndex == blockIndex {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: no hash entry for block %d", mpqerrors.ErrNotFound, blockIndex)
}

// Pack serializes every slot without encryption.
func (t *HashTable) Pack() []byte {
	buf := make([]byte, 0, len(t.entries)*HashEntrySize)
	for _, entry := range t.entries {
		buf = append(buf, entry.Pack()...)
	}
	return buf
}

// WriteTo encrypts the table with the hash table key and writes it.
func (t *HashTable) WriteTo(w io.Writer) (int64, error) {
	data := t.Pack()
	storm.EncryptBytes(data, hashTableKey)

	n, err := w.Write(data)
	logger.Trace("📦 Wrote hash table", "entries", len(t.entries), "bytes", n)
	return int64(n), err
}
