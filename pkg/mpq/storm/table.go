// Package storm implements the archive cipher: the shared key-stream table,
// filename hashing, word-level block encryption and seed recovery.
//
// The key-stream table is built once at package initialization from a fixed
// linear-congruential seed and is never mutated afterwards, so every function
// in this package is safe for concurrent use.
package storm

// TableSize is the number of 32-bit words in the key-stream table.
const TableSize = 0x500

const (
	tableSeed       = 0x100001
	tableMultiplier = 125
	tableIncrement  = 3
	tableModulus    = 0x2AAAAB
)

// Table is the precomputed key-stream table shared by hashing and encryption.
type Table [TableSize]uint32

// defaultTable is built once and only ever read.
var defaultTable = BuildTable()

// BuildTable generates the key-stream table. The output is bit-for-bit fixed;
// archives written by any other tool depend on it.
func BuildTable() *Table {
	var t Table
	seed := uint32(tableSeed)

	for index1 := 0; index1 < 0x100; index1++ {
		index2 := index1
		for i := 0; i < 5; i++ {
			seed = (seed*tableMultiplier + tableIncrement) % tableModulus
			high := (seed & 0xFFFF) << 16
			seed = (seed*tableMultiplier + tableIncrement) % tableModulus

			t[index2] = high | (seed & 0xFFFF)
			index2 += 0x100
		}
	}

	return &t
}

// Default returns the process-wide key-stream table.
// The returned table must be treated as read-only.
func Default() *Table {
	return defaultTable
}
