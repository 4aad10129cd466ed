package errors

import (
	"errors"
	"fmt"
)

var (
	// Error classes. Every error returned by the mpq packages wraps one of these.
	ErrFormat       = errors.New("❌ invalid archive format")
	ErrState        = errors.New("❌ invalid archive state")
	ErrNotFound     = errors.New("❌ not found")
	ErrNotSupported = errors.New("❌ not supported")

	// Format errors 📦
	ErrInvalidMagic       = fmt.Errorf("%w: header signature not found", ErrFormat)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported format version", ErrFormat)
	ErrTruncated          = fmt.Errorf("%w: truncated record", ErrFormat)
	ErrInvalidTableSize   = fmt.Errorf("%w: invalid table size", ErrFormat)

	// State errors 🔧
	ErrHashTableFull      = fmt.Errorf("%w: hash table full", ErrState)
	ErrPositionUnset      = fmt.Errorf("%w: entry position not assigned", ErrState)
	ErrPositionAlreadySet = fmt.Errorf("%w: entry position already assigned", ErrState)
	ErrInvalidCapacity    = fmt.Errorf("%w: capacity must be a power of two", ErrState)

	// Lookup errors 🔍
	ErrFileNotFound = fmt.Errorf("%w: file", ErrNotFound)
	ErrSeedNotFound = fmt.Errorf("%w: encryption seed", ErrNotFound)

	// Unsupported features 🚫
	ErrUnsupportedLayout      = fmt.Errorf("%w: tables before archive body", ErrNotSupported)
	ErrUnsupportedCompression = fmt.Errorf("%w: compression", ErrNotSupported)
	ErrArchiveTooLarge        = fmt.Errorf("%w: archive exceeds 32-bit offsets", ErrNotSupported)
)
