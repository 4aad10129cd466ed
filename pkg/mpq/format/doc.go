// Package format implements the on-disk structures of the archive: the fixed
// header and the two encrypted tables that map a filename to its bytes.
//
// Layout (little-endian throughout):
//   - Header: 32 bytes, located at any 0x200 boundary of its host stream
//   - Hash table: 16-byte slots keyed by three filename hashes
//   - Block table: 16-byte records describing position, sizes and flags
//
// Both tables are encrypted as one block each with a fixed key derived from
// a conventional name.
package format

import (
	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/mpqpack/pkg/mpq/storm"
)

var (
	hashTableKey  = storm.HashString(HashTableKeyName, storm.HashFileKey)
	blockTableKey = storm.HashString(BlockTableKeyName, storm.HashFileKey)
)

var logger = hclog.L().Named("mpq.format")
