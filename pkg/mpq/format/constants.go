package format

// Core format constants that never change

const (
	// Signature "MPQ\x1A" read as a little-endian word
	HeaderMagic = 0x1A51504D

	// Fixed sizes
	HeaderSize         = 32 // version 0 header
	HeaderSizeExtended = 44 // version 1 header, rejected
	HeaderAlignment    = 0x200
	HashEntrySize      = 16
	BlockEntrySize     = 16

	// Sector size is BaseBlockSize << BlockSizeShift
	BaseBlockSize         = 0x200
	DefaultBlockSizeShift = 3

	// DataOffset value written by protectors to hide the header size
	ProtectedDataOffset = 0x6D9E4B86

	// Hash table sentinels stored in BlockIndex
	HashEntryEmpty   = 0xFFFFFFFF
	HashEntryDeleted = 0xFFFFFFFE

	// Conventional names
	HashTableKeyName  = "(hash table)"
	BlockTableKeyName = "(block table)"
	ListfileName      = "(listfile)"
)

// Layout is the on-disk order of archive body and tables.
type Layout int

const (
	// LayoutArchiveBeforeTables writes header, file bytes, hash table, block table.
	LayoutArchiveBeforeTables Layout = iota
	// LayoutTablesBeforeArchive writes header, hash table, block table, file bytes.
	// Not implemented.
	LayoutTablesBeforeArchive
)

func (l Layout) String() string {
	switch l {
	case LayoutArchiveBeforeTables:
		return "archive-before-tables"
	case LayoutTablesBeforeArchive:
		return "tables-before-archive"
	default:
		return "unknown"
	}
}
