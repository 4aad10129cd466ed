package archive

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hashicorp/go-hclog"

	mpqerrors "github.com/provide-io/mpqpack/pkg/mpq/errors"
	"github.com/provide-io/mpqpack/pkg/mpq/format"
	"github.com/provide-io/mpqpack/pkg/mpq/operations"
)

// DefaultHashTableSize is used when BuildOptions.HashTableSize is zero.
const DefaultHashTableSize = 0x10

// Source is one file to be archived.
type Source struct {
	// Name is the archive path, conventionally with '\' separators.
	Name string
	Data []byte

	// Flags may request FlagEncrypted, FlagFixKey, FlagSingleUnit and
	// FlagCompressedMulti. FlagExists is always added.
	Flags format.FileFlags

	// Compression is the sector compression mask. FlagCompressedMulti without
	// a mask selects zlib.
	Compression uint8
}

// BuildOptions configures BuildNew.
type BuildOptions struct {
	// HashTableSize is the requested slot count. It is raised to the number
	// of files and rounded up to a power of two.
	HashTableSize uint32

	// BlockSizeShift sets the sector size to 0x200 << BlockSizeShift.
	BlockSizeShift uint16

	Layout format.Layout

	// IncludeListfile appends a "(listfile)" naming every source.
	IncludeListfile bool

	Logger hclog.Logger
}

// DefaultBuildOptions returns options with the conventional sector size.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		HashTableSize:  DefaultHashTableSize,
		BlockSizeShift: format.DefaultBlockSizeShift,
		Layout:         format.LayoutArchiveBeforeTables,
	}
}

// Create writes a new archive file at path. The file must not exist yet.
func Create(path string, sources []Source, opts BuildOptions) (*format.Header, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	header, err := BuildNew(f, sources, opts)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing archive: %w", closeErr)
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return header, nil
}

// BuildNew writes an archive to ws starting at its current position, which
// is first padded to a 0x200 boundary. Files are written in order, then the
// hash table, then the block table; the header is backpatched last. On
// return ws is positioned after the block table. The returned header is
// rebased to absolute positions.
func BuildNew(ws io.WriteSeeker, sources []Source, opts BuildOptions) (*format.Header, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if opts.Layout != format.LayoutArchiveBeforeTables {
		return nil, fmt.Errorf("%w: %s", mpqerrors.ErrUnsupportedLayout, opts.Layout)
	}
	if opts.BlockSizeShift > MaxBlockSizeShift {
		return nil, fmt.Errorf("%w: block size shift %d", mpqerrors.ErrNotSupported, opts.BlockSizeShift)
	}

	if opts.IncludeListfile {
		sources = withListfile(sources)
	}

	requested := opts.HashTableSize
	if requested == 0 {
		requested = DefaultHashTableSize
	}
	hashes, err := format.NewHashTable(format.HashTableCapacity(requested, len(sources)))
	if err != nil {
		return nil, err
	}

	headerOffset, err := alignStream(ws, logger)
	if err != nil {
		return nil, err
	}
	if headerOffset > math.MaxUint32 {
		return nil, fmt.Errorf("%w: header at %d", mpqerrors.ErrArchiveTooLarge, headerOffset)
	}
	if _, err := ws.Write(make([]byte, format.HeaderSize)); err != nil {
		return nil, fmt.Errorf("reserving header: %w", err)
	}

	blocks := format.NewBlockTable(len(sources), uint32(headerOffset))
	blockSize := int(format.BaseBlockSize) << opts.BlockSizeShift
	cursor := headerOffset + format.HeaderSize

	for i, src := range sources {
		written, err := writeSource(ws, hashes, blocks, src, uint32(i), cursor, uint32(headerOffset), blockSize, logger)
		if err != nil {
			return nil, fmt.Errorf("archiving %s: %w", src.Name, err)
		}
		cursor += written
		if cursor-headerOffset > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %d bytes after %s", mpqerrors.ErrArchiveTooLarge, cursor-headerOffset, src.Name)
		}
	}

	if _, err := hashes.WriteTo(ws); err != nil {
		return nil, fmt.Errorf("writing hash table: %w", err)
	}
	if _, err := blocks.WriteTo(ws); err != nil {
		return nil, fmt.Errorf("writing block table: %w", err)
	}

	archived := uint32(cursor - headerOffset - format.HeaderSize)
	header, err := format.ComputeHeader(opts.Layout, archived, uint32(hashes.Len()), uint32(blocks.Len()), opts.BlockSizeShift)
	if err != nil {
		return nil, err
	}

	end, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("measuring archive: %w", err)
	}
	if _, err := ws.Seek(headerOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to header: %w", err)
	}
	if _, err := header.WriteTo(ws); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if _, err := ws.Seek(end, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking past tables: %w", err)
	}

	header.Rebase(headerOffset)
	logger.Info("📦 Built archive",
		"files", blocks.Len(),
		"hash_entries", hashes.Len(),
		"header_offset", headerOffset,
		"archive_size", header.ArchiveSize,
	)
	return header, nil
}

// alignStream pads ws with zeros up to the next header boundary and returns
// the aligned position.
func alignStream(ws io.WriteSeeker, logger hclog.Logger) (int64, error) {
	pos, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("querying stream position: %w", err)
	}

	rem := pos % format.HeaderAlignment
	if rem == 0 {
		return pos, nil
	}

	logger.Warn("⚠️ Data before the archive is not aligned to 512 bytes, padding", "position", pos, "padding", format.HeaderAlignment-rem)
	if _, err := ws.Write(make([]byte, format.HeaderAlignment-rem)); err != nil {
		return 0, fmt.Errorf("padding to header boundary: %w", err)
	}
	return pos + format.HeaderAlignment - rem, nil
}

func writeSource(ws io.Writer, hashes *format.HashTable, blocks *format.BlockTable, src Source, blockIndex uint32, filePos int64, headerOffset uint32, blockSize int, logger hclog.Logger) (int64, error) {
	if uint64(len(src.Data)) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d bytes", mpqerrors.ErrArchiveTooLarge, len(src.Data))
	}

	flags, mask, err := storageFlags(src)
	if err != nil {
		return 0, err
	}

	entry := format.NewBlockEntry(src.Name, 0, uint32(len(src.Data)), flags)
	if err := entry.SetPosition(uint32(filePos), headerOffset); err != nil {
		return 0, err
	}

	payload, err := encodePayload(src.Data, flags, mask, blockSize, entry.Seed())
	if err != nil {
		return 0, err
	}
	entry.CompressedSize = uint32(len(payload))

	if _, err := ws.Write(payload); err != nil {
		return 0, fmt.Errorf("writing payload: %w", err)
	}

	collisions, err := hashes.Insert(src.Name, 0, blockIndex)
	if err != nil {
		return 0, err
	}
	if err := blocks.Append(entry); err != nil {
		return 0, err
	}

	logger.Trace("📄 Archived file",
		"name", src.Name,
		"block_index", blockIndex,
		"size", entry.FileSize,
		"stored", entry.CompressedSize,
		"compression", operations.MaskToString(mask),
		"flags", flags.String(),
		"collisions", collisions,
	)
	return int64(len(payload)), nil
}

// withListfile appends a "(listfile)" source naming every other source. A
// caller-supplied listfile is replaced.
func withListfile(sources []Source) []Source {
	names := make([]string, 0, len(sources))
	out := make([]Source, 0, len(sources)+1)
	for _, src := range sources {
		if src.Name == format.ListfileName {
			continue
		}
		names = append(names, src.Name)
		out = append(out, src)
	}
	return append(out, Source{
		Name:        format.ListfileName,
		Data:        listfileContent(names),
		Compression: operations.MASK_ZLIB,
	})
}
