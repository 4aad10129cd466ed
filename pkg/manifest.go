package pkg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/provide-io/mpqpack/pkg/mpq/archive"
	"github.com/provide-io/mpqpack/pkg/mpq/format"
	"github.com/provide-io/mpqpack/pkg/mpq/operations"
)

// Manifest describes an archive to build.
type Manifest struct {
	HashTableSize  uint32 `json:"hash_table_size,omitempty"`
	BlockSizeShift *int   `json:"block_size_shift,omitempty"`
	Listfile       bool   `json:"listfile,omitempty"`

	// HostFile is copied to the output first; the archive follows it.
	HostFile string `json:"host_file,omitempty"`

	Files []ManifestFile `json:"files"`

	dir string
}

// ManifestFile is one file entry of a manifest.
type ManifestFile struct {
	Name        string `json:"name,omitempty"` // defaults to the source's base name
	Source      string `json:"source"`
	Compression string `json:"compression,omitempty"` // "raw", "zlib", "bzip2"
	Encrypt     bool   `json:"encrypt,omitempty"`
	FixKey      bool   `json:"fix_key,omitempty"`
	SingleUnit  bool   `json:"single_unit,omitempty"`
}

// LoadManifest reads a manifest. Relative paths in it are resolved against
// the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	m.dir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest without touching any source file.
func (m *Manifest) Validate() error {
	if m.BlockSizeShift != nil && (*m.BlockSizeShift < 0 || *m.BlockSizeShift > archive.MaxBlockSizeShift) {
		return fmt.Errorf("%w: block_size_shift %d out of range [0,%d]", ErrInvalidManifest, *m.BlockSizeShift, archive.MaxBlockSizeShift)
	}

	seen := make(map[string]int, len(m.Files))
	for i, f := range m.Files {
		if f.Source == "" {
			return fmt.Errorf("%w: file %d has no source", ErrInvalidManifest, i)
		}
		if _, err := operations.StringToMask(f.Compression); err != nil {
			return fmt.Errorf("%w: file %d: %v", ErrInvalidManifest, i, err)
		}
		if f.FixKey && !f.Encrypt {
			return fmt.Errorf("%w: file %d sets fix_key without encrypt", ErrInvalidManifest, i)
		}

		name := f.archiveName()
		if prev, ok := seen[upperASCII(name)]; ok {
			return fmt.Errorf("%w: files %d and %d are both named %q", ErrInvalidManifest, prev, i, name)
		}
		seen[upperASCII(name)] = i
	}
	return nil
}

// BuildOptions converts the manifest's table settings.
func (m *Manifest) BuildOptions() archive.BuildOptions {
	opts := archive.DefaultBuildOptions()
	if m.HashTableSize != 0 {
		opts.HashTableSize = m.HashTableSize
	}
	if m.BlockSizeShift != nil {
		opts.BlockSizeShift = uint16(*m.BlockSizeShift)
	}
	opts.IncludeListfile = m.Listfile
	return opts
}

// Sources reads every source file.
func (m *Manifest) Sources() ([]archive.Source, error) {
	sources := make([]archive.Source, 0, len(m.Files))
	for _, f := range m.Files {
		data, err := os.ReadFile(m.resolve(f.Source))
		if err != nil {
			return nil, fmt.Errorf("reading source of %s: %w", f.archiveName(), err)
		}

		mask, err := operations.StringToMask(f.Compression)
		if err != nil {
			return nil, err
		}

		var flags format.FileFlags
		if f.Encrypt {
			flags |= format.FlagEncrypted
		}
		if f.FixKey {
			flags |= format.FlagFixKey
		}
		if f.SingleUnit {
			flags |= format.FlagSingleUnit
		}

		sources = append(sources, archive.Source{
			Name:        f.archiveName(),
			Data:        data,
			Flags:       flags,
			Compression: mask,
		})
	}
	return sources, nil
}

func (m *Manifest) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.dir, path)
}

func (f ManifestFile) archiveName() string {
	if f.Name != "" {
		return f.Name
	}
	return filepath.Base(f.Source)
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
