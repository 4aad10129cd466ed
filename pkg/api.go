// Package pkg is the high-level facade used by the mpqpack command: build an
// archive from a manifest, list it, extract it and verify it.
package pkg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/provide-io/mpqpack/internal/extract"
	"github.com/provide-io/mpqpack/pkg/mpq/archive"
	"github.com/provide-io/mpqpack/pkg/mpq/format"
)

// BuildArchive builds the archive described by the manifest at manifestPath
// into outputPath, replacing any existing file.
func BuildArchive(manifestPath, outputPath string, logger hclog.Logger) (*format.Header, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	sources, err := manifest.Sources()
	if err != nil {
		return nil, err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}

	header, err := buildInto(out, manifest, sources, logger)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing output: %w", closeErr)
	}
	if err != nil {
		os.Remove(outputPath)
		return nil, err
	}

	logger.Info("✅ Archive written", "path", outputPath, "files", header.BlockTableEntries, "header_offset", header.Offset)
	return header, nil
}

func buildInto(out *os.File, manifest *Manifest, sources []archive.Source, logger hclog.Logger) (*format.Header, error) {
	if manifest.HostFile != "" {
		host, err := os.Open(manifest.resolve(manifest.HostFile))
		if err != nil {
			return nil, fmt.Errorf("opening host file: %w", err)
		}
		n, err := io.Copy(out, host)
		host.Close()
		if err != nil {
			return nil, fmt.Errorf("copying host file: %w", err)
		}
		logger.Debug("📎 Copied host file", "path", manifest.HostFile, "bytes", n)
	}

	opts := manifest.BuildOptions()
	opts.Logger = logger
	return archive.BuildNew(out, sources, opts)
}

// EntryInfo summarizes one block entry for listing.
type EntryInfo struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	Named          bool   `json:"named"`
	Position       uint32 `json:"position"`
	CompressedSize uint32 `json:"compressed_size"`
	FileSize       uint32 `json:"file_size"`
	Flags          string `json:"flags"`
}

// ListArchive lists every block entry of the archive at path. Names come from
// the archive's own listfile plus the optional external listfile.
func ListArchive(path, externalListfile string, logger hclog.Logger) ([]EntryInfo, error) {
	a, err := openWithNames(path, externalListfile, logger)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	infos := make([]EntryInfo, 0, a.Count())
	for i, entry := range a.Entries() {
		name, named := entry.Filename()
		if !named {
			name = entry.String()
		}
		infos = append(infos, EntryInfo{
			Index:          i,
			Name:           name,
			Named:          named,
			Position:       entry.FilePos(),
			CompressedSize: entry.CompressedSize,
			FileSize:       entry.FileSize,
			Flags:          entry.Flags.String(),
		})
	}
	return infos, nil
}

func openWithNames(path, externalListfile string, logger hclog.Logger) (*archive.Archive, error) {
	a, err := archive.Open(path, archive.OpenOptions{Logger: logger, LoadListfile: true})
	if err != nil {
		return nil, err
	}
	if externalListfile == "" {
		return a, nil
	}

	f, err := os.Open(externalListfile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening listfile: %w", err)
	}
	defer f.Close()

	n, err := a.AddFilenames(f)
	if err != nil {
		a.Close()
		return nil, err
	}
	if logger != nil {
		logger.Debug("📋 Applied external listfile", "path", externalListfile, "resolved", n)
	}
	return a, nil
}

// ExtractOptions configures ExtractArchive.
type ExtractOptions struct {
	// Listfile names an external listing applied after the archive's own.
	Listfile string

	// Jobs bounds concurrent file writes. Defaults to GOMAXPROCS.
	Jobs int

	// Force re-extracts even when the destination is marked complete.
	Force bool

	Logger hclog.Logger
}

// ExtractResult reports what ExtractArchive did.
type ExtractResult struct {
	Dir       string
	Extracted int
	Skipped   bool // destination already held this archive
}

// ExtractArchive writes every file of the archive under dir. An empty dir
// selects a cache directory keyed by the archive's checksum. Files without a
// known name are written as File00000000.xxx using their block index.
func ExtractArchive(ctx context.Context, path, dir string, opts ExtractOptions) (*ExtractResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	checksum, err := ChecksumFile(path)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = extract.CacheDir(checksumHex(checksum))
	}

	if !opts.Force && extract.IsComplete(dir, checksum) {
		logger.Info("✅ Already extracted", "dir", dir)
		return &ExtractResult{Dir: dir, Skipped: true}, nil
	}
	if opts.Force {
		extract.Clean(dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating destination: %w", err)
	}

	a, err := openWithNames(path, opts.Listfile, logger)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	count, err := extractEntries(ctx, a, dir, opts.Jobs, logger)
	if err != nil {
		if markErr := extract.MarkIncomplete(dir, err.Error()); markErr != nil {
			logger.Debug("Failed to write incomplete marker", "error", markErr)
		}
		return nil, err
	}

	if err := extract.MarkComplete(dir, filepath.Base(path), checksum, count); err != nil {
		return nil, err
	}
	logger.Info("✅ Extracted archive", "dir", dir, "files", count)
	return &ExtractResult{Dir: dir, Extracted: count}, nil
}

func extractEntries(ctx context.Context, a *archive.Archive, dir string, jobs int, logger hclog.Logger) (int, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	count := 0
	for i, entry := range a.Entries() {
		if !entry.Exists() {
			continue
		}
		name, named := entry.Filename()
		if !named {
			name = fmt.Sprintf("File%08d.xxx", i)
		}
		dest, err := extract.DestinationPath(dir, name)
		if err != nil {
			return 0, err
		}
		count++

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return extractOne(a, entry, dest, logger)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return count, nil
}

func extractOne(a *archive.Archive, entry *format.BlockEntry, dest string, logger hclog.Logger) error {
	f, err := a.OpenEntry(entry)
	if err != nil {
		return fmt.Errorf("opening %s: %w", entry, err)
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", entry, err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	n, err := io.Copy(out, f)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("extracting %s: %w", entry, err)
	}

	logger.Trace("📄 Extracted file", "file", entry.String(), "dest", dest, "bytes", n)
	return nil
}
