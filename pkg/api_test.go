package pkg

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provide-io/mpqpack/pkg/mpq/archive"
	"github.com/provide-io/mpqpack/pkg/mpq/format"
	"github.com/provide-io/mpqpack/pkg/mpq/operations"
)

func testLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "pkg_test",
		Level: hclog.Debug,
	})
}

type fixture struct {
	dir      string
	manifest string
	files    map[string][]byte
}

func writeFixture(t *testing.T, manifest Manifest) fixture {
	t.Helper()
	dir := t.TempDir()

	files := map[string][]byte{
		"readme.txt": []byte("hello archive\n"),
		"units.slk":  bytes.Repeat([]byte("ID;Name;Hp;Armor\r\n"), 400),
		"secret.bin": bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, 700),
		"single.txt": bytes.Repeat([]byte("single unit "), 50),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return fixture{dir: dir, manifest: path, files: files}
}

func defaultManifest() Manifest {
	shift := 1
	return Manifest{
		HashTableSize:  32,
		BlockSizeShift: &shift,
		Listfile:       true,
		Files: []ManifestFile{
			{Source: "readme.txt"},
			{Name: `data\units.slk`, Source: "units.slk", Compression: "zlib"},
			{Name: `data\secret.bin`, Source: "secret.bin", Compression: "bzip2", Encrypt: true, FixKey: true},
			{Name: `data\single.txt`, Source: "single.txt", Compression: "zlib", Encrypt: true, SingleUnit: true},
		},
	}
}

func TestBuildListExtractVerify(t *testing.T) {
	fx := writeFixture(t, defaultManifest())
	output := filepath.Join(fx.dir, "out.mpq")

	header, err := BuildArchive(fx.manifest, output, testLogger())
	require.NoError(t, err)
	assert.Equal(t, uint32(32), header.HashTableEntries)
	assert.Equal(t, uint32(5), header.BlockTableEntries)
	assert.Equal(t, uint16(1), header.BlockSizeShift)

	infos, err := ListArchive(output, "", testLogger())
	require.NoError(t, err)
	require.Len(t, infos, 5)
	names := make([]string, len(infos))
	for i, info := range infos {
		assert.True(t, info.Named)
		names[i] = info.Name
	}
	assert.Equal(t, []string{"readme.txt", `data\units.slk`, `data\secret.bin`, `data\single.txt`, format.ListfileName}, names)
	assert.Equal(t, "compress|encrypted|fixkey|exists", infos[2].Flags)

	dest := filepath.Join(fx.dir, "extracted")
	result, err := ExtractArchive(context.Background(), output, dest, ExtractOptions{Jobs: 2, Logger: testLogger()})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Extracted)
	assert.False(t, result.Skipped)

	for source, want := range map[string]string{
		"readme.txt": "readme.txt",
		"units.slk":  filepath.Join("data", "units.slk"),
		"secret.bin": filepath.Join("data", "secret.bin"),
		"single.txt": filepath.Join("data", "single.txt"),
	} {
		got, err := os.ReadFile(filepath.Join(dest, want))
		require.NoError(t, err)
		assert.Equal(t, fx.files[source], got, source)
	}

	again, err := ExtractArchive(context.Background(), output, dest, ExtractOptions{})
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	forced, err := ExtractArchive(context.Background(), output, dest, ExtractOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 5, forced.Extracted)

	report, err := VerifyArchive(output, "", testLogger())
	require.NoError(t, err)
	assert.Zero(t, report.Failures)
	assert.Len(t, report.Files, 5)
	assert.Contains(t, report.Checksum, "sha256:")

	readme, err := ChecksumReader(bytes.NewReader(fx.files["readme.txt"]))
	require.NoError(t, err)
	assert.Equal(t, readme, report.Files[0].Checksum)
}

func TestForcedExtractDropsStaleMarker(t *testing.T) {
	fx := writeFixture(t, defaultManifest())
	output := filepath.Join(fx.dir, "out.mpq")
	_, err := BuildArchive(fx.manifest, output, testLogger())
	require.NoError(t, err)

	dest := filepath.Join(fx.dir, "extracted")
	_, err = ExtractArchive(context.Background(), output, dest, ExtractOptions{})
	require.NoError(t, err)

	testCases := []struct {
		name    string
		opts    ExtractOptions
		wantErr bool
		skipped bool
	}{
		{name: "forced run fails", opts: ExtractOptions{Force: true, Listfile: filepath.Join(fx.dir, "missing.txt")}, wantErr: true},
		{name: "plain run re-extracts", opts: ExtractOptions{}, skipped: false},
		{name: "plain run skips", opts: ExtractOptions{}, skipped: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ExtractArchive(context.Background(), output, dest, tc.opts)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.skipped, result.Skipped)
		})
	}
}

func TestBuildWithHostFile(t *testing.T) {
	manifest := defaultManifest()
	manifest.HostFile = "host.exe"
	fx := writeFixture(t, manifest)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dir, "host.exe"), bytes.Repeat([]byte("MZ"), 700), 0o644))

	output := filepath.Join(fx.dir, "sfx.exe")
	header, err := BuildArchive(fx.manifest, output, testLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(0x600), header.Offset)

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("MZ"), 700), content[:1400])

	report, err := VerifyArchive(output, "", nil)
	require.NoError(t, err)
	assert.Len(t, report.Files, 5)
}

func TestExternalListfile(t *testing.T) {
	manifest := defaultManifest()
	manifest.Listfile = false
	fx := writeFixture(t, manifest)
	output := filepath.Join(fx.dir, "nolist.mpq")

	_, err := BuildArchive(fx.manifest, output, nil)
	require.NoError(t, err)

	infos, err := ListArchive(output, "", nil)
	require.NoError(t, err)
	for _, info := range infos {
		assert.False(t, info.Named)
		assert.Contains(t, info.Name, "Unknown file @ ")
	}

	// Unnamed entries extract under synthetic names; the encrypted
	// compressed one has its key recovered.
	dest := filepath.Join(fx.dir, "unnamed")
	_, err = ExtractArchive(context.Background(), output, dest, ExtractOptions{})
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(dest, ".extraction.incomplete"))

	listfile := filepath.Join(fx.dir, "names.txt")
	require.NoError(t, os.WriteFile(listfile, []byte("readme.txt\ndata\\units.slk\ndata\\secret.bin\ndata\\single.txt\n"), 0o644))

	infos, err = ListArchive(output, listfile, nil)
	require.NoError(t, err)
	for _, info := range infos {
		assert.True(t, info.Named, info.Name)
	}

	dest = filepath.Join(fx.dir, "named")
	result, err := ExtractArchive(context.Background(), output, dest, ExtractOptions{Listfile: listfile})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Extracted)
}

func TestUnnamedEntriesExtractUnderIndexNames(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "anon.mpq")
	data := bytes.Repeat([]byte("anonymous "), 300)

	_, err := archive.Create(output, []archive.Source{
		{Name: "plain.txt", Data: []byte("plain")},
		{Name: "hidden.txt", Data: data, Flags: format.FlagEncrypted, Compression: operations.MASK_ZLIB},
	}, archive.DefaultBuildOptions())
	require.NoError(t, err)

	dest := filepath.Join(dir, "out")
	result, err := ExtractArchive(context.Background(), output, dest, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Extracted)

	got, err := os.ReadFile(filepath.Join(dest, "File00000001.xxx"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestManifestValidation(t *testing.T) {
	badShift := 40
	testCases := []struct {
		name     string
		manifest Manifest
	}{
		{"missing source", Manifest{Files: []ManifestFile{{Name: "x"}}}},
		{"bad compression", Manifest{Files: []ManifestFile{{Source: "a", Compression: "lz4"}}}},
		{"fix key without encrypt", Manifest{Files: []ManifestFile{{Source: "a", FixKey: true}}}},
		{"duplicate name", Manifest{Files: []ManifestFile{{Source: "a/x.txt"}, {Source: "b/X.TXT"}}}},
		{"block size shift", Manifest{BlockSizeShift: &badShift}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.manifest.Validate(), ErrInvalidManifest)
		})
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadManifest(path)
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestBuildArchiveRemovesOutputOnFailure(t *testing.T) {
	manifest := defaultManifest()
	manifest.Files = append(manifest.Files, ManifestFile{Source: "does-not-exist.txt"})
	fx := writeFixture(t, manifest)
	output := filepath.Join(fx.dir, "out.mpq")

	_, err := BuildArchive(fx.manifest, output, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, output)
}
