package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MPQPACK_LOG_PATH", filepath.Join(t.TempDir(), "mpqpack.log"))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashCommand(t *testing.T) {
	out, err := run(t, "hash", "(hash table)", "(block table)")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[1], "C3AF3770"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "EC83B3A3"), lines[2])
}

func TestBuildListExtractVerifyCommands(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme"), []byte("world!"), 0o644))
	manifest := `{
  "hash_table_size": 8,
  "block_size_shift": 8,
  "listfile": true,
  "files": [
    {"source": "a.txt"},
    {"source": "readme", "compression": "zlib", "encrypt": true}
  ]
}`
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))
	archivePath := filepath.Join(dir, "out.mpq")

	out, err := run(t, "build", "-m", manifestPath, "-o", archivePath, "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "3 files, 8 hash slots")

	out, err = run(t, "list", archivePath)
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "readme")
	assert.Contains(t, out, "(listfile)")

	out, err = run(t, "list", "--json", archivePath)
	require.NoError(t, err)
	assert.Contains(t, out, `"file_size": 6`)

	dest := filepath.Join(dir, "out")
	out, err = run(t, "extract", "-o", dest, archivePath)
	require.NoError(t, err)
	assert.Contains(t, out, "3 files")
	got, err := os.ReadFile(filepath.Join(dest, "readme"))
	require.NoError(t, err)
	assert.Equal(t, "world!", string(got))

	out, err = run(t, "extract", "-o", dest, archivePath)
	require.NoError(t, err)
	assert.Contains(t, out, "already extracted")

	out, err = run(t, "verify", archivePath)
	require.NoError(t, err)
	assert.Contains(t, out, "OK   a.txt sha256:")
}

func TestBuildRequiresFlags(t *testing.T) {
	_, err := run(t, "build")
	assert.Error(t, err)
}
