package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfig(t *testing.T) {
	testCases := []struct {
		name     string
		cli      string
		envLevel string
		envJSON  string
		want     Config
	}{
		{"default", "", "", "", Config{Level: "warn", Source: "default"}},
		{"env", "", "debug", "", Config{Level: "debug", Source: EnvLogLevel}},
		{"cli wins", "trace", "debug", "", Config{Level: "trace", Source: "CLI --log-level"}},
		{"json prefix", "json:debug", "", "", Config{Level: "debug", Source: "CLI --log-level", JSON: true}},
		{"bare json", "json", "", "", Config{Level: "info", Source: "CLI --log-level", JSON: true}},
		{"json env", "", "", "1", Config{Level: "warn", Source: "default", JSON: true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(EnvLogLevel, tc.envLevel)
			t.Setenv(EnvJSONLog, tc.envJSON)
			assert.Equal(t, tc.want, ResolveConfig(tc.cli))
		})
	}
}

func TestNewLoggerPrefixesLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("mpqpack-test", Config{Level: "info"}, &buf)

	logger.Info("first", "key", "value")
	logger.Debug("hidden")
	logger.Warn("second")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, LinePrefix), line)
	}
	assert.Contains(t, lines[0], "key=value")
}

func TestPrefixWriterBuffersPartialLines(t *testing.T) {
	var buf bytes.Buffer
	pw := NewPrefixWriter("> ", &buf)

	n, err := pw.Write([]byte("par"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, buf.String())

	_, err = pw.Write([]byte("tial\nnext\n"))
	require.NoError(t, err)
	assert.Equal(t, "> partial\n> next\n", buf.String())
}

func TestPrefixWriterFlush(t *testing.T) {
	var buf bytes.Buffer
	pw := NewPrefixWriter("> ", &buf)

	_, err := pw.Write([]byte("dangling"))
	require.NoError(t, err)
	require.NoError(t, pw.Flush())
	require.NoError(t, pw.Flush())
	assert.Equal(t, "> dangling\n", buf.String())
}
