package archive

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/provide-io/mpqpack/pkg/mpq/format"
)

// AddFilename attaches filename to its block entry. It reports whether the
// name was found.
func (a *Archive) AddFilename(filename string) bool {
	_, err := a.Lookup(filename)
	return err == nil
}

// AddFilenames reads a listing of names, one per line or separated by ';',
// and attaches every name that resolves. A leading byte order mark is
// skipped. It returns how many names resolved.
func (a *Archive) AddFilenames(r io.Reader) (int, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	found := 0
	for scanner.Scan() {
		for _, name := range splitListLine(scanner.Text()) {
			if a.AddFilename(name) {
				found++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return found, fmt.Errorf("reading filename list: %w", err)
	}

	a.logger.Trace("📋 Added filenames", "resolved", found)
	return found, nil
}

// AddListfileFilenames reads the archive's own "(listfile)".
func (a *Archive) AddListfileFilenames() (int, error) {
	f, err := a.OpenFile(format.ListfileName)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return a.AddFilenames(f)
}

func splitListLine(line string) []string {
	var names []string
	for _, part := range strings.Split(line, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

// listfileContent renders names the way they are stored in "(listfile)".
func listfileContent(names []string) []byte {
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}
