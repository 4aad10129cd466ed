package pkg

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Checksums are written as "sha256:hexvalue".
const checksumPrefix = "sha256:"

// ChecksumFile returns the prefixed SHA-256 of the file at path.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return ChecksumReader(f)
}

// ChecksumReader returns the prefixed SHA-256 of everything r yields.
func ChecksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing: %w", err)
	}
	return checksumPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

func checksumHex(checksum string) string {
	return strings.TrimPrefix(checksum, checksumPrefix)
}
