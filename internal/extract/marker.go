package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	completeMarker   = ".extraction.complete"
	incompleteMarker = ".extraction.incomplete"
)

// Marker records a finished extraction.
type Marker struct {
	Timestamp time.Time `json:"timestamp"`
	Archive   string    `json:"archive"`
	Checksum  string    `json:"checksum"`
	Files     int       `json:"files"`
}

// IsComplete reports whether dir holds a finished extraction of the archive
// with the given checksum.
func IsComplete(dir, checksum string) bool {
	data, err := os.ReadFile(filepath.Join(dir, completeMarker))
	if err != nil {
		return false
	}

	var marker Marker
	if err := json.Unmarshal(data, &marker); err != nil {
		return false
	}
	return checksum != "" && marker.Checksum == checksum
}

// MarkComplete writes the completion marker and drops any failure marker.
func MarkComplete(dir, archive, checksum string, files int) error {
	marker := Marker{
		Timestamp: time.Now().UTC(),
		Archive:   archive,
		Checksum:  checksum,
		Files:     files,
	}

	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}

	os.Remove(filepath.Join(dir, incompleteMarker))
	if err := os.WriteFile(filepath.Join(dir, completeMarker), data, 0o644); err != nil {
		return fmt.Errorf("writing completion marker: %w", err)
	}
	return nil
}

// MarkIncomplete records a failed extraction.
func MarkIncomplete(dir, reason string) error {
	marker := map[string]any{
		"timestamp": time.Now().UTC(),
		"reason":    reason,
	}

	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}

	os.Remove(filepath.Join(dir, completeMarker))
	return os.WriteFile(filepath.Join(dir, incompleteMarker), data, 0o644)
}

// Clean removes both markers.
func Clean(dir string) {
	os.Remove(filepath.Join(dir, incompleteMarker))
	os.Remove(filepath.Join(dir, completeMarker))
}
