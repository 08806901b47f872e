// Package zip bundles finished generations for download.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Entry is one image destined for the export archive.
type Entry struct {
	Name string
	Data []byte
}

// Archive writes entries into a zip, deduplicating colliding names with a
// numeric suffix. Unreadable entries are skipped rather than aborting the
// whole bundle.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		if len(e.Data) == 0 {
			continue
		}
		name := e.Name
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		seen[e.Name]++

		w, err := zw.Create(name + ".png")
		if err != nil {
			continue
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close archive: %w", err)
	}
	return buf.Bytes(), nil
}
