package record

import (
	"os"
	"path/filepath"
	"time"
)

// FileInfo describes one record stream on disk.
type FileInfo struct {
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// List returns the record streams present in dir, oldest first by name
// (filenames embed the session start time, so name order is time order).
func List(dir string) ([]FileInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "drum_log_*.csv"))
	if err != nil {
		return nil, err
	}

	files := make([]FileInfo, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue // deleted between glob and stat
		}
		files = append(files, FileInfo{
			Filename:   filepath.Base(m),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return files, nil
}
