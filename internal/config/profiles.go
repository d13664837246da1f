package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigDir returns the directory padmond searches for named config
// profiles. PADMON_CONFIG_DIR overrides the per-user default.
func DefaultConfigDir() string {
	if dir := os.Getenv("PADMON_CONFIG_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "padmon")
	}
	return "/etc/padmon"
}

// ProfileInfo describes one named configuration profile on disk.
type ProfileInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListProfiles returns the TOML profiles in dir. A missing directory is not
// an error; it just means no profiles exist yet.
func ListProfiles(dir string) ([]ProfileInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, err
	}

	profiles := make([]ProfileInfo, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		profiles = append(profiles, ProfileInfo{
			Name:       strings.TrimSuffix(filepath.Base(m), ".toml"),
			Path:       m,
			ModifiedAt: info.ModTime(),
		})
	}
	return profiles, nil
}
