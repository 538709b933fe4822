package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appDir = "mixdeck"

// ConfigPaths returns prioritized paths where the named config file
// can live: user config dir first, then system config dirs
func ConfigPaths(filename string) []string {
	paths := []string{filepath.Join(xdg.ConfigHome, appDir, filename)}
	for _, dir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(dir, appDir, filename))
	}
	return paths
}

// CachePath returns the cache directory for a specific purpose
func CachePath(purpose string) string {
	base := appDir
	if purpose != "" {
		base = filepath.Join(base, purpose)
	}
	return filepath.Join(xdg.CacheHome, base)
}
