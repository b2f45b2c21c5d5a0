// Package pathutil normalizes user-supplied file paths before they reach
// the file-read step. Invalid paths are not detected here; reads fail
// where they happen.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// Normalize expands a leading ~ to the current user's home directory.
// Every other path is returned unchanged; relative paths stay relative
// to the process working directory.
func Normalize(raw string) string {
	if raw != "~" && !strings.HasPrefix(raw, "~/") && !strings.HasPrefix(raw, `~\`) {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	if raw == "~" {
		return home
	}
	return filepath.Join(home, raw[2:])
}
