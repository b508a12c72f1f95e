// Package envfile persists the library search path into system-wide
// environment configuration: a drop-in fragment plus the legacy global file.
package envfile

import (
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	DropInDir  string // drop-in fragment directory, e.g. /etc/profile.d
	DropInName string // fragment file name, e.g. lz4.sh
	LegacyFile string // legacy global file, e.g. /etc/environment
}

// UpsertLine ensures line appears exactly once in the file at path, creating
// the file if absent. Prior content is preserved; duplicate occurrences left
// by earlier runs are collapsed. Not safe against concurrent writers, which
// is fine for a one-shot provisioning tool.
func UpsertLine(path, line string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}
	var out []string
	seen := false
	for _, l := range lines {
		if l == line {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, l)
	}
	if !seen {
		out = append(out, line)
	}
	return os.WriteFile(path, []byte(strings.Join(out, "\n")+"\n"), 0644)
}

// Apply records libDir in both environment surfaces: an exported entry for
// login shells in the drop-in directory, and a plain assignment in the
// legacy file. Both writes are idempotent.
func Apply(cfg Config, libDir string) error {
	if err := os.MkdirAll(cfg.DropInDir, 0755); err != nil {
		return err
	}
	dropIn := filepath.Join(cfg.DropInDir, cfg.DropInName)
	if err := UpsertLine(dropIn, "export LD_LIBRARY_PATH="+libDir+":$LD_LIBRARY_PATH"); err != nil {
		return err
	}
	return UpsertLine(cfg.LegacyFile, "LD_LIBRARY_PATH="+libDir)
}
