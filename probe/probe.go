// Package probe detects the host's OS identity and package manager.
package probe

import (
	"os"
	"os/exec"
	"strings"

	"github.com/lzprep/lzprep/common"
)

const OSReleasePath = "/etc/os-release"

type PkgManager string

const (
	Apt PkgManager = "apt"
	Yum PkgManager = "yum"
)

type Platform struct {
	OSName     string
	PkgManager PkgManager
}

// managerProbes is in priority order; the first binary found on PATH wins.
var managerProbes = []struct {
	bin string
	mgr PkgManager
}{
	{common.AptGetBin, Apt},
	{common.YumBin, Yum},
}

// Detect reads OS identity from the os-release file at path and probes for a
// supported package manager. A nil lookPath uses exec.LookPath. Both a
// missing os-release file and an unknown package manager are fatal, there is
// nothing to fall back to.
func Detect(path string, lookPath func(string) (string, error)) (Platform, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Platform{}, common.Errorf(common.KindDetection, "read %s: %v", path, err)
	}
	p := Platform{OSName: parseOSName(string(data))}
	for _, mp := range managerProbes {
		if _, err := lookPath(mp.bin); err == nil {
			p.PkgManager = mp.mgr
			return p, nil
		}
	}
	return Platform{}, common.Errorf(common.KindUnsupportedPlatform,
		"no supported package manager (tried %s, %s)", common.AptGetBin, common.YumBin)
}

// parseOSName prefers PRETTY_NAME, falls back to NAME.
func parseOSName(data string) string {
	var name string
	for _, line := range strings.Split(data, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		v = strings.Trim(v, `"`)
		switch k {
		case "PRETTY_NAME":
			return v
		case "NAME":
			name = v
		}
	}
	if name == "" {
		return "unknown"
	}
	return name
}
