package provision

import (
	"path/filepath"

	"github.com/kelseyhightower/envconfig"

	"github.com/lzprep/lzprep/probe"
)

type Config struct {
	// LZ4Version is the pinned release; the installed binary must report it.
	LZ4Version  string `envconfig:"LZ4_VERSION"`
	URLTemplate string `envconfig:"URL_TEMPLATE"`
	Prefix      string `envconfig:"PREFIX"`
	// BlockSize is the target filesystem block size. Informational: it is
	// embedded in the demo script and the final log line, nothing sizes I/O
	// by it.
	BlockSize int `envconfig:"BLOCK_SIZE"`
	// MountPoint is the fixed path whose backing device gets the demo.
	MountPoint    string `envconfig:"MOUNT_POINT"`
	ScriptPath    string `envconfig:"SCRIPT_PATH"`
	DropInDir     string `envconfig:"DROPIN_DIR"`
	DropInName    string `envconfig:"DROPIN_NAME"`
	LegacyFile    string `envconfig:"LEGACY_FILE"`
	ScratchDir    string `envconfig:"SCRATCH_DIR"`
	OSReleasePath string `envconfig:"OS_RELEASE"`
	// VerifyFrame decodes the demo's .lz4 output after the run as an extra
	// integrity check.
	VerifyFrame bool `envconfig:"VERIFY_FRAME"`
}

// fixed work directory under the mount point
const workDirName = "lz4demo"

// WorkDir is the fixed demo directory under the mount point.
func (c Config) WorkDir() string {
	return filepath.Join(c.MountPoint, workDirName)
}

func DefaultConfig() Config {
	return Config{
		LZ4Version:    "1.9.4",
		URLTemplate:   "https://github.com/lz4/lz4/releases/download/v{version}/lz4-{version}.tar.gz",
		Prefix:        "/usr/local",
		BlockSize:     4096,
		MountPoint:    "/data",
		ScriptPath:    "/usr/local/bin/lz4-demo.sh",
		DropInDir:     "/etc/profile.d",
		DropInName:    "lz4.sh",
		LegacyFile:    "/etc/environment",
		ScratchDir:    "/tmp",
		OSReleasePath: probe.OSReleasePath,
		VerifyFrame:   true,
	}
}

// ConfigFromEnv layers LZPREP_* environment overrides over the defaults.
// A bare environment yields exactly DefaultConfig.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	err := envconfig.Process("lzprep", &cfg)
	return cfg, err
}
