// Package installer downloads, builds, and installs the pinned lz4 release
// from source, then verifies the installed binary reports the pinned version.
package installer

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/lzprep/lzprep/common"
)

type Config struct {
	// Version is the pinned lz4 release; the installed binary must report it.
	Version string
	// URLTemplate is the source archive location with {version} placeholders.
	URLTemplate string
	// Prefix is passed to make install as PREFIX.
	Prefix string
	// WorkDir holds the downloaded archive and extracted tree.
	WorkDir string
}

type Installer struct {
	cfg Config
	r   common.Runner
	log *zap.SugaredLogger
}

func New(cfg Config, r common.Runner, log *zap.SugaredLogger) *Installer {
	return &Installer{cfg: cfg, r: r, log: log}
}

// ArchiveURL resolves the template for the pinned version.
func (in *Installer) ArchiveURL() string {
	return strings.ReplaceAll(in.cfg.URLTemplate, "{version}", in.cfg.Version)
}

// Bin is the path the installed lz4 binary resolves to.
func (in *Installer) Bin() string {
	return filepath.Join(in.cfg.Prefix, "bin", "lz4")
}

// LibDir is where the installed shared libraries land.
func (in *Installer) LibDir() string {
	return filepath.Join(in.cfg.Prefix, "lib")
}

// Install downloads, extracts, builds, and installs lz4, removes the source
// tree and archive, refreshes the loader cache, and exports LD_LIBRARY_PATH
// for the remainder of the process. Build or install failure is fatal and
// leaves the tree in place; only the cleanup after a successful install is
// allowed to fail softly.
func (in *Installer) Install(ctx context.Context) error {
	url := in.ArchiveURL()
	archive := filepath.Join(in.cfg.WorkDir, fmt.Sprintf("lz4-%s.tar.gz", in.cfg.Version))
	in.log.Infof("downloading %s", url)
	if n, err := common.DownloadToFile(ctx, url, archive); err != nil {
		return common.Errorf(common.KindDownload, "get %s: %v", url, err)
	} else {
		in.log.Infof("downloaded %s (%d bytes)", archive, n)
	}

	srcDir, err := in.extract(archive)
	if err != nil {
		return common.Errorf(common.KindBuild, "extract %s: %v", archive, err)
	}

	in.log.Infof("building lz4 %s in %s", in.cfg.Version, srcDir)
	if err := in.r.Run(ctx, common.MakeBin, "-C", srcDir, "install", "PREFIX="+in.cfg.Prefix); err != nil {
		return common.Errorf(common.KindBuild, "make install: %v", err)
	}

	in.cleanup(archive, srcDir)

	if err := in.r.Run(ctx, common.LdconfigBin); err != nil {
		return common.Errorf(common.KindBuild, "%s: %v", common.LdconfigBin, err)
	}
	return os.Setenv("LD_LIBRARY_PATH", prependPath(os.Getenv("LD_LIBRARY_PATH"), in.LibDir()))
}

// Verify runs the installed binary's version query and requires the pinned
// version in its output. This is the one explicit postcondition check: a
// stale lz4 earlier on the search path would otherwise shadow the fresh
// build silently.
func (in *Installer) Verify(ctx context.Context) error {
	out, err := in.r.Output(ctx, in.Bin(), "--version")
	if err != nil {
		return common.Errorf(common.KindVersionVerification, "%s --version: %v", in.Bin(), err)
	}
	if !strings.Contains(out, in.cfg.Version) {
		return common.Errorf(common.KindVersionVerification,
			"want lz4 %s, binary reports %q", in.cfg.Version, strings.TrimSpace(out))
	}
	in.log.Infof("verified lz4 %s at %s", in.cfg.Version, in.Bin())
	return nil
}

// extract unpacks the tar.gz under WorkDir and returns the archive's
// top-level directory. Entries that would escape WorkDir are rejected.
func (in *Installer) extract(archive string) (string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return "", err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	var root string
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return "", err
		}
		name := filepath.Clean(hdr.Name)
		if name == "." {
			continue
		}
		if filepath.IsAbs(name) || strings.HasPrefix(name, "..") {
			return "", fmt.Errorf("archive entry escapes work dir: %q", hdr.Name)
		}
		if root == "" {
			root, _, _ = strings.Cut(name, string(filepath.Separator))
		}
		dest := filepath.Join(in.cfg.WorkDir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return "", err
			}
			out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fs.FileMode(hdr.Mode)&0777)
			if err != nil {
				return "", err
			}
			_, err = io.Copy(out, tr)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return "", err
			}
		case tar.TypeSymlink:
			// same containment rule as regular entries, resolved against
			// the link's own directory
			target := filepath.Clean(filepath.Join(filepath.Dir(name), hdr.Linkname))
			if filepath.IsAbs(hdr.Linkname) || strings.HasPrefix(target, "..") {
				return "", fmt.Errorf("archive entry escapes work dir: %q -> %q", hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return "", err
			}
			os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return "", err
			}
		}
	}
	if root == "" {
		return "", errors.New("empty archive")
	}
	return filepath.Join(in.cfg.WorkDir, root), nil
}

// cleanup removes the source tree and archive after a successful install.
// Failures here don't fail the run, the install already landed.
func (in *Installer) cleanup(archive, srcDir string) {
	var merr *multierror.Error
	merr = multierror.Append(merr, os.RemoveAll(srcDir))
	merr = multierror.Append(merr, os.Remove(archive))
	if err := merr.ErrorOrNil(); err != nil {
		in.log.Warnf("cleanup after install: %v", err)
	}
}

func prependPath(existing, dir string) string {
	if existing == "" {
		return dir
	}
	return dir + ":" + existing
}
