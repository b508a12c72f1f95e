// Package provision sequences the full run: probe, install dependencies,
// build and verify lz4, generate the demo script, persist environment files,
// select the target device, and run the demo. Strictly sequential; the first
// failure aborts the whole run. Re-running repeats every step from the top,
// including the source rebuild.
package provision

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lzprep/lzprep/blockdev"
	"github.com/lzprep/lzprep/common"
	"github.com/lzprep/lzprep/envfile"
	"github.com/lzprep/lzprep/installer"
	"github.com/lzprep/lzprep/lz4check"
	"github.com/lzprep/lzprep/pkgmgr"
	"github.com/lzprep/lzprep/probe"
	"github.com/lzprep/lzprep/script"
)

const testFileMiB = 100

type Provisioner struct {
	cfg Config
	r   common.Runner
	log *zap.SugaredLogger

	// test seams
	geteuid  func() int
	lookPath func(string) (string, error)
}

func New(cfg Config, r common.Runner, log *zap.SugaredLogger) *Provisioner {
	return &Provisioner{
		cfg:      cfg,
		r:        r,
		log:      log,
		geteuid:  os.Geteuid,
		lookPath: exec.LookPath,
	}
}

// Run drives the whole provisioning sequence.
func (p *Provisioner) Run(ctx context.Context) error {
	if uid := p.geteuid(); uid != 0 {
		return common.Errorf(common.KindNotRoot, "must run as root (euid %d)", uid)
	}

	plat, err := probe.Detect(p.cfg.OSReleasePath, p.lookPath)
	if err != nil {
		return err
	}
	p.log.Infof("detected %s, package manager %s", plat.OSName, plat.PkgManager)

	p.log.Infof("installing build dependencies via %s", plat.PkgManager)
	if err := pkgmgr.Install(ctx, p.r, plat.PkgManager); err != nil {
		return err
	}

	in := installer.New(installer.Config{
		Version:     p.cfg.LZ4Version,
		URLTemplate: p.cfg.URLTemplate,
		Prefix:      p.cfg.Prefix,
		WorkDir:     p.cfg.ScratchDir,
	}, p.r, p.log)
	if err := in.Install(ctx); err != nil {
		return err
	}
	if err := in.Verify(ctx); err != nil {
		return err
	}

	if err := script.Generate(p.cfg.ScriptPath, script.Params{
		Prefix:      p.cfg.Prefix,
		BlockSize:   p.cfg.BlockSize,
		WorkDir:     p.cfg.WorkDir(),
		TestFileMiB: testFileMiB,
	}); err != nil {
		return fmt.Errorf("generate %s: %w", p.cfg.ScriptPath, err)
	}
	p.log.Infof("wrote demo script %s", p.cfg.ScriptPath)

	if err := envfile.Apply(envfile.Config{
		DropInDir:  p.cfg.DropInDir,
		DropInName: p.cfg.DropInName,
		LegacyFile: p.cfg.LegacyFile,
	}, in.LibDir()); err != nil {
		return fmt.Errorf("update environment files: %w", err)
	}
	p.log.Infof("recorded LD_LIBRARY_PATH=%s in %s and %s",
		in.LibDir(), filepath.Join(p.cfg.DropInDir, p.cfg.DropInName), p.cfg.LegacyFile)

	devs, err := blockdev.List(ctx, p.r)
	if err != nil {
		return err
	}
	p.log.Infof("block devices:\n%s", blockdev.Inventory(devs))
	dev, err := blockdev.SelectByMountPoint(devs, p.cfg.MountPoint)
	if err != nil {
		return err
	}
	if err := blockdev.CheckNode(dev.Path); err != nil {
		// selection came from the mount table; a missing node is worth a
		// warning but the demo runs against the mounted fs either way
		p.log.Warnf("%v", err)
	}
	p.log.Infof("selected %s (mounted at %s, %s)", dev.Path, dev.MountPoint, dev.FSType)

	if err := p.r.Run(ctx, p.cfg.ScriptPath, dev.Path); err != nil {
		return fmt.Errorf("demo script %s %s: %w", p.cfg.ScriptPath, dev.Path, err)
	}

	if p.cfg.VerifyFrame {
		out := filepath.Join(p.cfg.WorkDir(), "testfile.lz4")
		n, err := lz4check.Verify(out)
		if err != nil {
			return fmt.Errorf("verify frame: %w", err)
		}
		p.log.Infof("verified lz4 frame %s (%d bytes uncompressed)", out, n)
	}

	p.log.Infof("provisioning complete: lz4 %s, block size %d, device %s",
		p.cfg.LZ4Version, p.cfg.BlockSize, dev.Path)
	return nil
}
