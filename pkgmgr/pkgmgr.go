// Package pkgmgr installs the build dependencies through the detected
// package manager.
package pkgmgr

import (
	"context"
	"strings"

	"github.com/lzprep/lzprep/common"
	"github.com/lzprep/lzprep/probe"
)

// Compiler toolchain plus wget. The tool downloads over HTTP in-process, but
// wget stays in the set for poking at the box by hand afterwards.
var packages = map[probe.PkgManager][]string{
	probe.Apt: {"build-essential", "wget"},
	probe.Yum: {"gcc", "make", "wget"},
}

// Install runs the manager's update and install subcommands for the fixed
// package set. Any non-zero exit is fatal; there is no rollback.
func Install(ctx context.Context, r common.Runner, mgr probe.PkgManager) error {
	var cmds [][]string
	switch mgr {
	case probe.Apt:
		cmds = [][]string{
			{common.AptGetBin, "update"},
			append([]string{common.AptGetBin, "install", "-y"}, packages[mgr]...),
		}
	case probe.Yum:
		cmds = [][]string{
			{common.YumBin, "update", "-y"},
			append([]string{common.YumBin, "install", "-y"}, packages[mgr]...),
		}
	default:
		return common.Errorf(common.KindUnsupportedPlatform, "unknown package manager %q", mgr)
	}
	for _, argv := range cmds {
		if err := r.Run(ctx, argv[0], argv[1:]...); err != nil {
			return common.Errorf(common.KindDependencyInstall, "%s: %v", strings.Join(argv, " "), err)
		}
	}
	return nil
}
