// Package blockdev enumerates block devices and selects the one backing a
// given mount point.
package blockdev

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"golang.org/x/sys/unix"

	"github.com/lzprep/lzprep/common"
)

type Device struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Size       int64    `json:"size"`
	Type       string   `json:"type"`
	MountPoint string   `json:"mountpoint"`
	FSType     string   `json:"fstype"`
	UUID       string   `json:"uuid"`
	Children   []Device `json:"children,omitempty"`
}

type lsblkOutput struct {
	BlockDevices []Device `json:"blockdevices"`
}

// List queries lsblk for the live device table and flattens partitions into
// the result alongside their parent disks.
func List(ctx context.Context, r common.Runner) ([]Device, error) {
	out, err := r.Output(ctx, common.LsblkBin,
		"--json", "--bytes", "-o", "NAME,PATH,SIZE,TYPE,MOUNTPOINT,FSTYPE,UUID")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.LsblkBin, err)
	}
	var parsed lsblkOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("parse %s output: %w", common.LsblkBin, err)
	}
	return flatten(parsed.BlockDevices), nil
}

func flatten(devs []Device) []Device {
	var out []Device
	for _, d := range devs {
		children := d.Children
		d.Children = nil
		out = append(out, d)
		out = append(out, flatten(children)...)
	}
	return out
}

// Inventory renders a human-readable device table. Observability only, no
// decision logic.
func Inventory(devs []Device) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 2, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPATH\tSIZE\tTYPE\tMOUNTPOINT\tFSTYPE\tUUID")
	for _, d := range devs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			d.Name, d.Path, d.Size, d.Type, d.MountPoint, d.FSType, d.UUID)
	}
	tw.Flush()
	return b.String()
}

// SelectByMountPoint returns the single device mounted at mount. Zero
// matches is fatal. More than one is also fatal: picking an arbitrary winner
// would hide a misconfigured host.
func SelectByMountPoint(devs []Device, mount string) (Device, error) {
	var matches []Device
	for _, d := range devs {
		if d.MountPoint == mount {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return Device{}, common.Errorf(common.KindDeviceNotFound, "no block device mounted at %s", mount)
	case 1:
		return matches[0], nil
	default:
		paths := make([]string, len(matches))
		for i, m := range matches {
			paths[i] = m.Path
		}
		return Device{}, common.Errorf(common.KindAmbiguousDevice,
			"%d block devices mounted at %s: %s", len(matches), mount, strings.Join(paths, ", "))
	}
}

// CheckNode verifies path names a block special file.
func CheckNode(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFBLK {
		return fmt.Errorf("%s is not a block device", path)
	}
	return nil
}
