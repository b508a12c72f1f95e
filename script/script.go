// Package script renders the standalone demo script. The resolved prefix and
// block size are embedded as literals so the generated script has no runtime
// dependency on this process or its configuration.
package script

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"
)

type Params struct {
	Prefix      string // install prefix the lz4 binary lives under
	BlockSize   int    // filesystem block size, echoed for the logs only
	WorkDir     string // fixed work directory under the mount point
	TestFileMiB int    // size of the zero-filled test file
}

var demoTemplate = template.Must(template.New("demo").Parse(`#!/bin/bash
# lz4 compression demo. Takes the target device as its only argument and can
# be re-run against a different device without reprovisioning.
set -u

LZ4_BIN="{{.Prefix}}/bin/lz4"
BLOCK_SIZE={{.BlockSize}}
WORK_DIR="{{.WorkDir}}"
TEST_FILE="$WORK_DIR/testfile"

if [ $# -ne 1 ]; then
    echo "usage: $0 <device>" >&2
    exit 1
fi
DEVICE="$1"

echo "lz4 demo: device=$DEVICE block_size=$BLOCK_SIZE"
mkdir -p "$WORK_DIR" || exit 1
dd if=/dev/zero of="$TEST_FILE" bs=1M count={{.TestFileMiB}} || exit 1
"$LZ4_BIN" -f "$TEST_FILE" "$TEST_FILE.lz4" || { echo "compression failed" >&2; exit 1; }
echo "compressed $TEST_FILE -> $TEST_FILE.lz4"
`))

// Generate writes the rendered script to path, independently executable.
func Generate(path string, p Params) error {
	var buf bytes.Buffer
	if err := demoTemplate.Execute(&buf, p); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0755)
}
