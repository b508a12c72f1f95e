// Package lz4check validates LZ4 frame files produced by the demo.
package lz4check

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

// frame magic 0x184D2204, little-endian on disk
var frameMagic = []byte{0x04, 0x22, 0x4d, 0x18}

// Verify checks that path holds a well-formed LZ4 frame by checking the
// magic and decoding it to completion, and returns the uncompressed size.
func Verify(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return 0, fmt.Errorf("read magic of %s: %w", path, err)
	}
	if !bytes.Equal(magic[:], frameMagic) {
		return 0, fmt.Errorf("%s is not an lz4 frame (magic %x)", path, magic)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.Copy(io.Discard, lz4.NewReader(f))
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return n, nil
}
