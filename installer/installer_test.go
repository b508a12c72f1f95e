package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lzprep/lzprep/common"
)

const versionBanner = "*** LZ4 command line interface 64-bits v%s, by Yann Collet ***\n"

type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	fail    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.fail[filepath.Base(name)]
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if err := f.fail[filepath.Base(name)]; err != nil {
		return "", err
	}
	return f.outputs[filepath.Base(name)], nil
}

// makeTarGz builds a tar.gz in memory. Keys ending in / become directories,
// values starting with -> become symlinks to the rest of the value.
func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.HasSuffix(name, "/") {
			require.NoError(t, tw.WriteHeader(&tar.Header{
				Name: name, Typeflag: tar.TypeDir, Mode: 0755,
			}))
			continue
		}
		body := files[name]
		if link, ok := strings.CutPrefix(body, "->"); ok {
			require.NoError(t, tw.WriteHeader(&tar.Header{
				Name: name, Typeflag: tar.TypeSymlink, Linkname: link, Mode: 0777,
			}))
			continue
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(body)),
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func serveArchive(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestInstaller(t *testing.T, fr *fakeRunner, url string) *Installer {
	t.Helper()
	return New(Config{
		Version:     "1.9.4",
		URLTemplate: url + "/lz4-{version}.tar.gz",
		Prefix:      filepath.Join(t.TempDir(), "prefix"),
		WorkDir:     t.TempDir(),
	}, fr, zaptest.NewLogger(t).Sugar())
}

func TestExtract(t *testing.T) {
	in := newTestInstaller(t, &fakeRunner{}, "http://unused")
	archive := filepath.Join(t.TempDir(), "lz4.tar.gz")
	require.NoError(t, os.WriteFile(archive, makeTarGz(t, map[string]string{
		"lz4-1.9.4/":             "",
		"lz4-1.9.4/Makefile":     "all:\n",
		"lz4-1.9.4/lib/lz4.c":    "int x;\n",
		"lz4-1.9.4/lib/Makefile": "lib:\n",
	}), 0644))

	srcDir, err := in.extract(archive)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(in.cfg.WorkDir, "lz4-1.9.4"), srcDir)
	data, err := os.ReadFile(filepath.Join(srcDir, "lib", "lz4.c"))
	require.NoError(t, err)
	require.Equal(t, "int x;\n", string(data))
}

func TestExtractRejectsEscape(t *testing.T) {
	in := newTestInstaller(t, &fakeRunner{}, "http://unused")
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	require.NoError(t, os.WriteFile(archive, makeTarGz(t, map[string]string{
		"../evil": "boo",
	}), 0644))
	_, err := in.extract(archive)
	require.ErrorContains(t, err, "escapes work dir")
}

func TestExtractSymlink(t *testing.T) {
	in := newTestInstaller(t, &fakeRunner{}, "http://unused")
	archive := filepath.Join(t.TempDir(), "lz4.tar.gz")
	require.NoError(t, os.WriteFile(archive, makeTarGz(t, map[string]string{
		"lz4-1.9.4/lib/liblz4.so.1.9.4": "elf bytes\n",
		"lz4-1.9.4/lib/liblz4.so":       "->liblz4.so.1.9.4",
	}), 0644))

	srcDir, err := in.extract(archive)
	require.NoError(t, err)
	link, err := os.Readlink(filepath.Join(srcDir, "lib", "liblz4.so"))
	require.NoError(t, err)
	require.Equal(t, "liblz4.so.1.9.4", link)
}

func TestExtractRejectsSymlinkEscape(t *testing.T) {
	in := newTestInstaller(t, &fakeRunner{}, "http://unused")

	for name, tarball := range map[string]map[string]string{
		"relative": {"lz4-1.9.4/evil": "->../../../etc/passwd"},
		"absolute": {"lz4-1.9.4/evil": "->/etc/passwd"},
	} {
		t.Run(name, func(t *testing.T) {
			archive := filepath.Join(t.TempDir(), "evil.tar.gz")
			require.NoError(t, os.WriteFile(archive, makeTarGz(t, tarball), 0644))
			_, err := in.extract(archive)
			require.ErrorContains(t, err, "escapes work dir")
		})
	}
}

func TestInstallDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	in := newTestInstaller(t, &fakeRunner{}, srv.URL)
	err := in.Install(context.Background())
	require.Error(t, err)
	require.Equal(t, common.KindDownload, common.KindOf(err))
}

func TestInstallSuccess(t *testing.T) {
	t.Setenv("LD_LIBRARY_PATH", "")
	srv := serveArchive(t, makeTarGz(t, map[string]string{
		"lz4-1.9.4/":         "",
		"lz4-1.9.4/Makefile": "install:\n",
	}))
	fr := &fakeRunner{}
	in := newTestInstaller(t, fr, srv.URL)

	require.NoError(t, in.Install(context.Background()))

	srcDir := filepath.Join(in.cfg.WorkDir, "lz4-1.9.4")
	require.Contains(t, fr.calls, []string{"make", "-C", srcDir, "install", "PREFIX=" + in.cfg.Prefix})
	require.Contains(t, fr.calls, []string{"ldconfig"})
	// source tree and archive are cleaned up after install
	require.NoDirExists(t, srcDir)
	require.NoFileExists(t, filepath.Join(in.cfg.WorkDir, "lz4-1.9.4.tar.gz"))
	require.Equal(t, in.LibDir(), os.Getenv("LD_LIBRARY_PATH"))
}

func TestVerifyOK(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{
		"lz4": fmt.Sprintf(versionBanner, "1.9.4"),
	}}
	in := newTestInstaller(t, fr, "http://unused")
	require.NoError(t, in.Verify(context.Background()))
	require.Equal(t, [][]string{{in.Bin(), "--version"}}, fr.calls)
}

func TestVerifyMismatch(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{
		"lz4": fmt.Sprintf(versionBanner, "1.9.3"),
	}}
	in := newTestInstaller(t, fr, "http://unused")
	err := in.Verify(context.Background())
	require.Error(t, err)
	require.Equal(t, common.KindVersionVerification, common.KindOf(err))
}

func TestVerifyBinaryMissing(t *testing.T) {
	fr := &fakeRunner{fail: map[string]error{"lz4": os.ErrNotExist}}
	in := newTestInstaller(t, fr, "http://unused")
	err := in.Verify(context.Background())
	require.Error(t, err)
	require.Equal(t, common.KindVersionVerification, common.KindOf(err))
}
