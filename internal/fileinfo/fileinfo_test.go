package fileinfo

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFromPath_Missing(t *testing.T) {
	fp := New(osfs.New("/"), ProbeStrict)
	missing := filepath.Join(t.TempDir(), "nope.txt")

	fi, err := fp.FromPath(missing)
	require.NoError(t, err)
	assert.Equal(t, FileInfo{Path: missing, Seconds: 0, Digest: "", Exists: false}, fi)
}

func TestFromPath_RegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "hello world")

	mtime := time.Unix(1700000000, 900_000_000)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	fi, err := New(osfs.New("/"), ProbeStrict).FromPath(path)
	require.NoError(t, err)
	assert.True(t, fi.Exists)
	assert.Equal(t, path, fi.Path)
	assert.Equal(t, int64(1700000000), fi.Seconds)
	assert.Equal(t, sha256Hex([]byte("hello world")), fi.Digest)
}

func TestFromPath_Directory(t *testing.T) {
	dir := t.TempDir()

	_, err := New(osfs.New("/"), ProbeStrict).FromPath(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAFile))

	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, KindNotAFile, pathErr.Kind)
}

func TestFromPath_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	writeFile(t, path, "")

	fi, err := New(osfs.New("/"), ProbeStrict).FromPath(path)
	require.NoError(t, err)
	assert.True(t, fi.Exists)
	assert.Equal(t, sha256Hex(nil), fi.Digest)
}

func TestDigest_IndependentOfChunking(t *testing.T) {
	content := []byte(strings.Repeat("0123456789abcdef", 10_000) + "tail")
	want := sha256Hex(content)

	got, err := Digest(strings.NewReader(string(content)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, want, DigestBytes(content))
}

func TestDigest_NonUTF8(t *testing.T) {
	content := []byte{0xff, 0xfe, 0x00, 0x80, 0xc3, 0x28}
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/bin.dat", content, 0o644))

	fi, err := New(fs, ProbeStrict).FromPath("/bin.dat")
	require.NoError(t, err)
	assert.Equal(t, sha256Hex(content), fi.Digest)
}

func TestFromDirectory_RelativePaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "b")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	listing, err := New(osfs.New("/"), ProbeStrict).FromDirectory(root)
	require.NoError(t, err)
	assert.Empty(t, listing.Skipped)

	files := RebaseAll(listing.Files, root)
	paths := make([]string, 0, len(files))
	for _, fi := range files {
		paths = append(paths, fi.Path)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, paths)
}

func TestFromDirectory_Missing(t *testing.T) {
	listing, err := New(osfs.New("/"), ProbeStrict).FromDirectory(filepath.Join(t.TempDir(), "later"))
	require.NoError(t, err)
	assert.NotNil(t, listing.Files)
	assert.Empty(t, listing.Files)
	assert.Empty(t, listing.Skipped)
}

func TestFromDirectory_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, path, "x")

	_, err := New(osfs.New("/"), ProbeStrict).FromDirectory(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotADirectory)
}

func TestFromDirectory_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(t.TempDir(), "target.txt")
	writeFile(t, target, "outside")
	writeFile(t, filepath.Join(root, "real.txt"), "inside")
	if err := os.Symlink(target, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	listing, err := New(osfs.New("/"), ProbeStrict).FromDirectory(root)
	require.NoError(t, err)
	files := RebaseAll(listing.Files, root)
	require.Len(t, files, 1)
	assert.Equal(t, "real.txt", files[0].Path)
}

func TestFromDirectory_MemFS(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/store/docs/a.md", []byte("a"), 0o644))
	require.NoError(t, util.WriteFile(fs, "/store/docs/deep/er/b.md", []byte("b"), 0o644))

	listing, err := New(fs, ProbeStrict).FromDirectory("/store/docs")
	require.NoError(t, err)
	listing = listing.Rebase("/store/docs")

	byPath := make(map[string]FileInfo)
	for _, fi := range listing.Files {
		byPath[fi.Path] = fi
	}
	require.Len(t, byPath, 2)
	assert.Equal(t, sha256Hex([]byte("a")), byPath["a.md"].Digest)
	assert.Equal(t, sha256Hex([]byte("b")), byPath["deep/er/b.md"].Digest)
}

func TestFromPath_NoCaching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.txt")
	writeFile(t, path, "v1")
	fp := New(osfs.New("/"), ProbeStrict)

	first, err := fp.FromPath(path)
	require.NoError(t, err)

	writeFile(t, path, "v2")
	second, err := fp.FromPath(path)
	require.NoError(t, err)

	assert.NotEqual(t, first.Digest, second.Digest)
	assert.Equal(t, sha256Hex([]byte("v2")), second.Digest)
}

func TestRebase(t *testing.T) {
	cases := []struct {
		name string
		root string
		path string
		want string
		err  bool
	}{
		{name: "nested", root: "/data/root", path: "/data/root/sub/b.txt", want: "sub/b.txt"},
		{name: "trailing slash root", root: "/data/root/", path: "/data/root/a.txt", want: "a.txt"},
		{name: "root itself", root: "/data/root", path: "/data/root", want: ""},
		{name: "outside", root: "/data/root", path: "/data/other/a.txt", err: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fi := FileInfo{Path: filepath.FromSlash(tc.path), Exists: true}
			err := fi.Rebase(filepath.FromSlash(tc.root))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, fi.Path)
		})
	}
}

func TestFromWire(t *testing.T) {
	fi := FromWire("/docs/a.txt", 42, "abcdef", true)
	assert.Equal(t, FileInfo{Path: "docs/a.txt", Seconds: 42, Digest: "ABCDEF", Exists: true}, fi)

	absent := FromWire("docs/a.txt", 42, "abcdef", false)
	assert.False(t, absent.Exists)
	assert.Zero(t, absent.Seconds)
	assert.Empty(t, absent.Digest)
}

func TestNormIdentity(t *testing.T) {
	assert.Equal(t, "a/b.txt", NormIdentity("/a/b.txt"))
	assert.Equal(t, "a/b.txt", NormIdentity(`a\b.txt`))
	assert.Equal(t, "b.txt", NormIdentity("a/../b.txt"))
	assert.Equal(t, "", NormIdentity("/"))
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, int64(0), Seconds(time.Time{}))
	assert.Equal(t, int64(0), Seconds(time.Unix(-100, 0)))
	assert.Equal(t, int64(12), Seconds(time.Unix(12, 999_999_999)))
}

func TestProbePolicy_Validate(t *testing.T) {
	assert.NoError(t, ProbeStrict.Validate())
	assert.NoError(t, ProbeBestEffort.Validate())
	assert.Error(t, ProbePolicy("lenient").Validate())
}
