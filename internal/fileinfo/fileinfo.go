// Package fileinfo fingerprints files and directory trees: what a path looks
// like right now, expressed as a content digest and a modification timestamp.
package fileinfo

import (
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// FileInfo is the fingerprint of a single path at probe time.
type FileInfo struct {
	Path    string `json:"path"`
	Seconds int64  `json:"seconds"`
	Digest  string `json:"digest"`
	Exists  bool   `json:"exists"`
}

// Absent returns the fingerprint of a path that does not exist.
func Absent(path string) FileInfo {
	return FileInfo{Path: path}
}

// FromWire builds a fingerprint from values received over the transport,
// restoring the absent-file invariant and the digest case.
func FromWire(path string, seconds int64, digest string, exists bool) FileInfo {
	if !exists {
		return Absent(path)
	}
	return FileInfo{
		Path:    NormIdentity(path),
		Seconds: seconds,
		Digest:  NormalizeDigest(digest),
		Exists:  true,
	}
}

// Rebase strips root from the fingerprint path and converts what remains into
// the slash separated identity used to match files across stores.
func (fi *FileInfo) Rebase(root string) error {
	rel, err := relativeTo(root, fi.Path)
	if err != nil {
		return err
	}
	fi.Path = rel
	return nil
}

// WithPath returns a copy of the fingerprint under a different identity.
func (fi FileInfo) WithPath(p string) FileInfo {
	fi.Path = p
	return fi
}

func (fi FileInfo) String() string {
	if !fi.Exists {
		return fi.Path + " (absent)"
	}
	return fi.Path + " " + fi.Digest
}

// Fingerprinter builds FileInfo values from a filesystem.
type Fingerprinter struct {
	fs     billy.Filesystem
	prober *Prober

	// OnSkip is called for every file dropped from a directory fingerprint.
	OnSkip func(path string, err error)
}

func New(fs billy.Filesystem, policy ProbePolicy) *Fingerprinter {
	return &Fingerprinter{
		fs:     fs,
		prober: NewProber(fs, policy),
		OnSkip: func(path string, err error) {
			slog.Warn("fingerprint skipped", "path", path, "error", err)
		},
	}
}

func (f *Fingerprinter) Filesystem() billy.Filesystem {
	return f.fs
}

// FromPath fingerprints a single file. A missing path is not an error.
func (f *Fingerprinter) FromPath(p string) (FileInfo, error) {
	info, err := f.fs.Stat(p)
	switch {
	case err == nil:
		if !info.Mode().IsRegular() {
			return FileInfo{}, &PathError{Kind: KindNotAFile, Path: p}
		}
	case errors.Is(err, os.ErrNotExist):
		return Absent(p), nil
	case f.prober.Policy() != ProbeBestEffort:
		return FileInfo{}, &ProbeError{Path: p, Op: "stat", Err: err}
	default:
		// best-effort: the path is there, fingerprint whatever the probe can read
	}

	digest, seconds, err := f.prober.Probe(p)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{
		Path:    p,
		Seconds: seconds,
		Digest:  digest,
		Exists:  true,
	}, nil
}

// Listing is the fingerprint of a directory tree. Skipped holds the paths
// that exist but could not be probed: they are neither present nor absent,
// and reconciliation must leave them alone.
type Listing struct {
	Files   []FileInfo `json:"files"`
	Skipped []string   `json:"skipped,omitempty"`
}

// Rebase rebases every file and skipped path against root, dropping any that
// do not live under it.
func (l Listing) Rebase(root string) Listing {
	out := Listing{Files: RebaseAll(l.Files, root)}
	for _, p := range l.Skipped {
		rel, err := relativeTo(root, p)
		if err != nil {
			slog.Warn("rebase", "path", p, "root", root, "error", err)
			continue
		}
		out.Skipped = append(out.Skipped, rel)
	}
	return out
}

// FromDirectory fingerprints every regular file under root. The returned
// paths are the full discovered paths; callers rebase them once.
func (f *Fingerprinter) FromDirectory(root string) (Listing, error) {
	info, err := f.fs.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Listing{Files: []FileInfo{}}, nil
		}
		return Listing{}, &PathError{Kind: KindUnreadable, Path: root, Err: err}
	}

	if !info.IsDir() {
		return Listing{}, &PathError{Kind: KindNotADirectory, Path: root}
	}

	// the root itself must be listable, otherwise the walk silently yields nothing
	if _, err := f.fs.ReadDir(root); err != nil {
		return Listing{}, &PathError{Kind: KindUnreadable, Path: root, Err: err}
	}

	listing := Listing{Files: make([]FileInfo, 0)}
	for p := range Walk(f.fs, root) {
		fi, err := f.FromPath(p)
		if err != nil {
			if f.OnSkip != nil {
				f.OnSkip(p, err)
			}
			listing.Skipped = append(listing.Skipped, p)
			continue
		}
		if !fi.Exists {
			// removed between listing and probing
			continue
		}
		listing.Files = append(listing.Files, fi)
	}
	return listing, nil
}

// RebaseAll rebases every fingerprint against root, dropping any that do not
// live under it.
func RebaseAll(files []FileInfo, root string) []FileInfo {
	out := make([]FileInfo, 0, len(files))
	for _, fi := range files {
		if err := fi.Rebase(root); err != nil {
			slog.Warn("rebase", "path", fi.Path, "root", root, "error", err)
			continue
		}
		out = append(out, fi)
	}
	return out
}

// TempMarker is embedded in the names of partial files written during a
// transfer. Such files are never fingerprinted as directory content.
const TempMarker = ".skywriter.tmp."

func IsTemp(p string) bool {
	return strings.Contains(path.Base(filepath.ToSlash(p)), TempMarker)
}

// NormIdentity converts a path to the slash separated, root relative form used
// as an identity.
func NormIdentity(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

func relativeTo(root, p string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", &PathError{Kind: KindNotFound, Path: p, Err: errors.New("outside of root " + root)}
	}
	if rel == "." {
		return "", nil
	}
	return NormIdentity(rel), nil
}
