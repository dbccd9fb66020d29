package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/openmined/skywriter/internal/fileinfo"
	"github.com/openmined/skywriter/internal/utils"
)

// FSStore keeps files on a local directory tree.
type FSStore struct {
	fs billy.Filesystem
	fp *fileinfo.Fingerprinter
}

// NewFSStore roots a store at dir, creating it when missing. Paths are bound
// to dir, symlinks pointing outside of it are not followed.
func NewFSStore(dir string) (*FSStore, error) {
	root, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(root); err != nil {
		return nil, storageError("init", root, err)
	}

	slog.Info("fs store", "root", root)
	return NewFSStoreOn(osfs.New(root, osfs.WithBoundOS())), nil
}

// NewFSStoreOn wraps an existing filesystem.
func NewFSStoreOn(fs billy.Filesystem) *FSStore {
	fp := fileinfo.New(fs, fileinfo.ProbeStrict)
	fp.OnSkip = func(p string, err error) {
		slog.Warn("store fingerprint skipped", "path", p, "error", err)
	}
	return &FSStore{fs: fs, fp: fp}
}

func (s *FSStore) FileInfo(ctx context.Context, identity string) (fileinfo.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return fileinfo.FileInfo{}, err
	}

	fi, err := s.fp.FromPath(fsPath(identity))
	if err != nil {
		return fileinfo.FileInfo{}, err
	}
	return fi.WithPath(identity), nil
}

func (s *FSStore) DirInfo(ctx context.Context, identity string) (fileinfo.Listing, error) {
	if err := ctx.Err(); err != nil {
		return fileinfo.Listing{}, err
	}

	root := fsPath(identity)
	listing, err := s.fp.FromDirectory(root)
	if err != nil {
		return fileinfo.Listing{}, err
	}

	kept := listing.Files[:0]
	for _, f := range listing.Files {
		if !fileinfo.IsTemp(f.Path) {
			kept = append(kept, f)
		}
	}
	listing.Files = kept
	return listing.Rebase(root), nil
}

func (s *FSStore) Open(ctx context.Context, identity string) (*Object, error) {
	fi, err := s.FileInfo(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !fi.Exists {
		return nil, &fileinfo.PathError{Kind: fileinfo.KindNotFound, Path: identity}
	}

	p := fsPath(identity)
	stat, err := s.fs.Stat(p)
	if err != nil {
		return nil, storageError("stat", identity, err)
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, storageError("open", identity, err)
	}

	return &Object{Info: fi, Size: stat.Size(), Body: f}, nil
}

func (s *FSStore) Put(ctx context.Context, identity string, body io.Reader) (fileinfo.FileInfo, error) {
	if identity == "" {
		return fileinfo.FileInfo{}, ErrInvalidIdentity
	}
	if err := ctx.Err(); err != nil {
		return fileinfo.FileInfo{}, err
	}

	dir := path.Dir(identity)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fileinfo.FileInfo{}, storageError("mkdir", identity, err)
	}

	tmp, err := util.TempFile(s.fs, dir, path.Base(identity)+fileinfo.TempMarker)
	if err != nil {
		return fileinfo.FileInfo{}, storageError("create", identity, err)
	}
	tmpName := tmp.Name()

	digest, err := fileinfo.Digest(io.TeeReader(body, tmp))
	closeErr := tmp.Close()
	if err = errors.Join(err, closeErr); err != nil {
		_ = s.fs.Remove(tmpName)
		return fileinfo.FileInfo{}, storageError("write", identity, err)
	}

	if err := s.fs.Rename(tmpName, identity); err != nil {
		_ = s.fs.Remove(tmpName)
		return fileinfo.FileInfo{}, storageError("rename", identity, err)
	}

	stat, err := s.fs.Stat(identity)
	if err != nil {
		return fileinfo.FileInfo{}, storageError("stat", identity, err)
	}

	return fileinfo.FileInfo{
		Path:    identity,
		Seconds: fileinfo.Seconds(stat.ModTime()),
		Digest:  digest,
		Exists:  true,
	}, nil
}

func (s *FSStore) Close() error {
	return nil
}

func fsPath(identity string) string {
	if identity == "" {
		return "."
	}
	return identity
}
