package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openmined/skywriter/internal/fileinfo"
	"github.com/openmined/skywriter/internal/sdk"
	"github.com/openmined/skywriter/internal/utils"
)

// ErrIntegrity is returned when pulled bytes do not hash to the digest the
// remote advertised. The local file is left untouched.
var ErrIntegrity = errors.New("sync: pulled content does not match remote digest")

// Remote is the part of the remote store a pass talks to.
type Remote interface {
	FileInfo(ctx context.Context, identity string) (fileinfo.FileInfo, error)
	DirInfo(ctx context.Context, identity string) (fileinfo.Listing, error)
	Download(ctx context.Context, identity string, w io.Writer) (*sdk.Download, error)
	Upload(ctx context.Context, identity, localPath string) (fileinfo.FileInfo, error)
}

// Push sends the whole local file to identity and returns the bytes sent.
func Push(ctx context.Context, remote Remote, localPath, identity string) (int64, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, fmt.Errorf("push %s: %w", localPath, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("push %s: %w", localPath, &fileinfo.PathError{Kind: fileinfo.KindNotAFile, Path: localPath})
	}

	if _, err := remote.Upload(ctx, identity, localPath); err != nil {
		return 0, fmt.Errorf("push %s: %w", localPath, err)
	}
	return info.Size(), nil
}

// Pull streams identity into a temp file next to localPath, checks it against
// digest and renames it into place. Parent directories are created. An empty
// digest falls back to the one the server sends with the content.
func Pull(ctx context.Context, remote Remote, identity, localPath, digest string) (n int64, err error) {
	dir := filepath.Dir(localPath)
	if err := utils.EnsureDir(dir); err != nil {
		return 0, fmt.Errorf("pull %s: %w", identity, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(localPath)+fileinfo.TempMarker+"*")
	if err != nil {
		return 0, fmt.Errorf("pull %s: %w", identity, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	dl, err := remote.Download(ctx, identity, tmp)
	if err != nil {
		return 0, fmt.Errorf("pull %s: %w", identity, err)
	}

	if _, err = tmp.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("pull %s: %w", identity, err)
	}
	got, err := fileinfo.Digest(tmp)
	if err != nil {
		return 0, fmt.Errorf("pull %s: %w", identity, err)
	}

	want := fileinfo.NormalizeDigest(digest)
	if want == "" {
		want = dl.Digest
	}
	if want != "" && got != want {
		err = fmt.Errorf("pull %s: %w: want %s, got %s", identity, ErrIntegrity, want, got)
		return 0, err
	}

	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("pull %s: %w", identity, err)
	}
	if err = os.Rename(tmpPath, localPath); err != nil {
		return 0, fmt.Errorf("pull %s: %w", identity, err)
	}

	// the pulled copy is new content on this side
	now := time.Now()
	if chErr := os.Chtimes(localPath, now, now); chErr != nil {
		slog.Warn("pull set mtime", "path", localPath, "error", chErr)
	}
	return dl.Size, nil
}
