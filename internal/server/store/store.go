// Package store is the remote side's file storage. Identities are slash
// separated paths relative to the store root.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openmined/skywriter/internal/fileinfo"
)

var (
	ErrInvalidIdentity = errors.New("store: invalid identity")
	ErrStorage         = errors.New("store: storage failure")
)

// Object is an open handle on stored content. Callers must close Body.
type Object struct {
	Info fileinfo.FileInfo
	Size int64
	Body io.ReadCloser
}

type Store interface {
	// FileInfo fingerprints one file. A missing file is Exists == false; a
	// directory is a fileinfo.ErrNotAFile.
	FileInfo(ctx context.Context, identity string) (fileinfo.FileInfo, error)

	// DirInfo fingerprints every file under identity with paths relative to
	// it. A missing directory is an empty set; a file is a
	// fileinfo.ErrNotADirectory. Files that exist but cannot be fingerprinted
	// are listed in Skipped.
	DirInfo(ctx context.Context, identity string) (fileinfo.Listing, error)

	// Open returns the raw bytes of one file along with its fingerprint.
	Open(ctx context.Context, identity string) (*Object, error)

	// Put stores the whole content under identity, creating whatever
	// parents are needed, and returns the stored fingerprint.
	Put(ctx context.Context, identity string, body io.Reader) (fileinfo.FileInfo, error)

	Close() error
}

// New builds the backend selected by config.
func New(ctx context.Context, config *Config) (Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Backend {
	case BackendS3:
		return NewS3StoreWithConfig(ctx, &config.S3)
	default:
		return NewFSStore(config.Root)
	}
}

// CleanIdentity normalizes an identity received from a client. An identity
// that tries to climb out of the root is rejected rather than clamped.
func CleanIdentity(raw string) (string, error) {
	raw = strings.ReplaceAll(raw, "\\", "/")
	if strings.ContainsRune(raw, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, raw)
	}
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, raw)
		}
	}
	return fileinfo.NormIdentity(raw), nil
}

func storageError(op, identity string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrStorage, op, identity, err)
}
