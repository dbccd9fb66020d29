package fileinfo

import (
	"errors"
	"fmt"
)

// PathErrorKind classifies a probing failure on a path.
type PathErrorKind string

const (
	KindNotAFile      PathErrorKind = "not a file"
	KindNotADirectory PathErrorKind = "not a directory"
	KindNotFound      PathErrorKind = "not found"
	KindUnreadable    PathErrorKind = "cannot enumerate"
)

var (
	ErrNotAFile      = errors.New("fileinfo: not a file")
	ErrNotADirectory = errors.New("fileinfo: not a directory")
	ErrNotFound      = errors.New("fileinfo: not found")
	ErrUnreadable    = errors.New("fileinfo: cannot enumerate")
)

// PathError is returned when a path cannot be fingerprinted as requested.
type PathError struct {
	Kind PathErrorKind
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %q: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %q", e.Kind, e.Path)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Is lets callers match a PathError against the Err* sentinels by kind.
func (e *PathError) Is(target error) bool {
	switch target {
	case ErrNotAFile:
		return e.Kind == KindNotAFile
	case ErrNotADirectory:
		return e.Kind == KindNotADirectory
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUnreadable:
		return e.Kind == KindUnreadable
	}
	return false
}

// ProbeError wraps a failure to hash or stat a regular file under the strict policy.
type ProbeError struct {
	Path string
	Op   string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}
