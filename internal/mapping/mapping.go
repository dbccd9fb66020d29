// Package mapping holds the configured correspondence between local paths and
// remote identities.
package mapping

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/skywriter/internal/fileinfo"
	"github.com/openmined/skywriter/internal/utils"
)

type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

var (
	ErrEmptyLocal     = errors.New("mapping: local path is empty")
	ErrInvalidRemote  = errors.New("mapping: invalid remote identity")
	ErrDuplicateLocal = errors.New("mapping: duplicate local path")
)

// Mapping pairs one local path with one remote identity.
type Mapping struct {
	Kind    Kind
	Local   string
	Remote  string
	Include []string
}

func (m Mapping) String() string {
	return fmt.Sprintf("%s %s <-> %s", m.Kind, m.Local, m.Remote)
}

// Includes reports whether a root relative identity is selected by the
// mapping's include globs. No globs selects everything.
func (m Mapping) Includes(identity string) bool {
	if len(m.Include) == 0 {
		return true
	}
	for _, pattern := range m.Include {
		if ok, _ := doublestar.Match(pattern, identity); ok {
			return true
		}
	}
	return false
}

// Entry is the raw form a mapping takes in configuration files.
type Entry struct {
	Local   string   `mapstructure:"local" yaml:"local" json:"local"`
	Remote  string   `mapstructure:"remote" yaml:"remote" json:"remote"`
	Include []string `mapstructure:"include" yaml:"include,omitempty" json:"include,omitempty"`
}

// Table is the immutable set of mappings for one run.
type Table struct {
	files       []Mapping
	directories []Mapping
}

// NewTable validates and normalizes the configured entries.
func NewTable(files, directories []Entry) (*Table, error) {
	t := &Table{}
	seen := make(map[string]struct{})

	add := func(kind Kind, e Entry) (Mapping, error) {
		m, err := newMapping(kind, e)
		if err != nil {
			return Mapping{}, err
		}
		if _, ok := seen[m.Local]; ok {
			return Mapping{}, fmt.Errorf("%w: %s", ErrDuplicateLocal, m.Local)
		}
		seen[m.Local] = struct{}{}
		return m, nil
	}

	for _, e := range files {
		m, err := add(KindFile, e)
		if err != nil {
			return nil, err
		}
		t.files = append(t.files, m)
	}

	for _, e := range directories {
		m, err := add(KindDirectory, e)
		if err != nil {
			return nil, err
		}
		t.directories = append(t.directories, m)
	}

	return t, nil
}

func newMapping(kind Kind, e Entry) (Mapping, error) {
	if strings.TrimSpace(e.Local) == "" {
		return Mapping{}, ErrEmptyLocal
	}

	local, err := utils.ResolvePath(e.Local)
	if err != nil {
		return Mapping{}, fmt.Errorf("mapping: resolve %q: %w", e.Local, err)
	}

	remote, err := CleanIdentity(e.Remote)
	if err != nil {
		return Mapping{}, err
	}
	if kind == KindFile && remote == "" {
		return Mapping{}, fmt.Errorf("%w: file mapping %q needs a remote name", ErrInvalidRemote, e.Local)
	}

	for _, pattern := range e.Include {
		if !doublestar.ValidatePattern(pattern) {
			return Mapping{}, fmt.Errorf("mapping: invalid include pattern %q", pattern)
		}
	}
	if kind == KindFile && len(e.Include) > 0 {
		return Mapping{}, fmt.Errorf("mapping: include patterns only apply to directories (%s)", e.Local)
	}

	return Mapping{
		Kind:    kind,
		Local:   filepath.Clean(local),
		Remote:  remote,
		Include: e.Include,
	}, nil
}

// CleanIdentity normalizes a remote identity and rejects ones that would
// escape the remote store root.
func CleanIdentity(identity string) (string, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(identity), "\\", "/")
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidRemote, identity)
		}
	}
	return fileinfo.NormIdentity(raw), nil
}

func (t *Table) Files() []Mapping {
	return t.files
}

func (t *Table) Directories() []Mapping {
	return t.directories
}

// All returns file mappings followed by directory mappings.
func (t *Table) All() []Mapping {
	all := make([]Mapping, 0, len(t.files)+len(t.directories))
	all = append(all, t.files...)
	all = append(all, t.directories...)
	return all
}

func (t *Table) Len() int {
	return len(t.files) + len(t.directories)
}
