package fileinfo

import (
	"iter"
	"os"

	"github.com/go-git/go-billy/v5"
)

// Walk yields every regular file reachable from root by recursive descent.
// Symlinks and entries that cannot be read are skipped. The sequence is lazy
// and carries no ordering guarantee.
func Walk(fs billy.Filesystem, root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		walkDir(fs, root, yield)
	}
}

func walkDir(fs billy.Filesystem, dir string, yield func(string) bool) bool {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return true
	}

	for _, entry := range entries {
		path := fs.Join(dir, entry.Name())
		mode := entry.Mode()

		switch {
		case mode&os.ModeSymlink != 0:
			continue
		case entry.IsDir():
			if !walkDir(fs, path, yield) {
				return false
			}
		case mode.IsRegular():
			if !yield(path) {
				return false
			}
		}
	}
	return true
}
