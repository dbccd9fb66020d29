package mapping

import (
	"bufio"
	"log/slog"
	"os"

	gitignore "github.com/sabhiram/go-gitignore"
)

// TempPattern matches the partial files written while a pull is in flight.
const TempPattern = "*.skywriter.tmp.*"

var defaultIgnoreLines = []string{
	TempPattern,
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	// editors
	"*.swp",
	"*~",
}

// IgnoreList filters identities out of directory mappings using gitignore rules.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
	lines  []string
}

// NewIgnoreList compiles the default rules plus any extra lines.
func NewIgnoreList(extra ...string) *IgnoreList {
	lines := make([]string, 0, len(defaultIgnoreLines)+len(extra))
	lines = append(lines, defaultIgnoreLines...)
	for _, line := range extra {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return &IgnoreList{
		ignore: gitignore.CompileIgnoreLines(lines...),
		lines:  lines,
	}
}

// LoadIgnoreFile reads gitignore style rules from path on top of extra.
// A missing file is not an error.
func LoadIgnoreFile(path string, extra ...string) *IgnoreList {
	lines := append([]string{}, extra...)

	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("ignore file open", "path", path, "error", err)
		}
		return NewIgnoreList(lines...)
	}
	defer file.Close()

	rules := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
			rules++
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("ignore file read", "path", path, "error", err)
	} else {
		slog.Debug("ignore file loaded", "path", path, "rules", rules)
	}

	return NewIgnoreList(lines...)
}

func (l *IgnoreList) ShouldIgnore(identity string) bool {
	if l == nil || l.ignore == nil {
		return false
	}
	return l.ignore.MatchesPath(identity)
}

func (l *IgnoreList) Lines() []string {
	return l.lines
}
