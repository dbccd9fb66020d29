// Package reconcile decides, for a local and a remote fingerprint, whether a
// file needs to be pushed, pulled or left alone.
package reconcile

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/skywriter/internal/fileinfo"
)

// Action is the transfer direction chosen for one file.
type Action int

const (
	NoOp Action = iota
	Push
	Pull
)

func (a Action) String() string {
	switch a {
	case NoOp:
		return "NoOp"
	case Push:
		return "Push"
	case Pull:
		return "Pull"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// TieBreak picks the winner when both sides changed within the same second.
type TieBreak string

const (
	LocalWins  TieBreak = "local"
	RemoteWins TieBreak = "remote"
)

func (t TieBreak) Validate() error {
	switch t {
	case LocalWins, RemoteWins:
		return nil
	}
	return fmt.Errorf("invalid tie break %q", t)
}

// Outcome is a decision bound to the concrete paths it applies to.
type Outcome struct {
	Action     Action
	LocalPath  string
	RemotePath string
	Local      fileinfo.FileInfo
	Remote     fileinfo.FileInfo
}

func (o Outcome) String() string {
	switch o.Action {
	case Push:
		return fmt.Sprintf("Push(%s -> %s)", o.LocalPath, o.RemotePath)
	case Pull:
		return fmt.Sprintf("Pull(%s -> %s)", o.RemotePath, o.LocalPath)
	}
	return "NoOp"
}

// Decider applies the decision table with a configured tie break.
type Decider struct {
	TieBreak TieBreak
}

// Decide compares two fingerprints. Digest equality short circuits the
// timestamp comparison; timestamps only order differing content.
func (d Decider) Decide(local, remote fileinfo.FileInfo) Action {
	switch {
	case !local.Exists && !remote.Exists:
		return NoOp
	case local.Exists && !remote.Exists:
		return Push
	case !local.Exists && remote.Exists:
		return Pull
	case local.Digest == remote.Digest:
		return NoOp
	case local.Seconds < remote.Seconds:
		return Pull
	case local.Seconds > remote.Seconds:
		return Push
	}

	if d.TieBreak == RemoteWins {
		return Pull
	}
	return Push
}

// Decide uses the default local-wins tie break.
func Decide(local, remote fileinfo.FileInfo) Action {
	return Decider{TieBreak: LocalWins}.Decide(local, remote)
}

// File decides a single file mapping.
func (d Decider) File(localPath, remotePath string, local, remote fileinfo.FileInfo) Outcome {
	return Outcome{
		Action:     d.Decide(local, remote),
		LocalPath:  localPath,
		RemotePath: remotePath,
		Local:      local,
		Remote:     remote,
	}
}

// Directory decides every path of a directory mapping in a single pass over
// the union of both sets. Both sets must already be rebased to their roots.
// keep may be nil; when set, identities it rejects are left out.
func (d Decider) Directory(localRoot, remoteRoot string, local, remote []fileinfo.FileInfo, keep func(string) bool) []Outcome {
	localByPath := index(local)
	remoteByPath := index(remote)

	all := mapset.NewThreadUnsafeSet[string]()
	for p := range localByPath {
		all.Add(p)
	}
	for p := range remoteByPath {
		all.Add(p)
	}

	identities := all.ToSlice()
	sort.Strings(identities)

	outcomes := make([]Outcome, 0, len(identities))
	for _, id := range identities {
		if keep != nil && !keep(id) {
			continue
		}

		l, ok := localByPath[id]
		if !ok {
			l = fileinfo.Absent(id)
		}
		r, ok := remoteByPath[id]
		if !ok {
			r = fileinfo.Absent(id)
		}

		outcomes = append(outcomes, Outcome{
			Action:     d.Decide(l, r),
			LocalPath:  filepath.Join(localRoot, filepath.FromSlash(id)),
			RemotePath: path.Join(remoteRoot, id),
			Local:      l,
			Remote:     r,
		})
	}
	return outcomes
}

func index(files []fileinfo.FileInfo) map[string]fileinfo.FileInfo {
	m := make(map[string]fileinfo.FileInfo, len(files))
	for _, fi := range files {
		if fi.Path == "" {
			continue
		}
		m[fi.Path] = fi
	}
	return m
}
