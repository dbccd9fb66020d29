package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/skywriter/internal/reconcile"
)

// Stage names where a failure happened.
type Stage string

const (
	StagePlan Stage = "plan"
	StagePush Stage = "push"
	StagePull Stage = "pull"
)

// Failure is one mapping or transfer that did not complete.
type Failure struct {
	Stage      Stage
	LocalPath  string
	RemotePath string
	Err        error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s %s <-> %s: %v", f.Stage, f.LocalPath, f.RemotePath, f.Err)
}

// PassReport is the outcome of one pass.
type PassReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Pushed    int
	Pulled    int
	Unchanged int
	Skipped   int
	Bytes     int64
	Outcomes  []reconcile.Outcome
	Failures  []Failure
}

func (r *PassReport) Failed() int {
	return len(r.Failures)
}

func (r *PassReport) OK() bool {
	return len(r.Failures) == 0
}

// Action returns the decision taken for a remote identity, if any.
func (r *PassReport) Action(remotePath string) (reconcile.Action, bool) {
	for _, o := range r.Outcomes {
		if o.RemotePath == remotePath {
			return o.Action, true
		}
	}
	return reconcile.NoOp, false
}

func (r *PassReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pushed %d, pulled %d, unchanged %d", r.Pushed, r.Pulled, r.Unchanged)
	if r.Skipped > 0 {
		fmt.Fprintf(&sb, ", skipped %d", r.Skipped)
	}
	if r.Failed() > 0 {
		fmt.Fprintf(&sb, ", failed %d", r.Failed())
	}
	fmt.Fprintf(&sb, " (%s in %s)", humanize.Bytes(uint64(r.Bytes)), r.Duration.Round(time.Millisecond))
	return sb.String()
}
