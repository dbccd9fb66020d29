package fileinfo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
)

const probeChunkSize = 32 * 1024

// ProbePolicy decides what happens when a regular file cannot be hashed or stat'ed.
type ProbePolicy string

const (
	// ProbeStrict reports the failure as a *ProbeError and lets the caller skip the file.
	ProbeStrict ProbePolicy = "strict"
	// ProbeBestEffort collapses failures into an empty digest or a zero timestamp.
	ProbeBestEffort ProbePolicy = "best-effort"
)

func (p ProbePolicy) Validate() error {
	switch p {
	case ProbeStrict, ProbeBestEffort:
		return nil
	}
	return fmt.Errorf("invalid probe policy %q", p)
}

// Digest streams r through SHA-256 and returns the uppercase hex encoding.
func Digest(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, probeChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return NormalizeDigest(hex.EncodeToString(h.Sum(nil))), nil
}

// DigestBytes is Digest for an in-memory payload.
func DigestBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return NormalizeDigest(hex.EncodeToString(sum[:]))
}

// NormalizeDigest brings a hex digest to the case used on the wire.
func NormalizeDigest(d string) string {
	return strings.ToUpper(d)
}

// Seconds truncates a modification time to whole seconds since the epoch.
// Times before the epoch report 0.
func Seconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	s := t.Unix()
	if s < 0 {
		return 0
	}
	return s
}

// Prober computes digests and timestamps on a filesystem.
type Prober struct {
	fs     billy.Filesystem
	policy ProbePolicy
}

func NewProber(fs billy.Filesystem, policy ProbePolicy) *Prober {
	if policy == "" {
		policy = ProbeStrict
	}
	return &Prober{fs: fs, policy: policy}
}

func (p *Prober) Policy() ProbePolicy {
	return p.policy
}

// Probe returns the digest and modification seconds of the regular file at path.
func (p *Prober) Probe(path string) (digest string, seconds int64, err error) {
	seconds, err = p.modifiedSeconds(path)
	if err != nil {
		return "", 0, err
	}

	digest, err = p.digest(path)
	if err != nil {
		return "", 0, err
	}

	return digest, seconds, nil
}

func (p *Prober) digest(path string) (string, error) {
	f, err := p.fs.Open(path)
	if err != nil {
		if p.policy == ProbeBestEffort {
			return "", nil
		}
		return "", &ProbeError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	d, err := Digest(f)
	if err != nil {
		if p.policy == ProbeBestEffort {
			return "", nil
		}
		return "", &ProbeError{Path: path, Op: "read", Err: err}
	}
	return d, nil
}

func (p *Prober) modifiedSeconds(path string) (int64, error) {
	info, err := p.fs.Stat(path)
	if err != nil {
		if p.policy == ProbeBestEffort {
			return 0, nil
		}
		return 0, &ProbeError{Path: path, Op: "stat", Err: err}
	}
	return Seconds(info.ModTime()), nil
}
