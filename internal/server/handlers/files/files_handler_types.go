package files

import "github.com/openmined/skywriter/internal/fileinfo"

const (
	HeaderDigest  = "X-Skywriter-Digest"
	HeaderSeconds = "X-Skywriter-Seconds"
	FormFileKey   = "file"
)

// DirInfoResponse lists the fingerprints under a directory. Skipped names the
// files that exist but could not be fingerprinted.
type DirInfoResponse struct {
	Files   []fileinfo.FileInfo `json:"files"`
	Skipped []string            `json:"skipped,omitempty"`
}
