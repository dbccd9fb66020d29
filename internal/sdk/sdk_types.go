package sdk

import (
	"github.com/openmined/skywriter/internal/fileinfo"
)

const (
	HeaderUserAgent   = "User-Agent"
	HeaderVersion     = "X-Skywriter-Version"
	HeaderDevice      = "X-Skywriter-Device"
	HeaderDigest      = "X-Skywriter-Digest"
	HeaderSeconds     = "X-Skywriter-Seconds"
	MultipartFieldKey = "file"
)

type DirInfoResponse struct {
	Files   []fileinfo.FileInfo `json:"files"`
	Skipped []string            `json:"skipped,omitempty"`
}

// Download describes the bytes a content fetch delivered.
type Download struct {
	Identity string
	Digest   string
	Seconds  int64
	Size     int64
}
