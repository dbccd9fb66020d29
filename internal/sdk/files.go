package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strconv"
	"strings"

	"github.com/openmined/skywriter/internal/fileinfo"
	"github.com/openmined/skywriter/internal/utils"
)

const (
	v1InfoFile = "/api/v1/info/file/"
	v1InfoDir  = "/api/v1/info/dir/"
	v1File     = "/api/v1/file/"

	maxErrorBody = 64 * 1024
)

// FileInfo fetches the remote fingerprint of one identity. A missing file is
// reported as Exists == false, not as an error.
func (c *Client) FileInfo(ctx context.Context, identity string) (fileinfo.FileInfo, error) {
	var info fileinfo.FileInfo

	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&info).
		Get(v1InfoFile + escapeIdentity(identity))

	if err := handleAPIError(resp, err, "file info "+identity); err != nil {
		return fileinfo.FileInfo{}, err
	}

	return fileinfo.FromWire(info.Path, info.Seconds, info.Digest, info.Exists), nil
}

// DirInfo fetches the fingerprints of every file under identity, with paths
// relative to it. A missing directory yields an empty set. Files the server
// could not fingerprint come back in Skipped.
func (c *Client) DirInfo(ctx context.Context, identity string) (fileinfo.Listing, error) {
	var result DirInfoResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&result).
		Get(v1InfoDir + escapeIdentity(identity))

	if err := handleAPIError(resp, err, "dir info "+identity); err != nil {
		return fileinfo.Listing{}, err
	}

	listing := fileinfo.Listing{Files: make([]fileinfo.FileInfo, 0, len(result.Files))}
	for _, f := range result.Files {
		listing.Files = append(listing.Files, fileinfo.FromWire(f.Path, f.Seconds, f.Digest, f.Exists))
	}
	for _, p := range result.Skipped {
		listing.Skipped = append(listing.Skipped, fileinfo.NormIdentity(p))
	}
	return listing, nil
}

// Download streams the raw bytes of identity into w. Content is never
// decoded.
func (c *Client) Download(ctx context.Context, identity string, w io.Writer) (*Download, error) {
	op := "download " + identity

	resp, err := c.client.R().
		SetContext(ctx).
		DisableAutoReadResponse().
		Get(v1File + escapeIdentity(identity))
	if err != nil {
		return nil, fmt.Errorf("sdk: %s: %w: %w", op, ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.IsErrorState() {
		apiErr := NewAPIError(resp.GetStatusCode(), CodeUnknownError, resp.Status)
		if body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); readErr == nil {
			_ = jsonUnmarshal(body, apiErr)
		}
		apiErr.Status = resp.GetStatusCode()
		return nil, wrapAPIError(op, apiErr)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sdk: %s: %w: %w", op, ErrTransport, err)
	}

	seconds, _ := strconv.ParseInt(resp.Header.Get(HeaderSeconds), 10, 64)
	return &Download{
		Identity: identity,
		Digest:   fileinfo.NormalizeDigest(resp.Header.Get(HeaderDigest)),
		Seconds:  seconds,
		Size:     n,
	}, nil
}

// Upload sends the whole file at localPath as identity. The server creates
// missing parent directories and answers with the stored fingerprint.
func (c *Client) Upload(ctx context.Context, identity, localPath string) (fileinfo.FileInfo, error) {
	if !utils.FileExists(localPath) {
		return fileinfo.FileInfo{}, fmt.Errorf("sdk: upload %s: %w: %s", identity, ErrLocalFileState, localPath)
	}

	var info fileinfo.FileInfo

	resp, err := c.client.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetFile(MultipartFieldKey, localPath).
		SetSuccessResult(&info).
		Put(v1File + escapeIdentity(identity))

	if err := handleAPIError(resp, err, "upload "+identity); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileinfo.FileInfo{}, fmt.Errorf("sdk: upload %s: %w: %w", identity, ErrLocalFileState, err)
		}
		return fileinfo.FileInfo{}, err
	}

	return fileinfo.FromWire(info.Path, info.Seconds, info.Digest, info.Exists), nil
}

func escapeIdentity(identity string) string {
	id := fileinfo.NormIdentity(identity)
	if id == "" {
		return ""
	}
	segments := strings.Split(id, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
