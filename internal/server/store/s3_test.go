package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/openmined/skywriter/internal/fileinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObject struct {
	data     []byte
	meta     map[string]string
	modified time.Time
}

// memS3 is an in-memory bucket covering the calls the store and the upload
// manager make for single part uploads.
type memS3 struct {
	mu      sync.Mutex
	objects map[string]memObject
	gets    int
	headErr map[string]error
}

func newMemS3() *memS3 {
	return &memS3{objects: make(map[string]memObject)}
}

func (m *memS3) put(key, body string, meta map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: []byte(body), meta: meta, modified: time.Unix(1_700_000_000, 0)}
}

func (m *memS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = memObject{data: data, meta: in.Metadata, modified: time.Now()}
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.headErr[aws.ToString(in.Key)]; err != nil {
		return nil, err
	}
	obj, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		LastModified:  aws.Time(obj.modified),
		Metadata:      obj.meta,
	}, nil
}

func (m *memS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	obj, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
		LastModified:  aws.Time(obj.modified),
		Metadata:      obj.meta,
	}, nil
}

func (m *memS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if max := aws.ToInt32(in.MaxKeys); max > 0 && len(keys) > int(max) {
		keys = keys[:max]
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(m.objects[k].data))),
			LastModified: aws.Time(m.objects[k].modified),
		})
	}
	return out, nil
}

var errMultipart = errors.New("multipart not supported by memS3")

func (m *memS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errMultipart
}

func (m *memS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (m *memS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (m *memS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errMultipart
}

func newTestS3Store(prefix string) (*S3Store, *memS3) {
	mem := newMemS3()
	return NewS3Store(mem, &S3Config{Bucket: "bucket", Region: "us-east-1", Prefix: prefix}), mem
}

func TestS3Store_PutAndFileInfo(t *testing.T) {
	s, mem := newTestS3Store("sync")
	ctx := context.Background()

	fi, err := s.Put(ctx, "docs/a.txt", strings.NewReader("alpha"))
	require.NoError(t, err)
	assert.True(t, fi.Exists)
	assert.Equal(t, "docs/a.txt", fi.Path)
	assert.Equal(t, fileinfo.DigestBytes([]byte("alpha")), fi.Digest)

	obj, ok := mem.objects["sync/docs/a.txt"]
	require.True(t, ok)
	assert.Equal(t, fi.Digest, obj.meta[digestMetaKey])

	// digest comes from metadata, the payload is not read
	before := mem.gets
	again, err := s.FileInfo(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, fi.Digest, again.Digest)
	assert.Equal(t, before, mem.gets)
}

func TestS3Store_FileInfo_NoMetadata(t *testing.T) {
	s, mem := newTestS3Store("")
	mem.put("foreign.bin", "written elsewhere", nil)

	fi, err := s.FileInfo(context.Background(), "foreign.bin")
	require.NoError(t, err)
	assert.Equal(t, fileinfo.DigestBytes([]byte("written elsewhere")), fi.Digest)
	assert.Equal(t, int64(1_700_000_000), fi.Seconds)
}

func TestS3Store_FileInfo_MissingAndDirectory(t *testing.T) {
	s, mem := newTestS3Store("")
	mem.put("dir/child.txt", "c", nil)
	ctx := context.Background()

	fi, err := s.FileInfo(ctx, "ghost.txt")
	require.NoError(t, err)
	assert.False(t, fi.Exists)

	_, err = s.FileInfo(ctx, "dir")
	assert.ErrorIs(t, err, fileinfo.ErrNotAFile)
}

func TestS3Store_DirInfo(t *testing.T) {
	s, mem := newTestS3Store("p")
	mem.put("p/docs/a.txt", "a", nil)
	mem.put("p/docs/sub/b.txt", "b", map[string]string{digestMetaKey: strings.ToLower(fileinfo.DigestBytes([]byte("b")))})
	mem.put("p/docs/sub/", "", nil)
	mem.put("p/docs/x"+fileinfo.TempMarker+"9", "partial", nil)
	mem.put("p/docsfoo/not-mine.txt", "n", nil)
	mem.put("p/top.txt", "t", nil)
	ctx := context.Background()

	listing, err := s.DirInfo(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, listing.Skipped)

	got := map[string]string{}
	for _, f := range listing.Files {
		got[f.Path] = f.Digest
	}
	assert.Equal(t, map[string]string{
		"a.txt":     fileinfo.DigestBytes([]byte("a")),
		"sub/b.txt": fileinfo.DigestBytes([]byte("b")),
	}, got)

	all, err := s.DirInfo(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all.Files, 4)

	empty, err := s.DirInfo(ctx, "nothing")
	require.NoError(t, err)
	assert.NotNil(t, empty.Files)
	assert.Empty(t, empty.Files)

	_, err = s.DirInfo(ctx, "top.txt")
	assert.ErrorIs(t, err, fileinfo.ErrNotADirectory)
}

func TestS3Store_DirInfo_ReportsUnprobedObjects(t *testing.T) {
	s, mem := newTestS3Store("")
	mem.put("docs/ok.txt", "ok", nil)
	mem.put("docs/sub/flaky.txt", "flaky", nil)
	mem.headErr = map[string]error{"docs/sub/flaky.txt": errors.New("throttled")}

	listing, err := s.DirInfo(context.Background(), "docs")
	require.NoError(t, err)

	require.Len(t, listing.Files, 1)
	assert.Equal(t, "ok.txt", listing.Files[0].Path)
	assert.Equal(t, []string{"sub/flaky.txt"}, listing.Skipped)
}

func TestS3Store_Open(t *testing.T) {
	s, _ := newTestS3Store("")
	ctx := context.Background()

	_, err := s.Put(ctx, "raw.bin", strings.NewReader("\x00\x01\x02"))
	require.NoError(t, err)

	obj, err := s.Open(ctx, "raw.bin")
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, data)
	assert.Equal(t, int64(3), obj.Size)

	_, err = s.Open(ctx, "missing.bin")
	assert.ErrorIs(t, err, fileinfo.ErrNotFound)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.False(t, isNotFound(errors.New("boom")))
}
