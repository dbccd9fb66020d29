package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/openmined/skywriter/internal/fileinfo"
	"golang.org/x/sync/errgroup"
)

const (
	digestMetaKey  = "sha256"
	headWorkers    = 8
	spoolDirPrefix = "skywriter-s3-"
)

// S3API is the subset of the S3 client the store needs.
type S3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps files as objects in one bucket. The content digest travels
// as object metadata so fingerprinting does not read the payload.
type S3Store struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

func NewS3Store(client S3API, cfg *S3Config) *S3Store {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   prefix,
	}
}

func NewS3StoreWithConfig(ctx context.Context, cfg *S3Config) (*S3Store, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	slog.Info("s3 store", "bucket", cfg.Bucket, "region", cfg.Region, "endpoint", cfg.Endpoint, "prefix", cfg.Prefix)
	return NewS3Store(client, cfg), nil
}

func (s *S3Store) FileInfo(ctx context.Context, identity string) (fileinfo.FileInfo, error) {
	if identity == "" {
		return fileinfo.FileInfo{}, &fileinfo.PathError{Kind: fileinfo.KindNotAFile, Path: identity}
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(identity)),
	})
	if err != nil {
		if !isNotFound(err) {
			return fileinfo.FileInfo{}, storageError("head", identity, err)
		}
		isDir, err := s.hasChildren(ctx, identity)
		if err != nil {
			return fileinfo.FileInfo{}, err
		}
		if isDir {
			return fileinfo.FileInfo{}, &fileinfo.PathError{Kind: fileinfo.KindNotAFile, Path: identity}
		}
		return fileinfo.Absent(identity), nil
	}

	digest, err := s.digestOf(ctx, identity, head.Metadata)
	if err != nil {
		return fileinfo.FileInfo{}, err
	}

	return fileinfo.FileInfo{
		Path:    identity,
		Seconds: fileinfo.Seconds(aws.ToTime(head.LastModified)),
		Digest:  digest,
		Exists:  true,
	}, nil
}

func (s *S3Store) DirInfo(ctx context.Context, identity string) (fileinfo.Listing, error) {
	dirPrefix := s.prefix
	if identity != "" {
		dirPrefix = s.key(identity) + "/"
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(dirPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fileinfo.Listing{}, storageError("list", identity, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || fileinfo.IsTemp(key) {
				continue
			}
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 && identity != "" {
		fi, err := s.FileInfo(ctx, identity)
		if err == nil && fi.Exists {
			return fileinfo.Listing{}, &fileinfo.PathError{Kind: fileinfo.KindNotADirectory, Path: identity}
		}
		return fileinfo.Listing{Files: []fileinfo.FileInfo{}}, nil
	}

	var mu sync.Mutex
	listing := fileinfo.Listing{Files: make([]fileinfo.FileInfo, 0, len(keys))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(headWorkers)
	for _, key := range keys {
		g.Go(func() error {
			id := strings.TrimPrefix(key, s.prefix)
			rel := strings.TrimPrefix(key, dirPrefix)
			fi, err := s.FileInfo(gctx, id)
			if err != nil {
				slog.Warn("s3 fingerprint skipped", "key", key, "error", err)
				mu.Lock()
				listing.Skipped = append(listing.Skipped, rel)
				mu.Unlock()
				return nil
			}
			if !fi.Exists {
				return nil
			}
			fi.Path = rel
			mu.Lock()
			listing.Files = append(listing.Files, fi)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fileinfo.Listing{}, err
	}
	if err := ctx.Err(); err != nil {
		return fileinfo.Listing{}, err
	}
	return listing, nil
}

func (s *S3Store) Open(ctx context.Context, identity string) (*Object, error) {
	fi, err := s.FileInfo(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !fi.Exists {
		return nil, &fileinfo.PathError{Kind: fileinfo.KindNotFound, Path: identity}
	}

	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(identity)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &fileinfo.PathError{Kind: fileinfo.KindNotFound, Path: identity}
		}
		return nil, storageError("get", identity, err)
	}

	size := aws.ToInt64(obj.ContentLength)
	if obj.ContentLength == nil {
		size = -1
	}
	return &Object{Info: fi, Size: size, Body: obj.Body}, nil
}

// Put spools the body to a local temp file so the digest is known before the
// object is written.
func (s *S3Store) Put(ctx context.Context, identity string, body io.Reader) (fileinfo.FileInfo, error) {
	if identity == "" {
		return fileinfo.FileInfo{}, ErrInvalidIdentity
	}

	spool, err := os.CreateTemp("", spoolDirPrefix+"*")
	if err != nil {
		return fileinfo.FileInfo{}, storageError("spool", identity, err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	digest, err := fileinfo.Digest(io.TeeReader(body, spool))
	if err != nil {
		return fileinfo.FileInfo{}, storageError("spool", identity, err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fileinfo.FileInfo{}, storageError("spool", identity, err)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(identity)),
		Body:        spool,
		ContentType: aws.String("application/octet-stream"),
		Metadata:    map[string]string{digestMetaKey: digest},
	})
	if err != nil {
		return fileinfo.FileInfo{}, storageError("upload", identity, err)
	}

	fi, err := s.FileInfo(ctx, identity)
	if err != nil {
		return fileinfo.FileInfo{}, err
	}
	return fi, nil
}

func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) key(identity string) string {
	if identity == "" {
		return strings.TrimSuffix(s.prefix, "/")
	}
	return s.prefix + identity
}

func (s *S3Store) hasChildren(ctx context.Context, identity string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.key(identity) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, storageError("list", identity, err)
	}
	return len(out.Contents) > 0, nil
}

// digestOf prefers the stored metadata and falls back to hashing objects
// written by other tools.
func (s *S3Store) digestOf(ctx context.Context, identity string, meta map[string]string) (string, error) {
	if d := meta[digestMetaKey]; d != "" {
		return fileinfo.NormalizeDigest(d), nil
	}

	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(identity)),
	})
	if err != nil {
		return "", storageError("get", identity, err)
	}
	defer obj.Body.Close()

	d, err := fileinfo.Digest(obj.Body)
	if err != nil {
		return "", storageError("read", identity, err)
	}
	return d, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

var _ Store = (*S3Store)(nil)
var _ Store = (*FSStore)(nil)
