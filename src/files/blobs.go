package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"git.handmade.network/hmn/forumwiki/src/config"
	"git.handmade.network/hmn/forumwiki/src/oops"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

/*
BlobStore holds uploaded file bytes under their content hash. The same name
always means the same bytes, so writing an existing name again is harmless.

Open fails with KindFileNotFound when nothing is stored under the name.
*/
type BlobStore interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, content []byte, mime string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Picks the blob store named by the config.
func NewBlobStore(ctx context.Context, cfg config.FilesConfig) (BlobStore, error) {
	switch cfg.Backend {
	case config.FilesOnDisk:
		return &LocalBlobStore{Dir: cfg.Dir}, nil
	case config.FilesInS3:
		return NewS3BlobStore(ctx, cfg)
	default:
		return nil, oops.New(nil, "unknown files backend '%s'", cfg.Backend)
	}
}

// A flat directory of files named by content hash.
type LocalBlobStore struct {
	Dir string
}

var _ BlobStore = &LocalBlobStore{}

func (s *LocalBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, oops.New(err, "failed to stat stored file")
	}
	return true, nil
}

// Writes to a temporary file first so readers never see a partial file.
func (s *LocalBlobStore) Put(ctx context.Context, name string, content []byte, mime string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return oops.New(err, "failed to create files directory")
	}

	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return oops.New(err, "failed to create temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return oops.New(err, "failed to write file")
	}
	if err := tmp.Close(); err != nil {
		return oops.New(err, "failed to close file")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return oops.New(err, "failed to move file into place")
	}
	return nil
}

func (s *LocalBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Fail(oops.KindFileNotFound)
	} else if err != nil {
		return nil, oops.New(err, "failed to open stored file")
	}
	return f, nil
}

// Stores files in an S3-compatible bucket, keyed by content hash.
type S3BlobStore struct {
	client *s3.Client
	bucket string
}

var _ BlobStore = &S3BlobStore{}

func NewS3BlobStore(ctx context.Context, cfg config.FilesConfig) (*S3BlobStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, ""),
		),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithEndpointResolver(aws.EndpointResolverFunc(func(service, region string) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL: cfg.S3Endpoint,
			}, nil
		})),
	)
	if err != nil {
		return nil, oops.New(err, "failed to load S3 config")
	}

	return &S3BlobStore{
		client: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = true
		}),
		bucket: cfg.S3Bucket,
	}, nil
}

func isAPIError(err error, codes ...string) bool {
	var apiError smithy.APIError
	if !errors.As(err, &apiError) {
		return false
	}
	for _, code := range codes {
		if apiError.ErrorCode() == code {
			return true
		}
	}
	return false
}

func (s *S3BlobStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &name,
	})
	if isAPIError(err, "NotFound", "NoSuchKey", "NoSuchBucket") {
		return false, nil
	} else if err != nil {
		return false, oops.New(err, "failed to check for stored file")
	}
	return true, nil
}

// Creates the bucket on first use.
func (s *S3BlobStore) Put(ctx context.Context, name string, content []byte, mime string) error {
	upload := func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &s.bucket,
			Key:         &name,
			Body:        bytes.NewReader(content),
			ContentType: &mime,
		})
		return err
	}

	err := upload()
	if isAPIError(err, "NoSuchBucket") {
		_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: &s.bucket,
		})
		if err != nil {
			return oops.New(err, "failed to create files bucket")
		}
		err = upload()
		if err != nil {
			return oops.New(err, "failed to upload file")
		}
	} else if err != nil {
		return oops.New(err, "failed to upload file")
	}
	return nil
}

func (s *S3BlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	res, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &name,
	})
	if isAPIError(err, "NoSuchKey", "NoSuchBucket", "NotFound") {
		return nil, oops.Fail(oops.KindFileNotFound)
	} else if err != nil {
		return nil, oops.New(err, "failed to download file")
	}
	return res.Body, nil
}
