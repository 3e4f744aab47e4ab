package muxs3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/vitalvas/relay/mux"
)

// ErrNoBucket is returned by New when the bucket name is empty.
var ErrNoBucket = errors.New("muxs3: bucket must not be empty")

// ErrNoClient is returned by New when the client is nil.
var ErrNoClient = errors.New("muxs3: client must not be nil")

// API is the subset of *s3.Client used by FileSystem.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// FileSystem serves objects of one bucket as a mux.FileSystem. File names
// map to object keys below Prefix. S3 has no directories, so IsDir is never
// set and index resolution falls through to "<dir>/index.html".
type FileSystem struct {
	client API
	bucket string
	prefix string
}

var _ mux.FileSystem = (*FileSystem)(nil)

// New returns a FileSystem for bucket. prefix is prepended to every key,
// e.g. "site/" serves "site/index.html" for "index.html".
func New(client API, bucket, prefix string) (*FileSystem, error) {
	if client == nil {
		return nil, ErrNoClient
	}

	if bucket == "" {
		return nil, ErrNoBucket
	}

	return &FileSystem{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// key maps a file name to its object key. Dot segments cannot climb above
// the prefix.
func (f *FileSystem) key(name string) (string, error) {
	n := path.Clean("/" + name)[1:]
	if n == "" {
		return "", &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	if f.prefix == "" {
		return n, nil
	}

	return f.prefix + "/" + n, nil
}

// Stat issues a HeadObject request for name.
func (f *FileSystem) Stat(ctx context.Context, name string) (mux.FileInfo, error) {
	key, err := f.key(name)
	if err != nil {
		return mux.FileInfo{}, err
	}

	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mux.FileInfo{}, f.wrap("stat", name, err)
	}

	info := mux.FileInfo{
		Name: path.Base(key),
		Size: aws.ToInt64(out.ContentLength),
	}

	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}

	return info, nil
}

// Open streams the whole object.
func (f *FileSystem) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return f.get(ctx, name, nil)
}

// OpenRange streams the inclusive byte range [start, end] of the object
// using an HTTP Range request (RFC 7233).
func (f *FileSystem) OpenRange(ctx context.Context, name string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("muxs3: invalid range %d-%d", start, end)
	}

	return f.get(ctx, name, aws.String(fmt.Sprintf("bytes=%d-%d", start, end)))
}

func (f *FileSystem) get(ctx context.Context, name string, byteRange *string) (io.ReadCloser, error) {
	key, err := f.key(name)
	if err != nil {
		return nil, err
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
		Range:  byteRange,
	})
	if err != nil {
		return nil, f.wrap("open", name, err)
	}

	return out.Body, nil
}

// wrap converts missing-object errors into errors matching fs.ErrNotExist.
func (f *FileSystem) wrap(op, name string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		}
	}

	return fmt.Errorf("muxs3: %s s3://%s/%s: %w", op, f.bucket, name, err)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	// Region is the bucket region, e.g. "us-east-1".
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible storage such as
	// MinIO.
	Endpoint string

	// UsePathStyle addresses buckets as "<endpoint>/<bucket>" instead of
	// "<bucket>.<endpoint>".
	UsePathStyle bool

	// Credentials signs requests. Defaults to the AWS_ACCESS_KEY_ID,
	// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN environment variables,
	// or anonymous access when they are unset.
	Credentials aws.CredentialsProvider
}

// NewClient returns an S3 client built from opts.
func NewClient(opts ClientOptions) *s3.Client {
	creds := opts.Credentials
	if creds == nil {
		creds = envCredentials()
	}

	return s3.New(s3.Options{
		Region:       opts.Region,
		BaseEndpoint: nonEmpty(opts.Endpoint),
		UsePathStyle: opts.UsePathStyle,
		Credentials:  creds,
	})
}

func envCredentials() aws.CredentialsProvider {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if id == "" || secret == "" {
		return aws.AnonymousCredentials{}
	}

	value := aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "Environment",
	}

	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return value, nil
	})
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
