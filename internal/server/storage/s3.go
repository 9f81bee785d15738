package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/logging"
	"github.com/dmitrijs2005/filehost/internal/server/metrics"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

// objectAPI is the subset of *s3.Client used by RemoteBackend.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// presignAPI is the subset of *s3.PresignClient used by RemoteBackend.
type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// RemoteConfig holds the settings of an S3-compatible endpoint.
type RemoteConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	UsePathStyle bool
}

var errMissingRemoteConfig = errors.New("remote storage endpoint, credentials and bucket are required")

func (c RemoteConfig) validate() error {
	if c.Endpoint == "" || c.AccessKey == "" || c.SecretKey == "" || c.Bucket == "" {
		return errMissingRemoteConfig
	}
	return nil
}

// newS3Clients builds the SDK clients for rc.
func newS3Clients(ctx context.Context, rc RemoteConfig) (objectAPI, presignAPI, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(rc.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(rc.AccessKey, rc.SecretKey, "")),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(rc.Endpoint)
		o.UsePathStyle = rc.UsePathStyle
	})

	return client, newS3PresignClient(client), nil
}

// buildS3Clients is a seam for newS3Clients.
var buildS3Clients = newS3Clients

// RemoteBackend keeps objects in an S3 bucket and serves them through
// presigned GET URLs.
type RemoteBackend struct {
	client  objectAPI
	presign presignAPI
	bucket  string
	logger  logging.Logger
	now     func() time.Time
}

// NewRemote validates rc and builds the SDK clients. It does not touch the
// network; see EnsureBucket.
func NewRemote(ctx context.Context, rc RemoteConfig, logger logging.Logger) (*RemoteBackend, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}
	client, presign, err := buildS3Clients(ctx, rc)
	if err != nil {
		return nil, err
	}
	return &RemoteBackend{
		client:  client,
		presign: presign,
		bucket:  rc.Bucket,
		logger:  logger.With("backend", string(ModeRemote), "bucket", rc.Bucket),
		now:     time.Now,
	}, nil
}

func (b *RemoteBackend) Mode() Mode { return ModeRemote }

// EnsureBucket creates the bucket unless it already exists.
func (b *RemoteBackend) EnsureBucket(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStorageOperation(string(ModeRemote), "ensure_bucket", time.Since(start), err == nil)
	}()

	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err == nil {
		return nil
	}

	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("bucket %s does not exist and cannot be created: %w", b.bucket, err)
	}

	b.logger.Info(ctx, "created bucket")
	return nil
}

// Put uploads src with If-None-Match so an existing key is never replaced.
// The body is buffered because the SDK needs a seekable payload over plain HTTP.
func (b *RemoteBackend) Put(ctx context.Context, ownerID int64, uniqueName string, src io.Reader, size int64, contentType string) (locator string, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation(string(ModeRemote), "put", time.Since(start), err == nil) }()

	if err := validateName(uniqueName); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrStorageWrite, err)
	}
	locator = Locator(ownerID, uniqueName)

	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("%w: read upload for %s: %w", common.ErrStorageWrite, locator, err)
	}

	if contentType == "" {
		contentType = common.DefaultMimeType
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(locator),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return "", fmt.Errorf("%w: %s already exists", common.ErrStorageWrite, locator)
		}
		return "", fmt.Errorf("%w: put %s: %w", common.ErrStorageWrite, locator, err)
	}

	b.logger.Debug(ctx, "object stored", "locator", locator, "size", len(data))
	return locator, nil
}

// FetchPlan presigns a GET for locator, valid for PresignTTL. The signed URL
// overrides the response Content-Type and Content-Disposition from obj.
func (b *RemoteBackend) FetchPlan(ctx context.Context, locator string, obj ObjectInfo) (plan FetchPlan, err error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation(string(ModeRemote), "presign", time.Since(start), err == nil) }()

	if err := validateLocator(locator); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageRead, err)
	}

	in := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(locator),
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = common.DefaultMimeType
	}
	in.ResponseContentType = aws.String(contentType)
	if obj.Filename != "" {
		in.ResponseContentDisposition = aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": obj.Filename}))
	}

	issued := b.now()
	req, err := b.presign.PresignGetObject(ctx, in, s3.WithPresignExpires(PresignTTL))
	if err != nil {
		return nil, fmt.Errorf("%w: presign %s: %w", common.ErrStorageRead, locator, err)
	}

	return RedirectURL{URL: req.URL, ExpiresAt: issued.Add(PresignTTL)}, nil
}

func (b *RemoteBackend) Delete(ctx context.Context, locator string) bool {
	if err := validateLocator(locator); err != nil {
		b.logger.Warn(ctx, "refusing to delete object", "locator", locator, "error", err)
		return false
	}

	start := time.Now()
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(locator),
	})
	metrics.RecordStorageOperation(string(ModeRemote), "delete", time.Since(start), err == nil)
	if err != nil {
		b.logger.Warn(ctx, "delete object failed", "locator", locator, "error", err)
		return false
	}
	return true
}
