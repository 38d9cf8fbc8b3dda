// Package storage talks to the S3-compatible object store backing dropgate.
//
// It covers exactly the primitives the transfer protocol needs: put, get
// (buffered or streamed), presigned read-only URLs, version listing and
// version deletion. The version-complete purge built on top of these lives
// in purge.go.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dropgate/dropgate/internal/common"
)

// loadDefaultAWSConfig is a seam for testing config loading.
var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// S3API is the subset of the AWS S3 client this package uses.
// It allows mocking in tests.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
}

// PresignAPI is the subset of the AWS S3 presign client this package uses.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectVersion identifies one stored version or delete-marker of an object.
type ObjectVersion struct {
	Key          string
	VersionID    string
	DeleteMarker bool
}

// VersionMarker is the continuation token for ListVersions pagination.
type VersionMarker struct {
	Key       string
	VersionID string
}

// Options configures the store connection. Credentials are resolved once at
// construction; they never travel to clients.
type Options struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BaseEndpoint    string
	UsePathStyle    bool

	// CallTimeout bounds each remote call. Zero disables the bound.
	CallTimeout time.Duration
}

// Client issues the primitive remote operations against one S3-compatible
// endpoint. Bucket names are passed per call; the client itself is
// bucket-agnostic.
type Client struct {
	api     S3API
	presign PresignAPI
	timeout time.Duration
}

// NewClient builds a Client from Options. Missing credentials or endpoint
// fail fast with common.ErrConfiguration before any network call.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
		return nil, fmt.Errorf("%w: object store credentials are not set", common.ErrConfiguration)
	}
	if opts.BaseEndpoint == "" {
		return nil, fmt.Errorf("%w: object store endpoint is not set", common.ErrConfiguration)
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.SecretAccessKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: loading store config: %v", common.ErrConfiguration, err)
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		o.UsePathStyle = opts.UsePathStyle
	})

	return &Client{api: api, presign: s3.NewPresignClient(api), timeout: opts.CallTimeout}, nil
}

// NewClientWithAPI wires a Client to pre-built S3 clients.
// Used by tests with mocks.
func NewClientWithAPI(api S3API, presign PresignAPI) *Client {
	return &Client{api: api, presign: presign}
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// wrapStoreErr folds a backend failure into the shared taxonomy.
func wrapStoreErr(op, bucket, key string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s/%s: %w", op, bucket, key, common.ErrTimeout)
	}
	return fmt.Errorf("%s %s/%s: %w: %v", op, bucket, key, common.ErrStore, err)
}

// Put stores data under bucket/key. On a versioned bucket this creates a new
// version; prior versions remain until purged.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := c.api.PutObject(ctx, in); err != nil {
		return wrapStoreErr("put", bucket, key, err)
	}
	return nil
}

// Get returns the full object bytes and content type.
// A missing key yields common.ErrNotFound.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, string, error) {
	body, _, contentType, err := c.GetStream(ctx, bucket, key)
	if err != nil {
		return nil, "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", wrapStoreErr("get", bucket, key, err)
	}
	return data, contentType, nil
}

// GetStream returns the object body as a stream together with its size and
// content type. The caller owns closing the stream.
func (c *Client) GetStream(ctx context.Context, bucket, key string) (io.ReadCloser, int64, string, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, "", fmt.Errorf("get %s/%s: %w", bucket, key, common.ErrNotFound)
		}
		return nil, 0, "", wrapStoreErr("get", bucket, key, err)
	}

	return out.Body, aws.ToInt64(out.ContentLength), aws.ToString(out.ContentType), nil
}

// PresignedGetURL returns a credential-free read-only URL for bucket/key,
// valid for ttl and usable by a third party with no further headers.
func (c *Client) PresignedGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", wrapStoreErr("presign", bucket, key, err)
	}
	return req.URL, nil
}

// ListVersions returns one page of version records for keys starting with
// prefix, plus a continuation marker when the listing is truncated. Callers
// must follow the marker; a single page is never the whole story for keys
// with many versions.
func (c *Client) ListVersions(ctx context.Context, bucket, prefix string, marker *VersionMarker) ([]ObjectVersion, *VersionMarker, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	in := &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if marker != nil {
		in.KeyMarker = aws.String(marker.Key)
		if marker.VersionID != "" {
			in.VersionIdMarker = aws.String(marker.VersionID)
		}
	}

	out, err := c.api.ListObjectVersions(ctx, in)
	if err != nil {
		return nil, nil, wrapStoreErr("list versions", bucket, prefix, err)
	}

	page := make([]ObjectVersion, 0, len(out.Versions)+len(out.DeleteMarkers))
	for _, v := range out.Versions {
		page = append(page, ObjectVersion{Key: aws.ToString(v.Key), VersionID: aws.ToString(v.VersionId)})
	}
	for _, m := range out.DeleteMarkers {
		page = append(page, ObjectVersion{Key: aws.ToString(m.Key), VersionID: aws.ToString(m.VersionId), DeleteMarker: true})
	}

	var next *VersionMarker
	if aws.ToBool(out.IsTruncated) {
		next = &VersionMarker{
			Key:       aws.ToString(out.NextKeyMarker),
			VersionID: aws.ToString(out.NextVersionIdMarker),
		}
	}

	return page, next, nil
}

// Delete removes the current object without touching versions. On a
// versioned bucket this only adds a delete-marker; use Purge for real
// removal.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return wrapStoreErr("delete", bucket, key, err)
	}
	return nil
}

// DeleteVersion removes one specific version or delete-marker.
func (c *Client) DeleteVersion(ctx context.Context, bucket, key, versionID string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	if _, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:    aws.String(bucket),
		Key:       aws.String(key),
		VersionId: aws.String(versionID),
	}); err != nil {
		return wrapStoreErr("delete version", bucket, key, err)
	}
	return nil
}

// DeleteVersionsBatch removes the given (key, versionId) pairs. Requests
// larger than the backend's per-call limit are split into sequential calls
// of at most common.DeleteBatchLimit pairs; the whole operation succeeds
// only if every call succeeds.
func (c *Client) DeleteVersionsBatch(ctx context.Context, bucket string, pairs []ObjectVersion) error {
	for len(pairs) > 0 {
		n := len(pairs)
		if n > common.DeleteBatchLimit {
			n = common.DeleteBatchLimit
		}
		if err := c.deleteBatch(ctx, bucket, pairs[:n]); err != nil {
			return err
		}
		pairs = pairs[n:]
	}
	return nil
}

func (c *Client) deleteBatch(ctx context.Context, bucket string, pairs []ObjectVersion) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	objects := make([]types.ObjectIdentifier, 0, len(pairs))
	for _, p := range pairs {
		objects = append(objects, types.ObjectIdentifier{
			Key:       aws.String(p.Key),
			VersionId: aws.String(p.VersionID),
		})
	}

	out, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return wrapStoreErr("delete batch", bucket, fmt.Sprintf("%d objects", len(pairs)), err)
	}

	// In quiet mode the backend reports only the failures.
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("delete batch %s: %d of %d failed, first %s@%s: %w: %s",
			bucket, len(out.Errors), len(pairs),
			aws.ToString(first.Key), aws.ToString(first.VersionId),
			common.ErrStore, aws.ToString(first.Message))
	}

	return nil
}

// isNotFound reports whether a backend error means the key is absent.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return false
}
