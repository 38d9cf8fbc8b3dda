// Package proxy is the single dispatch point between transfer envelopes and
// the object store. It owns bucket resolution and payload materialization.
//
// The proxy performs no authorization of its own: every mutating envelope is
// assumed to come from an invoker that was already authenticated and
// authorized upstream (see httpapi middleware). It is stateless across
// requests and never retries; retries are the caller's call.
package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/h2non/filetype"

	"github.com/dropgate/dropgate/internal/common"
	"github.com/dropgate/dropgate/internal/logging"
	"github.com/dropgate/dropgate/internal/server/metrics"
	"github.com/dropgate/dropgate/internal/server/storage"
	"github.com/dropgate/dropgate/internal/transcode"
)

// Store is the slice of the storage client the proxy dispatches to.
type Store interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, string, error)
	PresignedGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	Purge(ctx context.Context, bucket, key string) error
	PurgeMany(ctx context.Context, bucket string, keys []string) ([]storage.KeyResult, error)
}

// Proxy routes envelopes to the store. The default bucket is injected at
// construction; an envelope may override it per call.
type Proxy struct {
	store         Store
	defaultBucket string
	presignTTL    time.Duration
	logger        logging.Logger
}

// New builds a Proxy. presignTTL of zero falls back to the protocol default.
func New(store Store, defaultBucket string, presignTTL time.Duration, logger logging.Logger) *Proxy {
	if presignTTL <= 0 {
		presignTTL = common.PresignTTLSeconds * time.Second
	}
	return &Proxy{
		store:         store,
		defaultBucket: defaultBucket,
		presignTTL:    presignTTL,
		logger:        logger.With("module", "proxy"),
	}
}

func (p *Proxy) bucket(env Envelope) string {
	if env.BucketOverride != "" {
		return env.BucketOverride
	}
	return p.defaultBucket
}

// Handle dispatches one envelope and returns the reply. For delete-multiple
// a partial failure returns both the per-key results and a non-nil error so
// the transport layer can flag the call as failed without discarding what
// the caller needs to reconcile.
func (p *Proxy) Handle(ctx context.Context, env Envelope) (*Response, error) {
	switch env.Operation {
	case OpUpload:
		return p.upload(ctx, env)
	case OpDownload:
		return p.download(ctx, env)
	case OpGetDownloadURL:
		return p.downloadURL(ctx, env)
	case OpDelete:
		return p.delete(ctx, env)
	case OpDeleteMultiple:
		return p.deleteMultiple(ctx, env)
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidOperation, env.Operation)
	}
}

func (p *Proxy) upload(ctx context.Context, env Envelope) (*Response, error) {
	if env.StorageKey == "" {
		return nil, fmt.Errorf("%w: upload requires storageKey", common.ErrInvalidOperation)
	}

	data, err := transcode.Decode(env.Payload, nil)
	if err != nil {
		return nil, err
	}

	contentType := env.ContentType
	if contentType == "" {
		contentType = sniffContentType(data)
	}

	if err := p.store.Put(ctx, p.bucket(env), env.StorageKey, data, contentType); err != nil {
		return nil, err
	}

	metrics.BytesUploadedTotal.Add(float64(len(data)))
	p.logger.Info(ctx, "upload complete", "key", env.StorageKey, "size", len(data), "content_type", contentType)
	return &Response{Success: true}, nil
}

// download is the legacy full-payload path; large files should prefer
// get-download-url. Kept for wire compatibility with older clients.
func (p *Proxy) download(ctx context.Context, env Envelope) (*Response, error) {
	if env.StorageKey == "" {
		return nil, fmt.Errorf("%w: download requires storageKey", common.ErrInvalidOperation)
	}

	data, contentType, err := p.store.Get(ctx, p.bucket(env), env.StorageKey)
	if err != nil {
		return nil, err
	}

	return &Response{
		Success:     true,
		Data:        transcode.Encode(data, transcode.DefaultChunkSize, nil),
		ContentType: contentType,
	}, nil
}

func (p *Proxy) downloadURL(ctx context.Context, env Envelope) (*Response, error) {
	if env.StorageKey == "" {
		return nil, fmt.Errorf("%w: get-download-url requires storageKey", common.ErrInvalidOperation)
	}

	url, err := p.store.PresignedGetURL(ctx, p.bucket(env), env.StorageKey, p.presignTTL)
	if err != nil {
		return nil, err
	}

	return &Response{Success: true, URL: url}, nil
}

func (p *Proxy) delete(ctx context.Context, env Envelope) (*Response, error) {
	if env.StorageKey == "" {
		return nil, fmt.Errorf("%w: delete requires storageKey", common.ErrInvalidOperation)
	}

	if err := p.store.Purge(ctx, p.bucket(env), env.StorageKey); err != nil {
		return nil, err
	}

	p.logger.Info(ctx, "purge complete", "key", env.StorageKey)
	return &Response{Success: true}, nil
}

func (p *Proxy) deleteMultiple(ctx context.Context, env Envelope) (*Response, error) {
	if len(env.StorageKeys) == 0 {
		return nil, fmt.Errorf("%w: delete-multiple requires storageKeys", common.ErrInvalidOperation)
	}

	results, err := p.store.PurgeMany(ctx, p.bucket(env), env.StorageKeys)

	resp := &Response{Success: err == nil, Results: make([]KeyStatus, 0, len(results))}
	for _, r := range results {
		ks := KeyStatus{Key: r.Key, Success: r.Err == nil}
		if r.Err != nil {
			ks.Error = r.Err.Error()
		}
		resp.Results = append(resp.Results, ks)
	}

	return resp, err
}

// sniffContentType guesses a MIME type from the payload's magic bytes when
// the envelope does not name one.
func sniffContentType(data []byte) string {
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		return t.MIME.Value
	}
	return "application/octet-stream"
}
