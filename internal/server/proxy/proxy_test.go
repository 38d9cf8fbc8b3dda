package proxy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropgate/dropgate/internal/common"
	"github.com/dropgate/dropgate/internal/logging"
	"github.com/dropgate/dropgate/internal/server/storage"
	"github.com/dropgate/dropgate/internal/transcode"
)

// -------- test fakes --------

type fakeStore struct {
	putBucket, putKey, putContentType string
	putData                           []byte
	putErr                            error

	getData        []byte
	getContentType string
	getErr         error

	presignURL string
	presignTTL time.Duration
	presignErr error

	purgedKeys []string
	purgeErr   error

	purgeManyBucket  string
	purgeManyResults []storage.KeyResult
	purgeManyErr     error
}

func (f *fakeStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	f.putBucket, f.putKey, f.putData, f.putContentType = bucket, key, data, contentType
	return f.putErr
}

func (f *fakeStore) Get(ctx context.Context, bucket, key string) ([]byte, string, error) {
	return f.getData, f.getContentType, f.getErr
}

func (f *fakeStore) PresignedGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	f.presignTTL = ttl
	return f.presignURL, f.presignErr
}

func (f *fakeStore) Purge(ctx context.Context, bucket, key string) error {
	if f.purgeErr != nil {
		return f.purgeErr
	}
	f.purgedKeys = append(f.purgedKeys, key)
	return nil
}

func (f *fakeStore) PurgeMany(ctx context.Context, bucket string, keys []string) ([]storage.KeyResult, error) {
	f.purgeManyBucket = bucket
	return f.purgeManyResults, f.purgeManyErr
}

func newProxy(store *fakeStore) *Proxy {
	return New(store, "shares", 0, logging.NewJSON())
}

// -------- tests --------

func TestHandle_UnknownOperation(t *testing.T) {
	p := newProxy(&fakeStore{})

	_, err := p.Handle(context.Background(), Envelope{Operation: "rename"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidOperation))
}

func TestUpload_DecodesPayloadBeforePut(t *testing.T) {
	store := &fakeStore{}
	p := newProxy(store)
	raw := []byte("the raw bytes of a shared file")

	resp, err := p.Handle(context.Background(), Envelope{
		Operation:   OpUpload,
		StorageKey:  "u1/file.txt",
		Payload:     transcode.Encode(raw, 0, nil),
		ContentType: "text/plain",
		Size:        int64(len(raw)),
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "shares", store.putBucket)
	assert.Equal(t, "u1/file.txt", store.putKey)
	assert.Equal(t, raw, store.putData)
	assert.Equal(t, "text/plain", store.putContentType)
}

func TestUpload_MalformedPayload(t *testing.T) {
	store := &fakeStore{}
	p := newProxy(store)

	_, err := p.Handle(context.Background(), Envelope{
		Operation:  OpUpload,
		StorageKey: "u1/file.txt",
		Payload:    "not!base64",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrDecode))
	assert.Nil(t, store.putData, "nothing may reach the store on a decode failure")
}

func TestUpload_SniffsMissingContentType(t *testing.T) {
	store := &fakeStore{}
	p := newProxy(store)
	// PNG magic number.
	raw := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

	_, err := p.Handle(context.Background(), Envelope{
		Operation:  OpUpload,
		StorageKey: "u1/pic",
		Payload:    transcode.Encode(raw, 0, nil),
	})

	require.NoError(t, err)
	assert.Equal(t, "image/png", store.putContentType)
}

func TestUpload_BucketOverride(t *testing.T) {
	store := &fakeStore{}
	p := newProxy(store)

	_, err := p.Handle(context.Background(), Envelope{
		Operation:      OpUpload,
		StorageKey:     "k",
		Payload:        "",
		BucketOverride: "archive",
	})

	require.NoError(t, err)
	assert.Equal(t, "archive", store.putBucket)
}

func TestDownload_EncodesStoredBytes(t *testing.T) {
	raw := []byte("downloaded content")
	store := &fakeStore{getData: raw, getContentType: "text/plain"}
	p := newProxy(store)

	resp, err := p.Handle(context.Background(), Envelope{Operation: OpDownload, StorageKey: "k"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "text/plain", resp.ContentType)

	decoded, err := transcode.Decode(resp.Data, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestDownload_NotFoundPropagates(t *testing.T) {
	store := &fakeStore{getErr: common.ErrNotFound}
	p := newProxy(store)

	_, err := p.Handle(context.Background(), Envelope{Operation: OpDownload, StorageKey: "k"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestGetDownloadURL_UsesConfiguredTTL(t *testing.T) {
	store := &fakeStore{presignURL: "https://store.example/signed"}
	p := newProxy(store)

	resp, err := p.Handle(context.Background(), Envelope{Operation: OpGetDownloadURL, StorageKey: "k"})

	require.NoError(t, err)
	assert.Equal(t, "https://store.example/signed", resp.URL)
	assert.Equal(t, common.PresignTTLSeconds*time.Second, store.presignTTL)
}

func TestDelete_PurgesKey(t *testing.T) {
	store := &fakeStore{}
	p := newProxy(store)

	resp, err := p.Handle(context.Background(), Envelope{Operation: OpDelete, StorageKey: "u1/old.bin"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"u1/old.bin"}, store.purgedKeys)
}

func TestDeleteMultiple_PerKeyResults(t *testing.T) {
	store := &fakeStore{
		purgeManyResults: []storage.KeyResult{
			{Key: "a"},
			{Key: "b", Err: errors.New("listing throttled")},
		},
		purgeManyErr: common.ErrStore,
	}
	p := newProxy(store)

	resp, err := p.Handle(context.Background(), Envelope{
		Operation:   OpDeleteMultiple,
		StorageKeys: []string{"a", "b"},
	})

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[1].Success)
	assert.Contains(t, resp.Results[1].Error, "throttled")
}

func TestMissingStorageKey_IsClientError(t *testing.T) {
	p := newProxy(&fakeStore{})

	for _, op := range []Operation{OpUpload, OpDownload, OpGetDownloadURL, OpDelete} {
		_, err := p.Handle(context.Background(), Envelope{Operation: op})
		require.Error(t, err, string(op))
		assert.True(t, errors.Is(err, common.ErrInvalidOperation), string(op))
	}

	_, err := p.Handle(context.Background(), Envelope{Operation: OpDeleteMultiple})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidOperation))
}
