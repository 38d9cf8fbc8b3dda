package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropgate/dropgate/internal/common"
	"github.com/dropgate/dropgate/internal/server/proxy"
	"github.com/dropgate/dropgate/internal/transcode"
)

// transferServer fakes the server endpoint: it records every envelope and
// answers from the reply queue, one per call.
type transferServer struct {
	t         *testing.T
	envelopes []proxy.Envelope
	replies   []func(w http.ResponseWriter)
	authSeen  string
}

func (s *transferServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(s.t, http.MethodPost, r.Method)
		require.Equal(s.t, "/transfer", r.URL.Path)
		s.authSeen = r.Header.Get("Authorization")

		var env proxy.Envelope
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&env))
		s.envelopes = append(s.envelopes, env)

		require.NotEmpty(s.t, s.replies, "unexpected extra call")
		reply := s.replies[0]
		s.replies = s.replies[1:]
		reply(w)
	})
}

func okReply(resp proxy.Response) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func errReply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newAgent(ts *httptest.Server) *Agent {
	return New(ts.URL, "tok123", 5*time.Second)
}

func TestUpload(t *testing.T) {
	data := []byte(strings.Repeat("binary payload ", 1000))

	srv := &transferServer{t: t, replies: []func(http.ResponseWriter){
		okReply(proxy.Response{Success: true}),
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	var reports []int
	err := newAgent(ts).Upload(context.Background(), "u1/file.bin", data, "text/plain", func(pct int) {
		reports = append(reports, pct)
	})

	require.NoError(t, err)
	require.Len(t, srv.envelopes, 1)

	env := srv.envelopes[0]
	assert.Equal(t, proxy.OpUpload, env.Operation)
	assert.Equal(t, "u1/file.bin", env.StorageKey)
	assert.Equal(t, "text/plain", env.ContentType)
	assert.Equal(t, int64(len(data)), env.Size)
	assert.Equal(t, "Bearer tok123", srv.authSeen)

	decoded, err := transcode.Decode(env.Payload, nil)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	require.NotEmpty(t, reports)
	assert.Equal(t, 100, reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i], reports[i-1])
	}
}

func TestDownload_PresignedStream(t *testing.T) {
	object := []byte(strings.Repeat("x", 300*1024))

	objectSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(object)
	}))
	defer objectSrv.Close()

	srv := &transferServer{t: t, replies: []func(http.ResponseWriter){
		okReply(proxy.Response{Success: true, URL: objectSrv.URL + "/obj?sig=abc"}),
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	var reports []int
	data, contentType, err := newAgent(ts).Download(context.Background(), "u1/file.pdf", 0, func(pct int) {
		reports = append(reports, pct)
	})

	require.NoError(t, err)
	assert.Equal(t, object, data)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, proxy.OpGetDownloadURL, srv.envelopes[0].Operation)

	require.NotEmpty(t, reports)
	assert.Equal(t, 100, reports[len(reports)-1])
	for _, pct := range reports[:len(reports)-1] {
		assert.LessOrEqual(t, pct, 99, "only stream completion may report 100")
	}
}

func TestDownload_StreamFailureFallsBackToFreshURL(t *testing.T) {
	object := []byte("recovered bytes")
	var hits int

	objectSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(object)
	}))
	defer objectSrv.Close()

	srv := &transferServer{t: t, replies: []func(http.ResponseWriter){
		okReply(proxy.Response{Success: true, URL: objectSrv.URL}),
		okReply(proxy.Response{Success: true, URL: objectSrv.URL}),
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	data, _, err := newAgent(ts).Download(context.Background(), "u1/file.bin", 0, nil)

	require.NoError(t, err)
	assert.Equal(t, object, data)
	assert.Len(t, srv.envelopes, 2, "fallback reissues the url")
	assert.Equal(t, 2, hits)
}

func TestDownload_FallbackExhausted(t *testing.T) {
	objectSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer objectSrv.Close()

	srv := &transferServer{t: t, replies: []func(http.ResponseWriter){
		okReply(proxy.Response{Success: true, URL: objectSrv.URL}),
		okReply(proxy.Response{Success: true, URL: objectSrv.URL}),
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	var reports []int
	_, _, err := newAgent(ts).Download(context.Background(), "u1/file.bin", 0, func(pct int) {
		reports = append(reports, pct)
	})

	require.Error(t, err)
	assert.Len(t, srv.envelopes, 2, "exactly one retry, then give up")
	require.NotEmpty(t, reports)
	assert.Equal(t, 0, reports[len(reports)-1], "failure must leave progress at zero")
}

func TestUpload_FailureResetsProgress(t *testing.T) {
	data := []byte(strings.Repeat("payload ", 1000))

	srv := &transferServer{t: t, replies: []func(http.ResponseWriter){
		errReply(http.StatusBadGateway, `{"error":"backend unavailable"}`),
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	var reports []int
	err := newAgent(ts).Upload(context.Background(), "u1/file.bin", data, "", func(pct int) {
		reports = append(reports, pct)
	})

	require.Error(t, err)
	require.NotEmpty(t, reports)
	assert.Equal(t, 50, reports[len(reports)-2], "encode phase finished before the round trip failed")
	assert.Equal(t, 0, reports[len(reports)-1], "failure must leave progress at zero")
}

func TestDownload_EnvelopeDecodeFailureResetsProgress(t *testing.T) {
	srv := &transferServer{t: t, replies: []func(http.ResponseWriter){
		okReply(proxy.Response{Success: true, Data: "not base64!!"}),
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	var reports []int
	_, _, err := newAgent(ts).Download(context.Background(), "u1/tiny.txt", 16, func(pct int) {
		reports = append(reports, pct)
	})

	require.Error(t, err)
	require.NotEmpty(t, reports)
	assert.Equal(t, 0, reports[len(reports)-1], "failure must leave progress at zero")
}

func TestDownload_SmallFileUsesEnvelope(t *testing.T) {
	object := []byte("tiny object")

	srv := &transferServer{t: t, replies: []func(http.ResponseWriter){
		okReply(proxy.Response{
			Success:     true,
			Data:        transcode.Encode(object, transcode.DefaultChunkSize, nil),
			ContentType: "text/plain",
		}),
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	data, contentType, err := newAgent(ts).Download(context.Background(), "u1/tiny.txt", int64(len(object)), nil)

	require.NoError(t, err)
	assert.Equal(t, object, data)
	assert.Equal(t, "text/plain", contentType)
	require.Len(t, srv.envelopes, 1)
	assert.Equal(t, proxy.OpDownload, srv.envelopes[0].Operation)
}

func TestDownload_NotFound(t *testing.T) {
	srv := &transferServer{t: t, replies: []func(http.ResponseWriter){
		errReply(http.StatusNotFound, `{"error":"resource not found"}`),
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	_, _, err := newAgent(ts).Download(context.Background(), "u1/missing.bin", 0, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestDeleteMany_PartialFailure(t *testing.T) {
	srv := &transferServer{t: t, replies: []func(http.ResponseWriter){
		errReply(http.StatusBadGateway, `{"error":"1 of 2 keys failed","results":[
			{"key":"u1/a","success":true},
			{"key":"u1/b","success":false,"error":"backend unavailable"}]}`),
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	results, err := newAgent(ts).DeleteMany(context.Background(), []string{"u1/a", "u1/b"})

	require.Error(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
}

func TestNewStorageKey(t *testing.T) {
	key := NewStorageKey("u1", "report.pdf")

	assert.True(t, strings.HasPrefix(key, "u1/"))
	assert.True(t, strings.HasSuffix(key, "-report.pdf"))
	assert.NotEqual(t, key, NewStorageKey("u1", "report.pdf"))
}

func TestBatchTracker_NoFiles(t *testing.T) {
	var reports []int
	tracker := NewBatchTracker(nil, func(pct int) {
		reports = append(reports, pct)
	})

	tracker.File(0)(50)
	tracker.File(-1)(100)

	assert.Empty(t, reports, "out-of-range callbacks are no-ops")
}

func TestBatchTracker(t *testing.T) {
	var reports []int
	tracker := NewBatchTracker([]int64{900, 100}, func(pct int) {
		reports = append(reports, pct)
	})

	big := tracker.File(0)
	small := tracker.File(1)

	small(100)
	big(50)
	big(0) // retry reset must not move the aggregate backwards
	big(100)

	require.NotEmpty(t, reports)
	assert.Equal(t, 10, reports[0], "small file alone is a tenth of the work")
	assert.Equal(t, 100, reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i], reports[i-1])
	}
}
