// Package agent implements the client side of the transfer protocol. It
// speaks transfer envelopes to the server endpoint and moves file bytes
// through the text transcoding layer, reporting progress along the way.
//
// Uploads travel inside the envelope as text-encoded payloads. Downloads are
// modelled as two strategies behind one interface: a presigned-URL streamed
// fetch for the common case, and the legacy envelope path where the whole
// object travels back text-encoded, kept for small files and old servers.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dropgate/dropgate/internal/common"
	"github.com/dropgate/dropgate/internal/server/proxy"
	"github.com/dropgate/dropgate/internal/transcode"
)

// smallFileThreshold selects the envelope download strategy when the caller
// knows the object is at most this big. Below it the presigned round trip
// costs more than it saves.
const smallFileThreshold = 256 * 1024

// Agent is a client for one transfer endpoint. Safe for concurrent use.
type Agent struct {
	endpoint string
	token    string
	client   *http.Client
}

// New builds an Agent for the endpoint base URL. The token is attached as a
// bearer credential to every envelope call; presigned fetches carry no
// credentials because the URL itself is the grant.
func New(endpoint, token string, timeout time.Duration) *Agent {
	return &Agent{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewStorageKey derives a collision-free object key for an owner's file.
func NewStorageKey(ownerID, fileName string) string {
	return fmt.Sprintf("%s/%s-%s", ownerID, uuid.NewString(), fileName)
}

// call posts one envelope and decodes the reply. Non-2xx replies carry a
// JSON error body; 404 maps back to common.ErrNotFound so callers can branch
// on it. Per-key results survive into the returned response even on error.
func (a *Agent) call(ctx context.Context, env proxy.Envelope) (*proxy.Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/transfer", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set(common.AuthHeaderName, "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error   string            `json:"error"`
			Results []proxy.KeyStatus `json:"results"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}

		var callErr error
		if resp.StatusCode == http.StatusNotFound {
			callErr = fmt.Errorf("%w: %s", common.ErrNotFound, e.Error)
		} else {
			callErr = fmt.Errorf("server error (%d): %s", resp.StatusCode, e.Error)
		}
		if len(e.Results) > 0 {
			return &proxy.Response{Results: e.Results}, callErr
		}
		return nil, callErr
	}

	var out proxy.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("malformed server reply: %w", err)
	}
	return &out, nil
}

// resetProgress drops the indicator back to zero. Every failing transfer
// ends with this so a consumer never sits frozen at a half-done value.
func resetProgress(onProgress transcode.ProgressFunc) {
	if onProgress != nil {
		onProgress(0)
	}
}

// Upload encodes data and ships it to the given storage key. Progress covers
// encoding in [0,50]; the remaining half is the network round trip, reported
// as 100 once the server confirms. A failed upload resets progress to zero.
func (a *Agent) Upload(ctx context.Context, key string, data []byte, contentType string, onProgress transcode.ProgressFunc) error {
	payload := transcode.Encode(data, transcode.DefaultChunkSize, onProgress)

	_, err := a.call(ctx, proxy.Envelope{
		Operation:   proxy.OpUpload,
		StorageKey:  key,
		Payload:     payload,
		ContentType: contentType,
		Size:        int64(len(data)),
	})
	if err != nil {
		resetProgress(onProgress)
		return err
	}
	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

// downloadStrategy is one way to move an object's bytes down. Both
// implementations report monotonic progress in [0,100] on success.
type downloadStrategy interface {
	fetch(ctx context.Context, key string, onProgress transcode.ProgressFunc) (data []byte, contentType string, err error)
}

// strategyFor picks the download path. A known-small object goes through the
// envelope; everything else, including unknown sizes, streams from a
// presigned URL.
func (a *Agent) strategyFor(sizeHint int64) downloadStrategy {
	if sizeHint > 0 && sizeHint <= smallFileThreshold {
		return envelopeDownload{agent: a}
	}
	return presignedDownload{agent: a}
}

// Download retrieves the object at key. sizeHint, when known, lets the agent
// pick the cheaper path; pass 0 when the size is unknown.
func (a *Agent) Download(ctx context.Context, key string, sizeHint int64, onProgress transcode.ProgressFunc) ([]byte, string, error) {
	return a.strategyFor(sizeHint).fetch(ctx, key, onProgress)
}

// presignedDownload obtains a presigned URL from the server and streams the
// object straight from storage. If the streamed fetch fails it retries once
// with a freshly issued URL read in one piece, then gives up; there is no
// third attempt. Progress restarts from zero on the retry and ends at zero
// when the chain is exhausted.
type presignedDownload struct {
	agent *Agent
}

func (d presignedDownload) fetch(ctx context.Context, key string, onProgress transcode.ProgressFunc) ([]byte, string, error) {
	resp, err := d.agent.call(ctx, proxy.Envelope{Operation: proxy.OpGetDownloadURL, StorageKey: key})
	if err != nil {
		resetProgress(onProgress)
		return nil, "", err
	}

	data, contentType, streamErr := d.agent.fetchStreamed(ctx, resp.URL, onProgress)
	if streamErr == nil {
		return data, contentType, nil
	}

	resetProgress(onProgress)
	resp, err = d.agent.call(ctx, proxy.Envelope{Operation: proxy.OpGetDownloadURL, StorageKey: key})
	if err != nil {
		resetProgress(onProgress)
		return nil, "", fmt.Errorf("streamed fetch failed (%v), could not reissue url: %w", streamErr, err)
	}
	data, contentType, err = d.agent.fetchDirect(ctx, resp.URL)
	if err != nil {
		resetProgress(onProgress)
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	if onProgress != nil {
		onProgress(100)
	}
	return data, contentType, nil
}

// envelopeDownload is the legacy path: the whole object travels back
// text-encoded inside the reply. The round trip is reported as a coarse jump
// to 50, decoding covers [50,100].
type envelopeDownload struct {
	agent *Agent
}

func (d envelopeDownload) fetch(ctx context.Context, key string, onProgress transcode.ProgressFunc) ([]byte, string, error) {
	resp, err := d.agent.call(ctx, proxy.Envelope{Operation: proxy.OpDownload, StorageKey: key})
	if err != nil {
		resetProgress(onProgress)
		return nil, "", err
	}
	if onProgress != nil {
		onProgress(50)
	}

	data, err := transcode.Decode(resp.Data, onProgress)
	if err != nil {
		resetProgress(onProgress)
		return nil, "", err
	}
	return data, resp.ContentType, nil
}

// fetchStreamed downloads the presigned URL, reporting receivedBytes against
// the Content-Length. Intermediate reports never exceed 99; 100 is reported
// only after the body is read to EOF, so a truncated stream cannot look
// complete. Without a Content-Length there are no intermediate reports.
func (a *Agent) fetchStreamed(ctx context.Context, url string, onProgress transcode.ProgressFunc) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("presigned fetch failed: %s", resp.Status)
	}

	total := resp.ContentLength
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	chunk := make([]byte, 64*1024)
	var received int64
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			received += int64(n)
			if onProgress != nil && total > 0 {
				pct := int(received * 100 / total)
				if pct > 99 {
					pct = 99
				}
				onProgress(pct)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("presigned stream interrupted: %w", err)
		}
	}

	if onProgress != nil {
		onProgress(100)
	}
	return buf.Bytes(), resp.Header.Get("Content-Type"), nil
}

// fetchDirect reads the presigned URL in one piece, without streaming
// progress.
func (a *Agent) fetchDirect(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("presigned fetch failed: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Delete removes every version of the object at key.
func (a *Agent) Delete(ctx context.Context, key string) error {
	_, err := a.call(ctx, proxy.Envelope{Operation: proxy.OpDelete, StorageKey: key})
	return err
}

// DeleteMany removes several objects in one call and returns the per-key
// outcomes. Results may be non-nil alongside an error when some keys failed.
func (a *Agent) DeleteMany(ctx context.Context, keys []string) ([]proxy.KeyStatus, error) {
	resp, err := a.call(ctx, proxy.Envelope{Operation: proxy.OpDeleteMultiple, StorageKeys: keys})
	if resp != nil {
		return resp.Results, err
	}
	return nil, err
}
