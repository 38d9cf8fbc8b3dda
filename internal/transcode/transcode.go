// Package transcode converts raw binary payloads to and from the text-safe
// transport encoding (base64) used by the transfer envelope.
//
// Both directions work in fixed-size windows so that a single call never has
// to materialize per-byte arguments for the whole buffer, and so that a
// progress callback can be driven while a large payload is processed.
// Encoding occupies the first half of a combined transfer progress range
// [0,50]; decoding the second half [50,100].
package transcode

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dropgate/dropgate/internal/common"
)

// DefaultChunkSize is the encode window size in bytes. It is a multiple of
// three: base64 emits whole output groups for whole 3-byte input groups, so
// per-window encodings concatenate into the same text a single-shot encode
// would produce.
const DefaultChunkSize = 48 * 1024

// decodeWindow is the decode window size in characters, a multiple of four
// so every window holds whole base64 groups.
const decodeWindow = 64 * 1024

// progressStep is the minimum delta, in percentage points, between two
// consecutive progress callbacks. Finer-grained reporting would only flood
// the consumer.
const progressStep = 2

// ProgressFunc receives a percentage in [0,100]. Values passed to a single
// ProgressFunc are non-decreasing.
type ProgressFunc func(pct int)

// throttle gates progress callbacks to at most one per progressStep points.
type throttle struct {
	fn   ProgressFunc
	last int
	sent bool
}

func (t *throttle) report(pct int, force bool) {
	if t.fn == nil {
		return
	}
	if t.sent && pct < t.last {
		return
	}
	if !force && t.sent && pct-t.last < progressStep {
		return
	}
	t.last = pct
	t.sent = true
	t.fn(pct)
}

// Encode converts data to transport text in windows of chunkSize bytes.
// chunkSize values that are not positive fall back to DefaultChunkSize;
// other values are rounded down to a multiple of three (minimum three).
//
// onProgress, when non-nil, is invoked with values in [0,50]; the final
// window always reports 50. Empty input yields empty output.
func Encode(data []byte, chunkSize int, onProgress ProgressFunc) string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkSize -= chunkSize % 3
	if chunkSize < 3 {
		chunkSize = 3
	}

	th := &throttle{fn: onProgress}

	if len(data) == 0 {
		th.report(50, true)
		return ""
	}

	var b strings.Builder
	b.Grow(base64.StdEncoding.EncodedLen(len(data)))

	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		b.WriteString(base64.StdEncoding.EncodeToString(data[off:end]))

		done := end == len(data)
		th.report(end*50/len(data), done)
	}

	return b.String()
}

// Decode converts transport text back to the original bytes. It is the exact
// inverse of Encode for every input, including empty.
//
// onProgress, when non-nil, is invoked with values in [50,100]; the final
// window always reports 100. Malformed text fails atomically with
// common.ErrDecode and no partial output.
func Decode(text string, onProgress ProgressFunc) ([]byte, error) {
	th := &throttle{fn: onProgress}

	if len(text) == 0 {
		th.report(100, true)
		return []byte{}, nil
	}
	if len(text)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", common.ErrDecode, len(text))
	}

	out := make([]byte, 0, base64.StdEncoding.DecodedLen(len(text)))

	for off := 0; off < len(text); off += decodeWindow {
		end := off + decodeWindow
		if end > len(text) {
			end = len(text)
		}
		chunk, err := base64.StdEncoding.DecodeString(text[off:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDecode, err)
		}
		// Padding is only legal in the final group.
		if end < len(text) && strings.Contains(text[off:end], "=") {
			return nil, fmt.Errorf("%w: padding inside payload", common.ErrDecode)
		}
		out = append(out, chunk...)

		done := end == len(text)
		th.report(50+end*50/len(text), done)
	}

	return out, nil
}
