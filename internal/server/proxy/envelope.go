package proxy

// Operation names the five remote operations of the transfer protocol.
type Operation string

const (
	OpUpload         Operation = "upload"
	OpDownload       Operation = "download"
	OpGetDownloadURL Operation = "get-download-url"
	OpDelete         Operation = "delete"
	OpDeleteMultiple Operation = "delete-multiple"
)

// Envelope is the wire request exchanged between the client transfer agent
// and the proxy. Payload is present only for upload and carries the
// text-encoded binary.
type Envelope struct {
	Operation      Operation `json:"operation"`
	StorageKey     string    `json:"storageKey,omitempty"`
	StorageKeys    []string  `json:"storageKeys,omitempty"`
	Payload        string    `json:"payload,omitempty"`
	ContentType    string    `json:"contentType,omitempty"`
	Size           int64     `json:"size,omitempty"`
	BucketOverride string    `json:"bucketOverride,omitempty"`
}

// Response is the wire reply. Field population depends on the operation:
// Data/ContentType for download, URL for get-download-url, Results for
// delete-multiple.
type Response struct {
	Success     bool        `json:"success"`
	Data        string      `json:"data,omitempty"`
	ContentType string      `json:"contentType,omitempty"`
	URL         string      `json:"url,omitempty"`
	Results     []KeyStatus `json:"results,omitempty"`
}

// KeyStatus reports the per-key outcome of a delete-multiple call, so a
// caller can reconcile its metadata instead of guessing from one boolean.
type KeyStatus struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
