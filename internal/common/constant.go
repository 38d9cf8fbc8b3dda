package common

// AuthHeaderName is the HTTP header carrying the bearer access token on
// requests to the transfer endpoint.
const AuthHeaderName = "Authorization"

// DeleteBatchLimit is the maximum number of (key, versionId) pairs the
// backing store accepts in a single batch delete call.
const DeleteBatchLimit = 1000

// PresignTTLSeconds is the lifetime of presigned download URLs.
const PresignTTLSeconds = 600
