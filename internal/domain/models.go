package domain

import (
	"encoding/json"
)

// UploadIntentRequest is the untrusted body of POST /api/upload-url.
// Every field is optional; invalid values degrade to defaults instead of
// failing the request.
type UploadIntentRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	// MaxDimension is kept raw so both 500 and "500" parse, and garbage
	// like "abc" can be discarded without rejecting the whole body.
	MaxDimension json.RawMessage `json:"maxDimension"`
}

// UploadIntent is the successful response: a presigned PUT URL and the
// object key the client must keep for later retrieval.
type UploadIntent struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// RetrievalIntent carries a presigned GET URL for the processed object.
type RetrievalIntent struct {
	ProcessedURL string `json:"processedUrl"`
}

// Notification identifies one object arrival at the upload bucket.
// Key may still be URL-encoded the way S3 event records deliver it.
type Notification struct {
	Bucket string
	Key    string
}
