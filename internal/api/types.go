package api

import "time"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	Message      string    `json:"message"`
	SeedCode     string    `json:"seed_code"`
	DownloadLink string    `json:"download_link"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ResolveRequest is the JSON body accepted by POST /file-name.
type ResolveRequest struct {
	SeedCode string `json:"seed_code"`
}

// ResolveResponse carries exactly one of File or Text.
type ResolveResponse struct {
	File string `json:"file,omitempty"`
	Text string `json:"text,omitempty"`
}

// PreviewContentResponse is returned by GET /view-file for text records and
// small text-like files.
type PreviewContentResponse struct {
	FileContent string `json:"fileContent"`
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
}

// PreviewLinkResponse is returned by GET /view-file for files that cannot be
// previewed inline.
type PreviewLinkResponse struct {
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
	DownloadURL string `json:"downloadUrl"`
}

// PreviewResponse is the union of the JSON preview shapes, used by clients.
type PreviewResponse struct {
	FileContent *string `json:"fileContent,omitempty"`
	FileName    string  `json:"fileName"`
	FileType    string  `json:"fileType"`
	DownloadURL string  `json:"downloadUrl,omitempty"`
}

// CleanupRequest drives POST /admin/cleanup.
type CleanupRequest struct {
	DryRun bool `json:"dry_run"`
	Limit  int  `json:"limit,omitempty"`
}

// CleanupResponse reports what an expiry sweep removed, or would remove.
type CleanupResponse struct {
	SeedCodes      []string `json:"seed_codes"`
	Count          int      `json:"count"`
	BlobsDeleted   int      `json:"blobs_deleted"`
	ReclaimedBytes int64    `json:"reclaimed_bytes"`
	FailedCount    int      `json:"failed_count"`
	DryRun         bool     `json:"dry_run"`
}

// InfoResponse is returned by GET /admin/info.
type InfoResponse struct {
	Backend        string         `json:"backend"`
	SchemaVersion  int            `json:"schema_version"`
	TotalRecords   int            `json:"total_records"`
	ExpiredRecords int            `json:"expired_records"`
	ByKind         map[string]int `json:"by_kind"`
	UploadDir      string         `json:"upload_dir"`
	MaxFileBytes   int64          `json:"max_file_bytes"`
	Retention      string         `json:"retention"`
	RateLimitMax   int            `json:"rate_limit_max_requests"`
	RateLimitWin   string         `json:"rate_limit_window"`
	TrackedClients int            `json:"tracked_clients"`
}
