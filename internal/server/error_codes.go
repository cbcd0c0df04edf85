package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1000
	ErrCodeInvalidJSON       = 1001
	ErrCodeRequestTooLarge   = 1002
	ErrCodeInvalidMultipart  = 1003
	ErrCodeInvalidSeedCode   = 1004
	ErrCodeInvalidUploadType = 1005
	ErrCodeInvalidMetadata   = 1006
	ErrCodeMissingRequired   = 1009
	ErrCodeOversizedPayload  = 1010
	ErrCodeEmptyPayload      = 1011

	// Domain state (2xxx)
	ErrCodeSeedNotFound      = 2001
	ErrCodeBlobMissing       = 2002
	ErrCodeNotAFile          = 2003
	ErrCodeDuplicateSeedCode = 2101

	// Auth & limits (3xxx)
	ErrCodeUnauthorized = 3001
	ErrCodeRateLimited  = 3003

	// Internal/system (4xxx)
	ErrCodeInternal      = 4001
	ErrCodeStoreFailure  = 4002
	ErrCodeCorruptRecord = 4003
	ErrCodeBlobFailure   = 4004
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 404:
		return ErrCodeSeedNotFound
	case 413:
		return ErrCodeRequestTooLarge
	case 429:
		return ErrCodeRateLimited
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
