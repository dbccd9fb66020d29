package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error

	// Auth errors
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS" // bearer token missing, malformed, expired or replayed

	// File errors
	CodeInvalidPath   = "E_INVALID_PATH"    // identity escapes the store root
	CodeFileNotFound  = "E_FILE_NOT_FOUND"  // no content stored under the identity
	CodeNotAFile      = "E_NOT_A_FILE"      // identity names a directory
	CodeNotADirectory = "E_NOT_A_DIRECTORY" // identity names a file
	CodeStorageFailed = "E_STORAGE_FAILED"  // the backend could not write the content
)
