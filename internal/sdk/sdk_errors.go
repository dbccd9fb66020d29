package sdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL = errors.New("sdk: server url missing")

	// failure kinds, match with errors.Is
	ErrTransport      = errors.New("sdk: transport failure")
	ErrUnauthorized   = errors.New("sdk: unauthorized")
	ErrNotFound       = errors.New("sdk: not found")
	ErrStorage        = errors.New("sdk: storage failure")
	ErrNotAFile       = errors.New("sdk: not a file")
	ErrNotADirectory  = errors.New("sdk: not a directory")
	ErrInvalidPath    = errors.New("sdk: invalid path")
	ErrRateLimited    = errors.New("sdk: rate limited")
	ErrServer         = errors.New("sdk: server error")
	ErrLocalFileState = errors.New("sdk: local file unusable")
)

const (
	CodeInvalidRequest         = "E_INVALID_REQUEST"
	CodeInvalidPath            = "E_INVALID_PATH"
	CodeRateLimited            = "E_RATE_LIMITED"
	CodeInternalError          = "E_INTERNAL_ERROR"
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS"
	CodeFileNotFound           = "E_FILE_NOT_FOUND"
	CodeNotAFile               = "E_NOT_A_FILE"
	CodeNotADirectory          = "E_NOT_A_DIRECTORY"
	CodeStorageFailed          = "E_STORAGE_FAILED"
	CodeUnknownError           = "E_UNKNOWN_ERR"
)

// APIError is the error body every /api/v1 route answers with.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s - %s", e.Code, e.Message)
}

// kind maps an API error to one of the sentinel failure kinds.
func (e *APIError) kind() error {
	switch e.Code {
	case CodeAuthInvalidCredentials:
		return ErrUnauthorized
	case CodeFileNotFound:
		return ErrNotFound
	case CodeStorageFailed:
		return ErrStorage
	case CodeNotAFile:
		return ErrNotAFile
	case CodeNotADirectory:
		return ErrNotADirectory
	case CodeInvalidPath:
		return ErrInvalidPath
	case CodeRateLimited:
		return ErrRateLimited
	}

	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return ErrServer
}

// handleAPIError turns a transport error or an error response into a wrapped
// sentinel that still carries the *APIError when the server answered.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("sdk: %s: %w: %w", operation, ErrTransport, requestErr)
	}

	if !resp.IsErrorState() {
		return nil
	}

	apiErr, ok := resp.ErrorResult().(*APIError)
	if !ok || apiErr == nil || apiErr.Code == "" {
		apiErr = NewAPIError(resp.GetStatusCode(), CodeUnknownError, resp.Status)
	}
	apiErr.Status = resp.GetStatusCode()

	return wrapAPIError(operation, apiErr)
}

func wrapAPIError(operation string, apiErr *APIError) error {
	return fmt.Errorf("sdk: %s: %w: %w", operation, apiErr.kind(), apiErr)
}
