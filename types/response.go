package types

import "time"

// ErrorDetail represents the error payload details
type ErrorDetail struct {
	Timestamp    string `json:"timestamp"`
	Path         string `json:"path"`
	ErrorMessage string `json:"error_message"`
	ErrorCode    int    `json:"error_code,omitempty"`
	// ErrorKind lets the dashboard tell a cancelled signature or a refused
	// draw from a failure.
	ErrorKind string `json:"error_kind,omitempty"`
	// RequestID matches the X-Request-ID header and the server log line.
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse represents the standardized error response structure
type ErrorResponse struct {
	StatusCode int         `json:"status_code"`
	IsSuccess  bool        `json:"is_success"`
	Error      ErrorDetail `json:"error,omitempty"`
}

// SuccessResponse represents the standardized success response structure
type SuccessResponse[T any] struct {
	StatusCode int  `json:"status_code"`
	IsSuccess  bool `json:"is_success"`
	Data       T    `json:"data,omitempty"`
}

// NewErrorResponse stamps an error body with the current time.
func NewErrorResponse(status int, path string, detail ErrorDetail) ErrorResponse {
	detail.Timestamp = time.Now().UTC().Format(time.RFC3339)
	detail.Path = path
	return ErrorResponse{StatusCode: status, Error: detail}
}
