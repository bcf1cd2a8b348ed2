package utils

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	EarthRadiusKM = 6371.0
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken   = "invalid token"
	ErrTokenExpired   = "token expired"
	ErrInternalServer = "internal server error"
	ErrUnauthorized   = "unauthorized"
)

// gin context keys set by the auth middleware.
const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextRequestID = "request_id"
)
