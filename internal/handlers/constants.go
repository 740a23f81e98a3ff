package handlers

const (
	ErrInvalidFormData     = "Invalid form data"
	ErrInvalidCSRFToken    = "Invalid CSRF token"
	ErrTooManyRequests     = "Too many requests. Please slow down!"
	ErrInternalServerError = "Internal server error"
	ErrTopicNotFound       = "Unknown topic"

	appTitle = "Nia - Your Learning Friend"
)
