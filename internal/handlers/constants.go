package handlers

const (
	FlashCookieName = "flash"

	ErrInvalidFormData       = "Invalid form data"
	ErrUnauthorized          = "Unauthorized"
	ErrInternalServerError   = "Internal server error"
	ErrInternalServerErrorUC = "Internal Server Error"
	ErrNotFound              = "Not found"
	ErrTooManyRequests       = "Too many requests. Please try again later."
	ErrInvalidCSRFToken      = "Invalid or missing CSRF token"
)
