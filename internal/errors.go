package internal

// AppError is the error envelope returned to API clients.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func NewAppError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

func (e *AppError) Error() string {
	return e.Message
}
