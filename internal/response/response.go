package response

import "github.com/kalviumcommunity/FocusRoom/internal"

// APIResponse is the envelope every handler returns. RequestID echoes
// the correlation id assigned by the middleware so clients can quote it
// when reporting a failure.
type APIResponse struct {
	RequestID string             `json:"request_id,omitempty"`
	Data      interface{}        `json:"data,omitempty"`
	Meta      map[string]any     `json:"meta,omitempty"`
	Error     *internal.AppError `json:"error,omitempty"`
}

func Success(requestID string, data interface{}, meta map[string]any) APIResponse {
	return APIResponse{RequestID: requestID, Data: data, Meta: meta}
}

func Failure(requestID string, status int, msg string) APIResponse {
	return APIResponse{RequestID: requestID, Error: internal.NewAppError(status, msg)}
}
