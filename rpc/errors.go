package rpc

import "net/http"

// HandlerError is an error returned from a route handler, grounded on the
// apiserver's HandlerError (code + internal message + client-safe message).
type HandlerError struct {
	Code          int
	Message       string
	ClientMessage string
}

func (hErr *HandlerError) Error() string { return hErr.Message }

// NewHandlerError returns a HandlerError whose client message equals its
// internal message.
func NewHandlerError(code int, message string) *HandlerError {
	return &HandlerError{Code: code, Message: message, ClientMessage: message}
}

// NewInternalServerHandlerError hides the internal message from the client,
// returning only the generic 500 status text.
func NewInternalServerHandlerError(message string) *HandlerError {
	return &HandlerError{
		Code:          http.StatusInternalServerError,
		Message:       message,
		ClientMessage: http.StatusText(http.StatusInternalServerError),
	}
}
