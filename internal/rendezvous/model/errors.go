package model

import "fmt"

// Code enumerates the Coordinator error kinds from spec §7. The Transport
// Front is the sole translator from Code to a status code; nothing downstream
// of the Coordinator should need to know about HTTP at all.
type Code string

const (
	CodeInvalidToken        Code = "invalid_token"
	CodeMailboxNotFound     Code = "mailbox_not_found"
	CodeSessionExpired      Code = "session_expired"
	CodeAlreadyPaired       Code = "already_paired"
	CodeNoPeer              Code = "no_peer"
	CodeTokenConflict       Code = "token_conflict"
	CodeUnauthorizedSession Code = "unauthorized_session"
	CodeValidation          Code = "validation_error"
	CodeInternal            Code = "internal"
)

// Error is the tagged result every Coordinator operation returns on failure.
// The message is deliberately terse and must never leak store keys, tokens,
// or ciphertext.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func ErrInvalidToken() *Error    { return NewError(CodeInvalidToken, "rendezvous token unknown or already consumed") }
func ErrMailboxNotFound() *Error { return NewError(CodeMailboxNotFound, "mailbox not found") }
func ErrSessionExpired() *Error  { return NewError(CodeSessionExpired, "mailbox pair has expired") }
func ErrAlreadyPaired() *Error   { return NewError(CodeAlreadyPaired, "mailbox already has a peer") }
func ErrNoPeer() *Error          { return NewError(CodeNoPeer, "mailbox has no linked peer yet") }
func ErrTokenConflict() *Error   { return NewError(CodeTokenConflict, "rendezvous token already in use") }
func ErrUnauthorizedSession() *Error {
	return NewError(CodeUnauthorizedSession, "session token invalid or unknown")
}
func ErrValidation(message string) *Error { return NewError(CodeValidation, message) }
func ErrInternal(cause error) *Error {
	msg := "internal error"
	if cause != nil {
		// [PRIVACY] never surface the underlying cause to callers; it may
		// contain store keys. Callers that need it should log it themselves.
		_ = cause
	}
	return NewError(CodeInternal, msg)
}
