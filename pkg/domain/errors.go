package domain

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrPasteNotFound      = NewErr("PASTE_NOT_FOUND", "This paste does not exist or has been deleted", http.StatusNotFound)
	ErrPasteExpired       = NewErr("PASTE_EXPIRED", "Paste has expired", http.StatusNotFound)
	ErrContentRequired    = NewErr("CONTENT_REQUIRED", "Content is required", http.StatusBadRequest)
	ErrPasteTooLarge      = NewErr("PASTE_TOO_LARGE", "Paste too large", http.StatusBadRequest)
	ErrInvalidExpiration  = NewErr("INVALID_EXPIRATION", "Invalid expiration unit", http.StatusBadRequest)
	ErrInvalidRequest     = NewErr("INVALID_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrDuplicateKey       = NewErr("DUPLICATE_KEY", "Identifier already exists", http.StatusConflict)
	ErrDuplicateUsername  = NewErr("DUPLICATE_USERNAME", "Username already taken", http.StatusBadRequest)
	ErrInvalidCredentials = NewErr("INVALID_CREDENTIALS", "Invalid credentials", http.StatusBadRequest)
	ErrAuthRequired       = NewErr("AUTH_REQUIRED", "Authentication required", http.StatusUnauthorized)
	ErrRateLimitExceeded  = NewErr("RATE_LIMIT_EXCEEDED", "Rate limit exceeded", http.StatusTooManyRequests)
	ErrStore              = NewErr("STORE_ERROR", "Error talking to the data store", http.StatusInternalServerError)
	ErrInternalServer     = NewErr("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError)
)

type Err struct {
	Code   string `json:"code"`
	Msg    string `json:"message"`
	Status int    `json:"-"`
}

func (e *Err) Error() string { return e.Msg }

func NewErr(code, msg string, status int) *Err {
	return &Err{Code: code, Msg: msg, Status: status}
}

// ErrResp is the wire shape for every failure: {"success":false,"message":...}.
type ErrResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ToResp(err error) ErrResp {
	if e, ok := err.(*Err); ok {
		return ErrResp{Success: false, Message: e.Msg}
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return ErrResp{Success: false, Message: e.Msg}
	}
	return ErrResp{Success: false, Message: "Internal server error"}
}

func Status(err error) int {
	if e, ok := err.(*Err); ok {
		return e.Status
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
