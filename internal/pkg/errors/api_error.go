package xerrors

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind is the structured category of a failed API call. User-facing
// messaging switches on Kind, never on the server's wording.
type Kind string

const (
	KindUnknown            Kind = "unknown"
	KindTransport          Kind = "transport"
	KindTimeout            Kind = "timeout"
	KindCanceled           Kind = "canceled"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindValidation         Kind = "validation"
	KindRateLimited        Kind = "rate_limited"
	KindServer             Kind = "server"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountNotFound    Kind = "account_not_found"
	KindEmailExists        Kind = "email_exists"
	KindSessionExpired     Kind = "session_expired"
)

// Machine-readable codes a server may put in the "code" field of an error body.
var codeKinds = map[string]Kind{
	"INVALID_CREDENTIALS": KindInvalidCredentials,
	"ACCOUNT_NOT_FOUND":   KindAccountNotFound,
	"USER_NOT_FOUND":      KindAccountNotFound,
	"EMAIL_EXISTS":        KindEmailExists,
	"USER_EXISTS":         KindEmailExists,
	"UNAUTHORIZED":        KindUnauthorized,
	"TOKEN_EXPIRED":       KindUnauthorized,
	"SESSION_EXPIRED":     KindSessionExpired,
	"FORBIDDEN":           KindForbidden,
	"NOT_FOUND":           KindNotFound,
	"CONFLICT":            KindConflict,
	"VALIDATION_FAILED":   KindValidation,
	"RATE_LIMITED":        KindRateLimited,
}

// APIError describes a failed call to the REST API, including transport
// failures where no response was received (StatusCode == 0).
type APIError struct {
	StatusCode int
	Kind       Kind
	Code       string
	Message    string
	Method     string
	Path       string
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.Method != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.Path)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "%d ", e.StatusCode)
	}
	b.WriteString(string(e.Kind))
	switch {
	case e.Message != "":
		b.WriteString(": ")
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is maps the error onto the package sentinels so callers can write
// errors.Is(err, xerrors.ErrUnauthorized) without caring about the Kind.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrInvalidInput, ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrInternal:
		return e.StatusCode >= http.StatusInternalServerError
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrTransport:
		return e.Kind == KindTransport || e.Kind == KindTimeout
	case ErrSessionExpired:
		return e.Kind == KindSessionExpired
	}
	return false
}

// IsUnauthorized reports whether err is an HTTP 401 from the API.
func IsUnauthorized(err error) bool {
	return Is(err, ErrUnauthorized)
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *APIError
	if As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// NewAPIError builds an APIError for a non-2xx response, classifying it from
// the structured code first and the status second.
func NewAPIError(method, path string, status int, code, message string) *APIError {
	e := &APIError{
		StatusCode: status,
		Code:       code,
		Message:    message,
		Method:     method,
		Path:       path,
	}
	if k, ok := codeKinds[strings.ToUpper(code)]; ok {
		e.Kind = k
		return e
	}
	e.Kind = kindForStatus(status)
	return e
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= http.StatusInternalServerError:
		return KindServer
	}
	return KindUnknown
}

// ClassifyLogin narrows a login failure into credential-level kinds. A
// server-supplied code always wins; the message heuristic only applies when
// the server sent none.
func ClassifyLogin(err error) error {
	var apiErr *APIError
	if !As(err, &apiErr) || apiErr.StatusCode == 0 {
		return err
	}
	if _, ok := codeKinds[strings.ToUpper(apiErr.Code)]; ok {
		return apiErr
	}
	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.StatusCode == http.StatusNotFound || strings.Contains(msg, "not found"):
		apiErr.Kind = KindAccountNotFound
	case apiErr.StatusCode == http.StatusUnauthorized || strings.Contains(msg, "invalid credentials"):
		apiErr.Kind = KindInvalidCredentials
	}
	return apiErr
}

// ClassifyRegister narrows a registration failure.
func ClassifyRegister(err error) error {
	var apiErr *APIError
	if !As(err, &apiErr) || apiErr.StatusCode == 0 {
		return err
	}
	if _, ok := codeKinds[strings.ToUpper(apiErr.Code)]; ok {
		return apiErr
	}
	if apiErr.StatusCode == http.StatusConflict || strings.Contains(strings.ToLower(apiErr.Message), "exists") {
		apiErr.Kind = KindEmailExists
	}
	return apiErr
}

// UserMessage returns a short, user-facing description for err's Kind.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindInvalidCredentials:
		return "Invalid email or password"
	case KindAccountNotFound:
		return "No account found for this email"
	case KindEmailExists:
		return "An account with this email already exists"
	case KindUnauthorized, KindSessionExpired:
		return "Your session has expired, please sign in again"
	case KindForbidden:
		return "You do not have permission to do this"
	case KindNotFound:
		return "Not found"
	case KindValidation:
		return "Some fields are invalid"
	case KindTimeout:
		return "The server took too long to respond"
	case KindTransport:
		return "Unable to reach the server"
	case KindRateLimited:
		return "Too many requests, try again later"
	}
	return "Something went wrong"
}
