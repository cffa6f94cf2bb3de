package extraction

import (
	"errors"
	"fmt"
	"regexp"

	"google.golang.org/api/googleapi"
)

// Kind classifies an extraction failure into one of the categories surfaced
// to callers.
type Kind int

const (
	KindOther Kind = iota
	KindMissingCredential
	KindImageLoad
	KindRateLimited
	KindServer
	KindNetwork
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing credential"
	case KindImageLoad:
		return "image load failed"
	case KindRateLimited:
		return "rate limited"
	case KindServer:
		return "server error"
	case KindNetwork:
		return "network error"
	case KindInvalidResponse:
		return "invalid response"
	}
	return "request failed"
}

// Error is a classified extraction failure.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the failure is transient enough to be worth
// retrying.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServer, KindNetwork:
		return true
	}
	return false
}

// statusError carries an HTTP-equivalent status code from a model backend
// that does not surface googleapi errors.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("model backend error (status %d): %s", e.code, e.body)
}

var networkErrPattern = regexp.MustCompile(`(?i)network|timeout|connection|dial|broken pipe`)

// classify maps an arbitrary model-call error onto the closed taxonomy.
// Status-code ranges take precedence over message sniffing.
func classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	code := 0
	var gerr *googleapi.Error
	var serr *statusError
	switch {
	case errors.As(err, &gerr):
		code = gerr.Code
	case errors.As(err, &serr):
		code = serr.code
	}

	switch {
	case code == 429:
		return &Error{Kind: KindRateLimited, cause: err}
	case code >= 500:
		return &Error{Kind: KindServer, cause: err}
	case code != 0:
		return &Error{Kind: KindOther, cause: err}
	}

	if networkErrPattern.MatchString(err.Error()) {
		return &Error{Kind: KindNetwork, cause: err}
	}
	return &Error{Kind: KindOther, cause: err}
}
