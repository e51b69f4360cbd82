package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the closed set of failure classes the rest of the app switches on.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindNoCredentials
	KindAuthFailure
	KindQuotaExceeded
	KindMalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoCredentials:
		return "no_credentials"
	case KindAuthFailure:
		return "auth_failure"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "transport"
	}
}

// Rotatable reports whether another credential might succeed.
func (k ErrorKind) Rotatable() bool {
	return k == KindAuthFailure || k == KindQuotaExceeded
}

var (
	ErrNoCredentials        = errors.New("no credentials configured")
	ErrAuthFailure          = errors.New("credential rejected")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrMalformedResponse    = errors.New("model returned an unusable response")
	ErrTransport            = errors.New("generation request failed")
	ErrAllCredentialsFailed = errors.New("all credentials failed")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNoCredentials:
		return ErrNoCredentials
	case KindAuthFailure:
		return ErrAuthFailure
	case KindQuotaExceeded:
		return ErrQuotaExceeded
	case KindMalformedResponse:
		return ErrMalformedResponse
	default:
		return ErrTransport
	}
}

// Error is a classified gateway failure. Exhausted is set when every
// credential in the pool was tried and rejected.
type Error struct {
	Kind      ErrorKind
	Op        string
	Attempts  int
	Exhausted bool
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gateway %s: %s", e.Op, e.Kind.sentinel())
	if e.Exhausted {
		msg = fmt.Sprintf("gateway %s: %s after %d attempts (last: %s)", e.Op, ErrAllCredentialsFailed, e.Attempts, e.Kind.sentinel())
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the kind sentinels and on ErrAllCredentialsFailed.
func (e *Error) Is(target error) bool {
	if target == ErrAllCredentialsFailed {
		return e.Exhausted
	}
	return target == e.Kind.sentinel()
}

// KindOf extracts the kind of a gateway error; anything else is transport.
func KindOf(err error) ErrorKind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindTransport
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// UpstreamError is what an adapter reports when the provider answered with
// an error. Status is zero when no HTTP response was received.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ClassifierRules maps upstream statuses and message fragments to kinds.
// Message matching is case-insensitive and wins over status matching.
type ClassifierRules struct {
	AuthStatuses  []int
	QuotaStatuses []int
	AuthPatterns  []string
	QuotaPatterns []string
}

func DefaultClassifierRules() ClassifierRules {
	return ClassifierRules{
		AuthStatuses:  []int{http.StatusUnauthorized, http.StatusForbidden},
		QuotaStatuses: []int{http.StatusTooManyRequests},
		AuthPatterns:  []string{"api key not valid", "invalid api key", "incorrect api key", "permission denied"},
		QuotaPatterns: []string{"quota", "rate limit", "resource_exhausted"},
	}
}

type Classifier struct {
	rules ClassifierRules
}

func NewClassifier(rules ClassifierRules) *Classifier {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	rules.AuthPatterns = lower(rules.AuthPatterns)
	rules.QuotaPatterns = lower(rules.QuotaPatterns)
	return &Classifier{rules: rules}
}

// Classify turns an adapter error into a kind. It runs once, at the adapter boundary.
func (c *Classifier) Classify(err error) ErrorKind {
	if err == nil {
		return KindTransport
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}

	msg := strings.ToLower(err.Error())
	status := 0
	var up *UpstreamError
	if errors.As(err, &up) {
		status = up.Status
		msg = strings.ToLower(up.Message + " " + msg)
	}

	for _, p := range c.rules.QuotaPatterns {
		if strings.Contains(msg, p) {
			return KindQuotaExceeded
		}
	}
	for _, p := range c.rules.AuthPatterns {
		if strings.Contains(msg, p) {
			return KindAuthFailure
		}
	}
	for _, s := range c.rules.QuotaStatuses {
		if status == s {
			return KindQuotaExceeded
		}
	}
	for _, s := range c.rules.AuthStatuses {
		if status == s {
			return KindAuthFailure
		}
	}
	return KindTransport
}
