// Package apperr classifies the failures of the order webhook flow and maps
// them to HTTP statuses.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindAuthenticationFailed    Kind = "authentication_failed"
	KindConfigurationMissing    Kind = "configuration_missing"
	KindMalformedPayload        Kind = "malformed_payload"
	KindAmbiguousMetafieldState Kind = "ambiguous_metafield_state"
	KindRemoteRejected          Kind = "remote_rejected"
	KindRemoteQueryFailed       Kind = "remote_query_failed"
	KindRemoteUpsertFailed      Kind = "remote_upsert_failed"
	KindInternal                Kind = "internal"
)

// Error is the single error type produced by the flow. RemoteStatus and
// RemoteBody are set when the failure came back from Shopify; Details holds
// kind-specific data (user errors, conflicting metafields, missing settings).
type Error struct {
	Kind         Kind
	Message      string
	Cause        error
	RemoteStatus int
	RemoteBody   string
	Details      any
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.RemoteStatus != 0 {
		msg += fmt.Sprintf(" (status %d)", e.RemoteStatus)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Remote builds a failure of a call to Shopify. kind should be
// KindRemoteQueryFailed or KindRemoteUpsertFailed.
func Remote(kind Kind, msg string, status int, body []byte, cause error) *Error {
	return &Error{
		Kind:         kind,
		Message:      msg,
		Cause:        cause,
		RemoteStatus: status,
		RemoteBody:   string(body),
	}
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

var kindToStatus = map[Kind]int{
	KindAuthenticationFailed:    http.StatusUnauthorized,
	KindConfigurationMissing:    http.StatusInternalServerError,
	KindMalformedPayload:        http.StatusInternalServerError,
	KindAmbiguousMetafieldState: http.StatusBadRequest,
	KindRemoteRejected:          http.StatusBadRequest,
	KindRemoteQueryFailed:       http.StatusInternalServerError,
	KindRemoteUpsertFailed:      http.StatusInternalServerError,
}

func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// IsTimeout reports whether err was caused by an expired or canceled context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
