// Package apperr defines the error taxonomy shared by the lead lifecycle
// engine, its HTTP handlers and the admin CLI.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthorized            Kind = "unauthorized"
	KindForbidden               Kind = "forbidden"
	KindNotFound                Kind = "not_found"
	KindDuplicateKey            Kind = "duplicate_key"
	KindAgentMappingMissing     Kind = "agent_mapping_missing"
	KindValidation              Kind = "validation"
	KindStateTransitionRejected Kind = "state_transition_rejected"
	KindExternalAdapterFailure  Kind = "external_adapter_failure"
	KindInternal                Kind = "internal"
)

// Error is the single error type surfaced by services. Only the fields that
// belong to its Kind are populated.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	Field           string `json:"field,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ExistingID      int    `json:"existing_id,omitempty"`
	ExistingDisplay string `json:"existing_display,omitempty"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	Adapter         string `json:"adapter,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same Kind, so callers can write
// errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// ErrStale is returned by stores when an optimistic version check fails.
// Services retry the read-modify-write; it never reaches a client.
var ErrStale = errors.New("record modified concurrently")

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthorized            = &Error{Kind: KindUnauthorized}
	ErrForbidden               = &Error{Kind: KindForbidden}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrDuplicateKey            = &Error{Kind: KindDuplicateKey}
	ErrAgentMappingMissing     = &Error{Kind: KindAgentMappingMissing}
	ErrValidation              = &Error{Kind: KindValidation}
	ErrStateTransitionRejected = &Error{Kind: KindStateTransitionRejected}
	ErrExternalAdapterFailure  = &Error{Kind: KindExternalAdapterFailure}
	ErrInternal                = &Error{Kind: KindInternal}
)

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// DuplicateKey names the conflicting row so the operator can choose
// update-over-create on the next attempt.
func DuplicateKey(field string, existingID int, existingDisplay string) *Error {
	return &Error{
		Kind:            KindDuplicateKey,
		Message:         fmt.Sprintf("a lead with this %s already exists: #%d %s", field, existingID, existingDisplay),
		Field:           field,
		ExistingID:      existingID,
		ExistingDisplay: existingDisplay,
	}
}

func AgentMappingMissing(externalUserID, username string) *Error {
	return &Error{
		Kind:    KindAgentMappingMissing,
		Message: fmt.Sprintf("no agent mapped for dialer user %q / username %q", externalUserID, username),
	}
}

func Validation(field, reason string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf("%s: %s", field, reason),
		Field:   field,
		Reason:  reason,
	}
}

func TransitionRejected(from, to, reason string) *Error {
	return &Error{
		Kind:    KindStateTransitionRejected,
		Message: fmt.Sprintf("cannot move lead from %s to %s: %s", from, to, reason),
		From:    from,
		To:      to,
		Reason:  reason,
	}
}

func AdapterFailure(adapter string, cause error) *Error {
	return &Error{
		Kind:    KindExternalAdapterFailure,
		Message: adapter + " adapter failed",
		Adapter: adapter,
		cause:   cause,
	}
}

func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}

// From coerces any error into an *Error, wrapping unknown errors as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal error", err)
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	return From(err).Kind
}

// HTTPStatus maps a Kind onto the status code the handlers respond with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindAgentMappingMissing:
		return http.StatusNotFound
	case KindDuplicateKey, KindStateTransitionRejected:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindExternalAdapterFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
