package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("create lead: %w", DuplicateKey("phone", 7, "Alice Brown"))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected wrapped duplicate key to match sentinel")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate key must not match validation")
	}
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected errors.As to find *Error")
	}
	if ae.ExistingID != 7 || ae.ExistingDisplay != "Alice Brown" {
		t.Fatalf("unexpected existing row: %+v", ae)
	}
}

func TestFromWrapsForeignErrors(t *testing.T) {
	got := From(errors.New("boom"))
	if got.Kind != KindInternal {
		t.Fatalf("expected internal, got %s", got.Kind)
	}
	if !errors.Is(got, ErrInternal) {
		t.Fatalf("expected internal sentinel match")
	}
	if From(nil) != nil {
		t.Fatalf("From(nil) must be nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthorized:            http.StatusUnauthorized,
		KindForbidden:               http.StatusForbidden,
		KindNotFound:                http.StatusNotFound,
		KindAgentMappingMissing:     http.StatusNotFound,
		KindDuplicateKey:            http.StatusConflict,
		KindValidation:              http.StatusBadRequest,
		KindStateTransitionRejected: http.StatusConflict,
		KindExternalAdapterFailure:  http.StatusBadGateway,
		KindInternal:                http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestAdapterFailureUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := AdapterFailure("calendar", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if err.Adapter != "calendar" {
		t.Fatalf("unexpected adapter %q", err.Adapter)
	}
}
