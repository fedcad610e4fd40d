package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := Conflict("already_clocked_in", "already clocked in")
	wrapped := fmt.Errorf("clock in: %w", base)

	if KindOf(wrapped) != KindConflict {
		t.Fatalf("expected conflict through wrapping")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("expected plain errors to be internal")
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected errors.Is to find the sentinel")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%v.HTTPStatus() = %d, want %d", kind, got, want)
		}
	}
}

func TestFieldErrors(t *testing.T) {
	var fe FieldErrors
	if err := fe.Err(); err != nil {
		t.Fatalf("expected nil for no fields, got %v", err)
	}
	fe.Add("reason", "reason is required")
	fe.Add("reason", "ignored")
	var appErr *Error
	if !errors.As(fe.Err(), &appErr) || appErr.Kind != KindValidation || appErr.Fields["reason"] != "reason is required" {
		t.Fatalf("unexpected field error %v", fe.Err())
	}
}
