package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrValidation:       400,
		ErrAuth:             403,
		ErrAccessDenied:     403,
		ErrNotFound:         404,
		ErrCapacityExceeded: 413,
		ErrQuotaExceeded:    429,
		ErrProcessFailure:   500,
		ErrInternal:         500,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s: expected %d, got %d", code, want, got)
		}
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("authorize: %w", NewAppError(ErrAuth, "no access"))
	if got := AsAppError(wrapped); got.Code != ErrAuth {
		t.Fatalf("expected %s, got %s", ErrAuth, got.Code)
	}
	if !IsCode(wrapped, ErrAuth) {
		t.Fatal("IsCode should see through wrapping")
	}
	if got := AsAppError(errors.New("boom")); got.Code != ErrInternal {
		t.Fatalf("expected %s for plain error, got %s", ErrInternal, got.Code)
	}
}
