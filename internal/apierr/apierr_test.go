package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsCarryStatusAndCode(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{NotFound("missing"), http.StatusNotFound, CodeNotFound},
		{Unauthorized("nope"), http.StatusForbidden, CodeUnauthorized},
		{InvalidState("bad move"), http.StatusConflict, CodeInvalidState},
		{LimitExceeded("quota"), http.StatusForbidden, CodeLimitExceeded},
		{Infrastructure(errors.New("db down")), http.StatusInternalServerError, CodeInfrastructure},
	}
	for _, tc := range cases {
		ae := From(tc.err)
		if ae == nil {
			t.Fatalf("From(%v): nil", tc.err)
		}
		if ae.Status != tc.status || ae.Code != tc.code {
			t.Fatalf("From(%v): got status=%d code=%s", tc.err, ae.Status, ae.Code)
		}
		if !HasCode(tc.err, tc.code) {
			t.Fatalf("HasCode(%v, %s) = false", tc.err, tc.code)
		}
	}
}

func TestFromWrapsUntypedAsInfrastructure(t *testing.T) {
	ae := From(errors.New("boom"))
	if ae.Code != CodeInfrastructure || ae.Status != http.StatusInternalServerError {
		t.Fatalf("untyped error: %+v", ae)
	}
	if From(nil) != nil {
		t.Fatalf("From(nil) should be nil")
	}
}

func TestHasCodeSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("while downloading: %w", LimitExceeded("quota reached"))
	if !HasCode(wrapped, CodeLimitExceeded) {
		t.Fatalf("HasCode should unwrap")
	}
	if HasCode(wrapped, CodeNotFound) {
		t.Fatalf("wrong code matched")
	}
}
