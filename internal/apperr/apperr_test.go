package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errSlotTaken = New(KindConflict, "slot not available")

func TestKindOfFollowsWrapping(t *testing.T) {
	wrapped := fmt.Errorf("appointments: book: %w", errSlotTaken)
	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("expected conflict, got %s", got)
	}
	if !errors.Is(wrapped, errSlotTaken) {
		t.Fatal("expected errors.Is to match sentinel")
	}
	if Message(wrapped) != "slot not available" {
		t.Fatalf("unexpected message %q", Message(wrapped))
	}
}

func TestUnclassifiedErrorsAreInternal(t *testing.T) {
	err := errors.New("pq: connection reset")
	if KindOf(err) != KindInternal {
		t.Fatal("expected internal kind")
	}
	if Message(err) != "internal server error" {
		t.Fatalf("internal details leaked: %q", Message(err))
	}
	if Is(nil, KindInternal) {
		t.Fatal("nil error should carry no kind")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindUpstream, "payment gateway unavailable", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "payment gateway unavailable: dial tcp: timeout" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:         http.StatusNotFound,
		KindConflict:         http.StatusConflict,
		KindInvalidSignature: http.StatusBadRequest,
		KindValidation:       http.StatusBadRequest,
		KindForbidden:        http.StatusForbidden,
		KindUnauthorized:     http.StatusUnauthorized,
		KindUpstream:         http.StatusBadGateway,
		KindInternal:         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("%s: expected %d, got %d", kind, want, got)
		}
	}
}
