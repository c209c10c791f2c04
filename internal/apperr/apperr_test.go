package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := Forbidden("Cancellation period expired").With("days_since_order", 3)
	wrapped := fmt.Errorf("cancel: %w", base)

	if KindOf(wrapped) != KindForbidden {
		t.Fatalf("kind=%s", KindOf(wrapped))
	}
	var e *Error
	if !errors.As(wrapped, &e) || e.Details["days_since_order"] != 3 {
		t.Fatalf("details lost: %+v", e)
	}
}

func TestWith_DoesNotMutateOriginal(t *testing.T) {
	orig := BadRequest("x").With("a", 1)
	_ = orig.With("b", 2)
	if _, ok := orig.Details["b"]; ok {
		t.Fatalf("With mutated the receiver")
	}
}

func TestKindOf_Plain(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("plain error must be internal")
	}
	if !Is(Internal("gateway", errors.New("timeout")), KindInternal) {
		t.Fatalf("Is mismatch")
	}
}
