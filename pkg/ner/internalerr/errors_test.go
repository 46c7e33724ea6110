package internalerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := New(KindScoring, "empty token sequence")
	if !errors.Is(err, ErrScoring) {
		t.Error("Expected scoring error to match ErrScoring")
	}
	if errors.Is(err, ErrDecode) {
		t.Error("Scoring error should not match ErrDecode")
	}
}

func TestKindOfWrapped(t *testing.T) {
	inner := New(KindDecode, "no finite path")
	wrapped := fmt.Errorf("run: %w", inner)

	kind, ok := KindOf(wrapped)
	if !ok || kind != KindDecode {
		t.Errorf("Expected decode kind, got %q (ok=%v)", kind, ok)
	}

	kind, ok = KindOf(fmt.Errorf("load: %w", ErrConfiguration))
	if !ok || kind != KindConfiguration {
		t.Errorf("Expected configuration kind from sentinel, got %q", kind)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("Plain error should not be classified")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(KindTokenization, errors.New("bad byte"), "invalid UTF-8")
	want := "tokenization: invalid UTF-8: bad byte"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}
