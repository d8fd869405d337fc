package xerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew_Message(t *testing.T) {
	err := New("boom")
	if err.Error() != "boom" {
		t.Fatalf("Error() = %q, want 'boom'", err.Error())
	}
}

func TestNewf_Formats(t *testing.T) {
	err := Newf("bad port %d", 99999)
	if err.Error() != "bad port 99999" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "ignored") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ignored %d", 1) != nil {
		t.Fatal("Wrapf(nil) should be nil")
	}
}

func TestWrap_MessageAndUnwrap(t *testing.T) {
	base := errors.New("base")
	err := Wrap(base, "context")
	if err.Error() != "context: base" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Fatal("wrapped error should match base via errors.Is")
	}
}

func TestWrapf_Formats(t *testing.T) {
	err := Wrapf(errors.New("eaddr"), "listen on %q", ":8000")
	want := `listen on ":8000": eaddr`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFrame_RecordsCaller(t *testing.T) {
	err := New("traced")
	fn, file, line, ok := Frame(err)
	if !ok {
		t.Fatal("Frame should resolve for New errors")
	}
	if !strings.Contains(file, "xerrors_test.go") {
		t.Fatalf("file = %q, want this test file", file)
	}
	if line == 0 || fn == "" {
		t.Fatalf("fn=%q line=%d, want non-zero position", fn, line)
	}
}

func TestFrame_PlainError(t *testing.T) {
	if _, _, _, ok := Frame(errors.New("plain")); ok {
		t.Fatal("Frame should not resolve for plain errors")
	}
}

func TestFrame_ThroughFmtWrap(t *testing.T) {
	inner := New("inner")
	outer := fmt.Errorf("outer: %w", inner)
	if _, _, _, ok := Frame(outer); !ok {
		t.Fatal("Frame should find the PC through fmt wrapping")
	}
}
