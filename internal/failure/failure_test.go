package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewNilPassthrough(t *testing.T) {
	if err := New(IO, "read", "/a", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsThroughWrapping(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("outer: %w", New(Listing, "list", "/photos", base))

	if !Is(err, Listing) {
		t.Fatalf("expected Listing kind in %v", err)
	}
	if Is(err, IO) {
		t.Fatalf("did not expect IO kind in %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to be reachable")
	}
	if Retryable(err) {
		t.Fatalf("listing failure must not be retryable")
	}
	if !Retryable(New(Connection, "dial", "", base)) {
		t.Fatalf("connection failure must be retryable")
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(Persistence, "save", "index.json", errors.New("disk full"))
	want := "persistence: save index.json: disk full"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
	err = New(Connection, "dial", "", errors.New("refused"))
	if err.Error() != "connection: dial: refused" {
		t.Fatalf("got %q", err.Error())
	}
}
