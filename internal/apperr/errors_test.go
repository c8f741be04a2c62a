package apperr

import (
	"errors"
	"fmt"
	"testing"
)

var errSentinel = errors.New("sentinel")

func TestServiceErrorCodeAndUnwrap(t *testing.T) {
	err := NewServiceError("board.set_move", "load_failed", errSentinel)

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if serviceErr.Code() != "board.set_move.load_failed" {
		t.Fatalf("unexpected code %q", serviceErr.Code())
	}
	if !errors.Is(err, errSentinel) {
		t.Fatalf("expected cause to be preserved")
	}
	if err.Error() != "board.set_move.load_failed: sentinel" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestUserMessageFindsWrappedUserError(t *testing.T) {
	err := fmt.Errorf("import: %w", UserErrorf("skill %q must be 0..10 (got %d)", "索敵", 11))

	message, ok := UserMessage(err)
	if !ok {
		t.Fatalf("expected a user message")
	}
	if message != `skill "索敵" must be 0..10 (got 11)` {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestUserErrorfKeepsWrappedCause(t *testing.T) {
	err := UserErrorf("bad json: %w", errSentinel)
	if !errors.Is(err, errSentinel) {
		t.Fatalf("expected wrapped cause")
	}
	if _, ok := UserMessage(errSentinel); ok {
		t.Fatalf("plain errors carry no user message")
	}
}
