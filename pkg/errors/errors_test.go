package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCodeFollowsWrappedErrors(t *testing.T) {
	notFound := NewNotFoundError("card", "missing")
	wrapped := fmt.Errorf("lookup failed: %w", notFound)

	if got := StatusCode(wrapped); got != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", got)
	}
	if got := PublicMessage(wrapped); got != "card not found" {
		t.Fatalf("unexpected public message %q", got)
	}
}

func TestStatusCodeDefaults(t *testing.T) {
	if got := StatusCode(nil); got != http.StatusOK {
		t.Fatalf("expected 200 for nil error, got %d", got)
	}
	if got := StatusCode(stderrors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 for foreign error, got %d", got)
	}
}

func TestPublicMessageHidesServerErrors(t *testing.T) {
	err := NewServiceError("database exploded", "catalog", "load", stderrors.New("dial tcp"))
	if got := PublicMessage(err); got != "internal server error" {
		t.Fatalf("server error leaked: %q", got)
	}

	validation := NewValidationError("query must not be empty", "query", "")
	if got := PublicMessage(validation); got != "query must not be empty" {
		t.Fatalf("unexpected validation message %q", got)
	}
}

func TestCacheErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewCacheError("get failed", "get", "chat:answer:x", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected cache error to unwrap to its cause")
	}
	if err.Error() != "get failed: connection refused" {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}
