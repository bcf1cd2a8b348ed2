package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound(CodeRideNotFound, "ride not found"), http.StatusNotFound},
		{"forbidden", Forbidden(CodeOwnRide, "own ride"), http.StatusForbidden},
		{"conflict", Conflict(CodeRideFull, "full"), http.StatusConflict},
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"wrapped conflict", fmt.Errorf("book: %w", Conflict(CodeAlreadyBooked, "booked")), http.StatusConflict},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"nil", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsMatchesKindAndCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Conflict(CodeRideFull, "ride is full"))

	if !errors.Is(err, ErrConflict) {
		t.Fatal("expected kind match against ErrConflict")
	}
	if !errors.Is(err, Conflict(CodeRideFull, "")) {
		t.Fatal("expected code match")
	}
	if errors.Is(err, Conflict(CodeAlreadyBooked, "")) {
		t.Fatal("unexpected match on different code")
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatal("unexpected match on different kind")
	}
}

func TestFromWrapsUnknownAsRetryableInternal(t *testing.T) {
	appErr := From(errors.New("socket closed"))
	if appErr.Kind != KindInternal {
		t.Fatalf("kind = %s, want internal", appErr.Kind)
	}
	if !appErr.Retryable() {
		t.Fatal("internal errors should be retryable")
	}
	if Conflict(CodeRideFull, "full").Retryable() {
		t.Fatal("conflicts are not retryable")
	}
}
