package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"calplanner/src-server/apperr"
)

func TestError(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.FeedUnavailable("can't fetch feed", map[string]any{
		"url": "https://example.com",
		"err": cause,
	})

	want := "feed unavailable: can't fetch feed | err: connection refused url: https://example.com"
	if err.Error() != want {
		t.Errorf("want %q, got %q", want, err.Error())
	}
	if err.Message() != "can't fetch feed" {
		t.Errorf("unexpected message %q", err.Message())
	}

	wrapped := fmt.Errorf("sync: %w", err)
	if !errors.Is(wrapped, apperr.ErrFeedUnavailable) {
		t.Error("kind should match through wrapping")
	}
	if errors.Is(wrapped, apperr.ErrNotFound) {
		t.Error("kind should not match another kind")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("cause should be reachable")
	}

	var appErr *apperr.Error
	if !errors.As(wrapped, &appErr) || appErr.Message() != "can't fetch feed" {
		t.Error("errors.As should find the *apperr.Error")
	}

	if got := apperr.NotFound("project not found", nil).Error(); got != "not found: project not found" {
		t.Errorf("unexpected %q", got)
	}
}
