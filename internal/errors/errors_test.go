package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NewValidationError("Missing prompt"), http.StatusBadRequest},
		{NewNotFoundError("Chat not found", nil), http.StatusNotFound},
		{NewUpstreamError("model call failed", fmt.Errorf("OpenRouter API错误(401): no auth")), http.StatusInternalServerError},
		{NewAppError(ErrorTypeTimeout, "model call timed out", nil), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NewNotFoundError("Character not found", nil)), http.StatusNotFound},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestPublicMessageKeepsUpstreamText(t *testing.T) {
	err := WrapError(NewUpstreamError("model call failed", fmt.Errorf("rate limited")), "chat", ErrorTypeError)
	if got := PublicMessage(err); got != "rate limited" {
		t.Fatalf("PublicMessage = %q", got)
	}
	if !IsUpstreamError(err) {
		t.Fatal("wrapped upstream error lost its type")
	}
	if got := PublicMessage(NewNotFoundError("Scenario not found", nil)); got != "Scenario not found" {
		t.Fatalf("PublicMessage = %q", got)
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError(nil, "x", ErrorTypeError) != nil {
		t.Fatal("WrapError(nil) should be nil")
	}
}
