package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", NewValidationError("query", "is required"), ErrInvalidInput},
		{"not found", NewNotFoundError("document", "10.1234/x"), ErrNotFound},
		{"rate limit", NewRateLimitError("arxiv", 3*time.Second), ErrRateLimited},
		{"external api", NewExternalAPIError("pubmed", 502, "bad gateway", nil), ErrUpstream},
		{"missing credential", NewMissingCredentialError("google_scholar", "api key"), ErrMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestExternalAPIErrorPreservesCause(t *testing.T) {
	cause := fmt.Errorf("%w: connection reset", ErrUpstream)
	err := NewExternalAPIError("openaire", 0, "retries exhausted", cause)

	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, cause)
}

func TestExternalAPIErrorWithUnrelatedCauseStillMatchesUpstream(t *testing.T) {
	cause := errors.New("XML syntax error on line 3")
	err := NewExternalAPIError("arxiv", 200, "decoding response", cause)

	assert.ErrorIs(t, err, ErrUpstream,
		"an API failure is upstream even when the cause is a decode error")
	assert.ErrorIs(t, err, cause)
}

func TestErrorsSurviveWrapping(t *testing.T) {
	inner := NewNotFoundError("document", "PMC123")
	wrapped := fmt.Errorf("fetching from pubmed: %w", inner)

	assert.ErrorIs(t, wrapped, ErrNotFound)

	var nf *NotFoundError
	assert.True(t, errors.As(wrapped, &nf))
	assert.Equal(t, "PMC123", nf.ID)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "validation error: query: query is required",
		NewValidationError("query", "query is required").Error())
	assert.Equal(t, "document not found: 10.1234/x",
		NewNotFoundError("document", "10.1234/x").Error())
	assert.Equal(t, "source pubmed requires contact email",
		NewMissingCredentialError("pubmed", "contact email").Error())
	assert.Contains(t, NewRateLimitError("arxiv", 3*time.Second).Error(), "retry after 3s")
}
