package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Defaults(t *testing.T) {
	c := NewClassifier(DefaultClassifierRules())

	assert.Equal(t, KindAuthFailure, c.Classify(&UpstreamError{Status: http.StatusUnauthorized}))
	assert.Equal(t, KindAuthFailure, c.Classify(&UpstreamError{Status: http.StatusForbidden}))
	assert.Equal(t, KindQuotaExceeded, c.Classify(&UpstreamError{Status: http.StatusTooManyRequests}))
	assert.Equal(t, KindAuthFailure, c.Classify(&UpstreamError{Status: http.StatusBadRequest, Message: "API key not valid. Please pass a valid API key."}))
	assert.Equal(t, KindQuotaExceeded, c.Classify(errors.New("RESOURCE_EXHAUSTED: Quota exceeded for metric")))
	assert.Equal(t, KindTransport, c.Classify(&UpstreamError{Status: http.StatusInternalServerError, Message: "boom"}))
	assert.Equal(t, KindTransport, c.Classify(nil))
}

func TestClassifier_WrappedUpstream(t *testing.T) {
	c := NewClassifier(DefaultClassifierRules())
	err := fmt.Errorf("call: %w", &UpstreamError{Status: http.StatusTooManyRequests})

	assert.Equal(t, KindQuotaExceeded, c.Classify(err))
}

func TestClassifier_ConfigurablePatterns(t *testing.T) {
	notFound := &UpstreamError{Status: http.StatusNotFound, Message: "Requested entity was not found."}

	assert.Equal(t, KindTransport, NewClassifier(DefaultClassifierRules()).Classify(notFound))

	rules := DefaultClassifierRules()
	rules.AuthPatterns = append(rules.AuthPatterns, "  Requested Entity Was Not Found ")
	assert.Equal(t, KindAuthFailure, NewClassifier(rules).Classify(notFound))
}

func TestError_Is(t *testing.T) {
	err := &Error{Kind: KindQuotaExceeded, Op: "generate_plan", Attempts: 2, Exhausted: true}

	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.ErrorIs(t, err, ErrAllCredentialsFailed)
	assert.NotErrorIs(t, err, ErrAuthFailure)
	assert.Contains(t, err.Error(), "after 2 attempts")

	single := &Error{Kind: KindMalformedResponse, Op: "regenerate_diet", Err: errors.New("bad json")}
	assert.NotErrorIs(t, single, ErrAllCredentialsFailed)
	assert.Equal(t, KindMalformedResponse, KindOf(fmt.Errorf("wrapped: %w", single)))
	assert.Equal(t, KindTransport, KindOf(errors.New("other")))
}

func TestErrorKind_Rotatable(t *testing.T) {
	assert.True(t, KindAuthFailure.Rotatable())
	assert.True(t, KindQuotaExceeded.Rotatable())
	assert.False(t, KindMalformedResponse.Rotatable())
	assert.False(t, KindTransport.Rotatable())
	assert.False(t, KindNoCredentials.Rotatable())
}
