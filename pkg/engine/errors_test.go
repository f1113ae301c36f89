package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    ErrorCode
		recoverable bool
	}{
		{"http 429", errors.New("429 Too Many Requests"), CodeRateLimit, true},
		{"rate limit text", errors.New("rate limit reached for model"), CodeRateLimit, true},
		{"quota", errors.New("insufficient quota"), CodeRateLimit, true},
		{"throttled", errors.New("request throttled upstream"), CodeRateLimit, true},
		{"connection refused", errors.New("dial tcp: ECONNREFUSED"), CodeNetworkError, true},
		{"dns", errors.New("lookup api.example.com: no such host"), CodeNetworkError, true},
		{"fetch failed", errors.New("fetch failed"), CodeNetworkError, true},
		{"bad gateway", errors.New("502 Bad Gateway"), CodeServiceUnavailable, true},
		{"service unavailable", errors.New("503 Service Unavailable"), CodeServiceUnavailable, true},
		{"timeout text", errors.New("request timed out after 30s"), CodeTimeout, true},
		{"unauthorized", errors.New("401 Unauthorized"), CodeAuthentication, false},
		{"invalid key", errors.New("invalid api key provided"), CodeAuthentication, false},
		{"content filter", errors.New("response blocked by safety system"), CodeContentFilter, false},
		{"schema", errors.New("failed to parse structured output"), CodeSchemaValidation, false},
		{"unmarshal", errors.New("json: cannot unmarshal string"), CodeSchemaValidation, false},
		{"aborted", errors.New("operation was aborted"), CodeCancelled, false},
		{"unknown", errors.New("something odd happened"), CodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ee := Classify(tt.err, models.StageScreening, 2)
			require.NotNil(t, ee)
			assert.Equal(t, tt.wantCode, ee.Code)
			assert.Equal(t, tt.recoverable, ee.Recoverable)
			assert.Equal(t, models.StageScreening, ee.Stage)
			assert.Equal(t, 2, ee.Attempt)
			assert.ErrorIs(t, ee, tt.err)
		})
	}
}

func TestClassifyContextErrors(t *testing.T) {
	ee := Classify(context.Canceled, models.StageVerdict, 1)
	assert.Equal(t, CodeCancelled, ee.Code)
	assert.False(t, ee.Recoverable)

	ee = Classify(context.DeadlineExceeded, models.StageVerdict, 1)
	assert.Equal(t, CodeTimeout, ee.Code)
	assert.True(t, ee.Recoverable)
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil, models.StageScreening, 1))
}

func TestClassifyPassesThroughExecutorError(t *testing.T) {
	orig := NewExecutorError(CodeContentFilter, "", "blocked", nil)
	wrapped := fmt.Errorf("stage failed: %w", orig)

	ee := Classify(wrapped, models.StageDimensions, 3)
	assert.Same(t, orig, ee)
	assert.Equal(t, models.StageDimensions, ee.Stage)
	assert.Equal(t, 3, ee.Attempt)
}

func TestClassifyDeterministic(t *testing.T) {
	err := errors.New("429 quota exceeded, timed out waiting")
	first := Classify(err, models.StageScreening, 1)
	for i := 0; i < 10; i++ {
		again := Classify(err, models.StageScreening, 1)
		assert.Equal(t, first.Code, again.Code)
		assert.Equal(t, first.Recoverable, again.Recoverable)
	}
}

func TestWrapMaxRetries(t *testing.T) {
	last := Classify(errors.New("503 Service Unavailable"), models.StageDimensions, 4)
	wrapped := wrapMaxRetries(last, models.StageDimensions, 4)

	assert.Equal(t, CodeMaxRetriesExceeded, wrapped.Code)
	assert.False(t, wrapped.Recoverable)
	assert.Equal(t, 4, wrapped.Attempt)
	assert.Same(t, last, wrapped.Cause())
}

func TestErrorCodeRecoverable(t *testing.T) {
	recoverable := map[ErrorCode]bool{
		CodeRateLimit:          true,
		CodeNetworkError:       true,
		CodeServiceUnavailable: true,
		CodeTimeout:            true,
		CodeAuthentication:     false,
		CodeContentFilter:      false,
		CodeSchemaValidation:   false,
		CodeCancelled:          false,
		CodeMaxRetriesExceeded: false,
		CodeUnknown:            false,
	}
	for code, want := range recoverable {
		assert.Equal(t, want, code.Recoverable(), "code %s", code)
	}
}
