package e2e

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/pkg/engine"
	"github.com/assay-dev/assay/pkg/models"
)

func TestRateLimitIsRetriedToSuccess(t *testing.T) {
	var calls atomic.Int32
	analyzer := NewScriptedAnalyzer()
	analyzer.ScreeningFn = func(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error) {
		if calls.Add(1) < 3 {
			return nil, fmt.Errorf("429 too many requests")
		}
		return FavorableScreening(), nil
	}
	app := NewTestApp(t, WithAnalyzer(analyzer))

	frames, done := app.RunToCompletion(t, ticketProblem)

	assert.Equal(t, models.RunCompleted, done.Status)
	assert.Equal(t, int32(3), calls.Load(), "two rate-limited attempts then success")
	assert.NotContains(t, events(frames), "pipeline:error", "recovered retries are not surfaced as errors")
}

func TestRetriesExhaustedFailsRun(t *testing.T) {
	analyzer := NewScriptedAnalyzer()
	analyzer.ScreeningFn = func(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error) {
		return nil, fmt.Errorf("503 service unavailable")
	}
	app := NewTestApp(t, WithAnalyzer(analyzer))

	stream := app.StartPipeline(t, map[string]any{"problem": ticketProblem})
	frames := stream.Collect(t, 15*time.Second)
	types := events(frames)

	assert.Contains(t, types, "pipeline:error")
	assert.NotContains(t, types, "pipeline:complete")
	require.Equal(t, "error", types[len(types)-1], "failed runs terminate the stream with an error frame")

	var failure ErrorPayload
	decodeFrame(t, frames[len(frames)-1], &failure)
	assert.Equal(t, engine.CodeMaxRetriesExceeded, failure.Code)
	assert.Contains(t, failure.Message, "gave up after")
}

func TestAuthenticationFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	analyzer := NewScriptedAnalyzer()
	analyzer.ScreeningFn = func(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error) {
		calls.Add(1)
		return nil, fmt.Errorf("401 invalid api key")
	}
	app := NewTestApp(t, WithAnalyzer(analyzer))

	stream := app.StartPipeline(t, map[string]any{"problem": ticketProblem})
	frames := stream.Collect(t, 15*time.Second)

	assert.Equal(t, int32(1), calls.Load(), "non-recoverable failures are not retried")
	var failure ErrorPayload
	decodeFrame(t, frames[len(frames)-1], &failure)
	assert.Equal(t, engine.CodeAuthentication, failure.Code)
}

func TestStageTimeoutFailsRun(t *testing.T) {
	cfg := FastConfig()
	cfg.Pipeline.Stages.Verdict.Timeout = 50 * time.Millisecond
	cfg.Pipeline.Stages.Verdict.MaxAttempts = 2

	analyzer := NewScriptedAnalyzer()
	analyzer.VerdictFn = func(ctx context.Context, input models.PipelineInput, screening *models.ScreeningOutput, dimensions map[models.DimensionID]models.DimensionAnalysis) (*models.VerdictResult, error) {
		select {
		case <-time.After(5 * time.Second):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	app := NewTestApp(t, WithConfig(cfg), WithAnalyzer(analyzer))

	stream := app.StartPipeline(t, map[string]any{"problem": ticketProblem})
	frames := stream.Collect(t, 15*time.Second)
	types := events(frames)

	// Screening and dimensions completed before the verdict stage died.
	assert.Contains(t, types, "screening:complete")
	assert.Contains(t, types, "verdict:computing")
	require.Equal(t, "error", types[len(types)-1])

	var failure ErrorPayload
	decodeFrame(t, frames[len(frames)-1], &failure)
	assert.Equal(t, engine.CodeMaxRetriesExceeded, failure.Code)
}

func TestFailFastAbortsSiblingDimensions(t *testing.T) {
	started := make(chan models.DimensionID, 7)
	analyzer := &PerDimensionAnalyzer{
		DimensionFn: func(ctx context.Context, id models.DimensionID) (models.DimensionAnalysis, error) {
			started <- id
			if id == models.DimensionDataAvailability {
				return models.DimensionAnalysis{}, fmt.Errorf("content blocked by safety policy")
			}
			select {
			case <-time.After(2 * time.Second):
				return FavorableDimension(id), nil
			case <-ctx.Done():
				return models.DimensionAnalysis{}, ctx.Err()
			}
		},
	}
	app := NewTestApp(t, WithAnalyzer(analyzer))

	stream := app.StartPipeline(t, map[string]any{"problem": ticketProblem})
	start := time.Now()
	frames := stream.Collect(t, 15*time.Second)
	types := events(frames)

	require.Equal(t, "error", types[len(types)-1])
	assert.Less(t, time.Since(start), 2*time.Second,
		"fail-fast cancels in-flight siblings instead of waiting them out")
	assert.Len(t, started, 7, "all dimensions were started before the abort")

	var failure ErrorPayload
	decodeFrame(t, frames[len(frames)-1], &failure)
	assert.Equal(t, engine.CodeContentFilter, failure.Code)
}
