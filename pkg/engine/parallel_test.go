package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/pkg/models"
)

func parallelCfg() StepConfig {
	return StepConfig{Stage: models.StageSecondary, Timeout: time.Second, Retry: fastRetry(1)}
}

func TestRunAllPreservesSubmissionOrder(t *testing.T) {
	fns := []StepFunc[int]{
		func(ctx context.Context) (int, error) {
			time.Sleep(30 * time.Millisecond) // finishes last
			return 0, nil
		},
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 2, nil
		},
	}

	settled := RunAll(context.Background(), parallelCfg(), false, fns)
	require.Len(t, settled, 3)
	for i, s := range settled {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, StatusFulfilled, s.Status)
		assert.Equal(t, i, s.Value)
	}
}

func TestRunAllRejectionDoesNotAffectSiblings(t *testing.T) {
	fns := []StepFunc[string]{
		func(ctx context.Context) (string, error) { return "", errors.New("401 Unauthorized") },
		func(ctx context.Context) (string, error) {
			time.Sleep(20 * time.Millisecond)
			return "b", nil
		},
	}

	settled := RunAll(context.Background(), parallelCfg(), false, fns)
	require.Len(t, settled, 2)
	assert.Equal(t, StatusRejected, settled[0].Status)
	assert.Equal(t, CodeAuthentication, settled[0].Err.Code)
	assert.Equal(t, StatusFulfilled, settled[1].Status)
	assert.Equal(t, "b", settled[1].Value)
}

func TestRunAllFailFastCancelsSiblings(t *testing.T) {
	slowStarted := make(chan struct{})
	fns := []StepFunc[string]{
		func(ctx context.Context) (string, error) {
			<-slowStarted
			return "", errors.New("content blocked by safety filter")
		},
		func(ctx context.Context) (string, error) {
			close(slowStarted)
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	settled := RunAll(context.Background(), parallelCfg(), true, fns)
	require.Len(t, settled, 2)
	assert.Equal(t, StatusRejected, settled[0].Status)
	assert.Equal(t, CodeContentFilter, settled[0].Err.Code)
	assert.Equal(t, StatusRejected, settled[1].Status)
	assert.Equal(t, CodeCancelled, settled[1].Err.Code)
}

func TestRunAllEmpty(t *testing.T) {
	settled := RunAll[string](context.Background(), parallelCfg(), true, nil)
	assert.Empty(t, settled)
}

func TestRunAllParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	fns := []StepFunc[int]{
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}
	settled := RunAll(ctx, parallelCfg(), false, fns)
	require.Len(t, settled, 2)
	for _, s := range settled {
		assert.Equal(t, StatusRejected, s.Status)
		assert.Equal(t, CodeCancelled, s.Err.Code)
	}
}
