package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/pkg/models"
)

func newTestManager(analyzer Analyzer) *Manager {
	return NewManager(analyzer, testConfig(), nil, quietLogger())
}

func waitDone(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestManagerStartHappyPath(t *testing.T) {
	m := newTestManager(&stubAnalyzer{})
	run, err := m.Start(testInput())
	require.NoError(t, err)

	_, parseErr := uuid.Parse(run.ID())
	assert.NoError(t, parseErr, "run id is a uuid")

	events := drainEvents(run)
	waitDone(t, run)

	require.NotEmpty(t, events)
	assert.Equal(t, EventPipelineStart, events[0].Type, "pipeline:start is first")
	assert.Equal(t, EventPipelineComplete, events[len(events)-1].Type)
	for _, e := range events {
		assert.Equal(t, run.ID(), e.RunID)
	}

	result := run.Result()
	require.NotNil(t, result)
	assert.Equal(t, models.ResultSuccess, result.Status)
	assert.Equal(t, run.ID(), result.RunID)
}

func TestManagerStatusUnknownRun(t *testing.T) {
	m := newTestManager(&stubAnalyzer{})
	_, err := m.Status(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestManagerSuspendAndResumeInMemory(t *testing.T) {
	answered := false
	analyzer := &stubAnalyzer{
		screeningFn: func(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error) {
			out := happyScreening()
			if len(answers) == 0 {
				out.ClarifyingQuestions = []models.FollowUpQuestion{blockingQuestion("q1")}
			} else {
				answered = true
			}
			return out, nil
		},
	}

	m := newTestManager(analyzer)
	run, err := m.Start(testInput())
	require.NoError(t, err)
	drainEvents(run)
	waitDone(t, run)
	require.Equal(t, models.ResultSuspended, run.Result().Status)

	view, err := m.Status(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, models.RunSuspended, view.Status)
	assert.Equal(t, []string{"q1"}, view.PendingQuestions)
	assert.Equal(t, 10, view.Progress)

	resumed, err := m.Resume(context.Background(), run.ID(), []models.UserAnswer{
		{QuestionID: "q1", Answer: "yes", Source: models.QuestionFromScreening},
	})
	require.NoError(t, err)
	assert.Equal(t, run.ID(), resumed.ID(), "snapshot resume keeps the run id")

	events := drainEvents(resumed)
	waitDone(t, resumed)

	assert.Equal(t, EventPipelineResumed, events[0].Type)
	assert.Equal(t, EventAnswerReceived, events[1].Type)
	assert.Equal(t, EventPipelineComplete, events[len(events)-1].Type)

	result := resumed.Result()
	assert.Equal(t, models.ResultSuccess, result.Status)
	assert.False(t, answered, "screening is not re-executed on snapshot resume")
	require.Len(t, result.AnsweredQuestions, 1)
	assert.Equal(t, "q1", result.AnsweredQuestions[0].QuestionID)
	assert.Empty(t, result.PendingQuestions, "answered blocking questions do not re-suspend")
}

func TestManagerResumeRequiresSuspended(t *testing.T) {
	m := newTestManager(&stubAnalyzer{})
	run, err := m.Start(testInput())
	require.NoError(t, err)
	drainEvents(run)
	waitDone(t, run)

	_, err = m.Resume(context.Background(), run.ID(), []models.UserAnswer{{QuestionID: "q1", Answer: "x"}})
	assert.ErrorIs(t, err, ErrRunNotSuspended)

	_, err = m.Resume(context.Background(), uuid.NewString(), nil)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestManagerResumeStateless(t *testing.T) {
	analyzer := &stubAnalyzer{
		screeningFn: func(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error) {
			out := happyScreening()
			if len(answers) == 0 {
				out.ClarifyingQuestions = []models.FollowUpQuestion{blockingQuestion("q1")}
			}
			return out, nil
		},
	}

	m := newTestManager(analyzer)
	original, err := m.Start(testInput())
	require.NoError(t, err)
	drainEvents(original)
	waitDone(t, original)
	require.Equal(t, models.ResultSuspended, original.Result().Status)

	input := testInput()
	input.PreAppliedAnswers = []models.UserAnswer{
		{QuestionID: "q1", Answer: "yes", Source: models.QuestionFromScreening, Timestamp: 1},
	}
	restarted, err := m.ResumeStateless(input, original.ID())
	require.NoError(t, err)
	assert.NotEqual(t, original.ID(), restarted.ID(), "stateless restart gets a fresh run id")

	drainEvents(restarted)
	waitDone(t, restarted)
	assert.Equal(t, models.ResultSuccess, restarted.Result().Status)
}

func TestManagerCancelIdempotent(t *testing.T) {
	started := make(chan struct{})
	analyzer := &stubAnalyzer{
		screeningFn: func(ctx context.Context, input models.PipelineInput, answers []models.UserAnswer) (*models.ScreeningOutput, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	m := newTestManager(analyzer)
	run, err := m.Start(testInput())
	require.NoError(t, err)
	<-started

	assert.True(t, m.Cancel(run.ID()), "first cancel reports active")
	assert.False(t, m.Cancel(run.ID()), "second cancel is a no-op")

	events := drainEvents(run)
	waitDone(t, run)

	view, err := m.Status(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, models.RunCancelled, view.Status)

	errCount := 0
	for _, e := range events {
		if e.Type == EventPipelineError {
			errCount++
			payload := e.Payload.(PipelineErrorPayload)
			assert.Equal(t, CodeCancelled, payload.Code)
		}
	}
	assert.Equal(t, 1, errCount, "cancellation is reported exactly once")
	assert.Equal(t, models.ResultCancelled, run.Result().Status)
}

func TestManagerCancelUnknownRun(t *testing.T) {
	m := newTestManager(&stubAnalyzer{})
	assert.False(t, m.Cancel(uuid.NewString()))
}

func TestManagerSubscriberDisconnectThenCancel(t *testing.T) {
	inDimensions := make(chan struct{})
	analyzer := &dimStubAnalyzer{
		dimFn: func(ctx context.Context, id models.DimensionID) (models.DimensionAnalysis, error) {
			select {
			case inDimensions <- struct{}{}:
			default:
			}
			select {
			case <-ctx.Done():
				return models.DimensionAnalysis{}, ctx.Err()
			case <-time.After(5 * time.Second):
				return favorableDimension(id), nil
			}
		},
	}

	m := newTestManager(analyzer)
	run, err := m.Start(testInput())
	require.NoError(t, err)

	go func() {
		for range run.Events() {
		}
	}()
	<-inDimensions

	// Transport notices the disconnect and cancels the run.
	run.Unsubscribe()
	require.True(t, m.Cancel(run.ID()))
	waitDone(t, run)

	view, err := m.Status(context.Background(), run.ID())
	require.NoError(t, err)
	assert.Equal(t, models.RunCancelled, view.Status)
}

func TestManagerCleanup(t *testing.T) {
	m := newTestManager(&stubAnalyzer{})
	run, err := m.Start(testInput())
	require.NoError(t, err)
	drainEvents(run)
	waitDone(t, run)

	m.Cleanup(run.ID())
	_, err = m.Status(context.Background(), run.ID())
	assert.ErrorIs(t, err, ErrRunNotFound)

	m.Cleanup(run.ID()) // second cleanup is harmless
}

func TestManagerSweepEvictsSettledRuns(t *testing.T) {
	cfg := testConfig()
	cfg.Retention.RunTTL = time.Millisecond
	cfg.Retention.SweepInterval = 5 * time.Millisecond
	m := NewManager(&stubAnalyzer{}, cfg, nil, quietLogger())

	run, err := m.Start(testInput())
	require.NoError(t, err)
	drainEvents(run)
	waitDone(t, run)

	m.StartSweeper(context.Background())
	defer m.StopSweeper()

	require.Eventually(t, func() bool {
		_, ok := m.Get(run.ID())
		return !ok
	}, time.Second, 5*time.Millisecond)
}
