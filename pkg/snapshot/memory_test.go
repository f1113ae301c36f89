package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/pkg/engine"
	"github.com/assay-dev/assay/pkg/models"
)

func sampleSnapshot(runID string) *engine.StateSnapshot {
	return &engine.StateSnapshot{
		RunID: runID,
		Input: models.PipelineInput{Problem: "Classify inbound support tickets into 12 categories."},
		Answers: []models.UserAnswer{
			{QuestionID: "q1", Answer: "yes", Source: models.QuestionFromScreening, Timestamp: 100},
		},
		PendingQuestions: []models.FollowUpQuestion{
			{ID: "q2", Question: "What volume?", Priority: models.PriorityBlocking,
				Source: models.QuestionSource{Stage: models.QuestionFromScreening}},
		},
		Status:          models.RunSuspended,
		Stage:           models.StageScreening,
		CompletedStages: []models.PipelineStage{models.StageScreening},
		StartedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestMemoryStateRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	snap := sampleSnapshot("r1")

	require.NoError(t, store.SaveState(ctx, snap))
	loaded, err := store.LoadState(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	// Mutating the loaded copy must not affect the stored record.
	loaded.Status = models.RunCompleted
	again, err := store.LoadState(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RunSuspended, again.Status)
}

func TestMemorySaveStateOverwrites(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	snap := sampleSnapshot("r1")
	require.NoError(t, store.SaveState(ctx, snap))

	snap.Status = models.RunCompleted
	snap.CompletedStages = models.StageOrder()
	require.NoError(t, store.SaveState(ctx, snap))

	loaded, err := store.LoadState(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, loaded.Status)
	assert.Len(t, loaded.CompletedStages, 5)
}

func TestMemoryLoadStateNotFound(t *testing.T) {
	store := NewMemory()
	_, err := store.LoadState(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryResumeSteps(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.SaveResumeStep(ctx, "r1", "screening", []byte(`[{"id":"q1"}]`)))
	data, err := store.LoadResumeStep(ctx, "r1", "screening")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"q1"}]`, string(data))

	_, err = store.LoadResumeStep(ctx, "r1", "dimensions")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDeleteRun(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.SaveState(ctx, sampleSnapshot("r1")))
	require.NoError(t, store.SaveState(ctx, sampleSnapshot("r2")))
	require.NoError(t, store.SaveResumeStep(ctx, "r1", "screening", []byte(`[]`)))

	require.NoError(t, store.DeleteRun(ctx, "r1"))

	_, err := store.LoadState(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.LoadResumeStep(ctx, "r1", "screening")
	assert.ErrorIs(t, err, ErrNotFound)

	// Other runs are untouched.
	_, err = store.LoadState(ctx, "r2")
	assert.NoError(t, err)
}
