package service

import (
	"context"
	"testing"
	"time"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lifecycleFixture struct {
	stores  *memStores
	beliefs *BeliefService
	svc     *LifecycleService
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	logger := zap.NewNop()
	stores := newMemStores()
	beliefs := NewBeliefService(stores.beliefs, logger)
	detector := NewContradictionDetector(stores.beliefs, logger)
	confidence := NewConfidenceEngine(stores.edges)
	return &lifecycleFixture{
		stores:  stores,
		beliefs: beliefs,
		svc:     NewLifecycleService(beliefs, confidence, detector, logger),
	}
}

// support adds n supports edges pointing at the belief.
func (f *lifecycleFixture) support(t *testing.T, beliefID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.stores.edges.Create(context.Background(), &domain.Edge{
			FromType: domain.EntityNote, FromID: uuid.New(),
			RelType: domain.RelSupports,
			ToType:  domain.EntityBelief, ToID: beliefID,
		}))
	}
}

func (f *lifecycleFixture) contradict(t *testing.T, beliefID uuid.UUID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.stores.edges.Create(context.Background(), &domain.Edge{
			FromType: domain.EntityBelief, FromID: uuid.New(),
			RelType: domain.RelContradicts,
			ToType:  domain.EntityBelief, ToID: beliefID,
		}))
	}
}

func TestAutoTransition_ActivatesConfidentProposed(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	b, err := f.beliefs.Create(ctx, "the cache layer pays off", 0.5, domain.DecayNone, "", nil)
	require.NoError(t, err)
	f.support(t, b.ID, 2) // 0.5 + 0.2 = 0.7 >= 0.6

	result, err := f.svc.AutoTransition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Activated)
	assert.Zero(t, result.Deprecated)

	got, err := f.beliefs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.InDelta(t, 0.7, got.Confidence, 1e-6)
}

func TestAutoTransition_LowConfidenceStaysProposed(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	b, err := f.beliefs.Create(ctx, "the cache layer pays off", 0.5, domain.DecayNone, "", nil)
	require.NoError(t, err)
	// No supporting evidence: score 0.5 < 0.6.

	result, err := f.svc.AutoTransition(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Activated)

	got, err := f.beliefs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProposed, got.Status)
}

func TestAutoTransition_ContradictedProposedIsHeldBack(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	_, err := f.beliefs.Create(ctx, "Go is not fast", 0.5, domain.DecayNone, "", nil)
	require.NoError(t, err)
	b, err := f.beliefs.Create(ctx, "Go is fast", 0.5, domain.DecayNone, "", nil)
	require.NoError(t, err)
	f.support(t, b.ID, 5) // 1.0, well above the threshold

	result, err := f.svc.AutoTransition(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Activated)

	got, err := f.beliefs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProposed, got.Status)
}

func TestAutoTransition_DeprecatesCollapsedChallenged(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	b, err := f.beliefs.Create(ctx, "the old pipeline still works", 0.5, domain.DecayNone, "", nil)
	require.NoError(t, err)
	_, err = f.beliefs.UpdateStatus(ctx, b.ID, domain.StatusActive)
	require.NoError(t, err)
	_, err = f.beliefs.UpdateStatus(ctx, b.ID, domain.StatusChallenged)
	require.NoError(t, err)
	f.contradict(t, b.ID, 4) // 0.5 - 0.4 = 0.1 < 0.2

	result, err := f.svc.AutoTransition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deprecated)

	got, err := f.beliefs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeprecated, got.Status)
	assert.InDelta(t, 0.1, got.Confidence, 1e-6)
}

func TestAutoTransition_HealthyChallengedSurvives(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	b, err := f.beliefs.Create(ctx, "the old pipeline still works", 0.5, domain.DecayNone, "", nil)
	require.NoError(t, err)
	_, err = f.beliefs.UpdateStatus(ctx, b.ID, domain.StatusActive)
	require.NoError(t, err)
	_, err = f.beliefs.UpdateStatus(ctx, b.ID, domain.StatusChallenged)
	require.NoError(t, err)
	f.contradict(t, b.ID, 1) // 0.4, above the deprecation floor

	result, err := f.svc.AutoTransition(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Deprecated)

	got, err := f.beliefs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusChallenged, got.Status)
}

func TestAutoTransition_NoTransitionLeavesDecayClockAlone(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	b, err := f.beliefs.Create(ctx, "the old pipeline still works", 0.5, domain.DecayExponential, "", nil)
	require.NoError(t, err)
	_, err = f.beliefs.UpdateStatus(ctx, b.ID, domain.StatusActive)
	require.NoError(t, err)
	_, err = f.beliefs.UpdateStatus(ctx, b.ID, domain.StatusChallenged)
	require.NoError(t, err)
	f.contradict(t, b.ID, 1) // raw 0.4, decayed ~0.28 after half a half-life

	backdated := time.Now().UTC().AddDate(0, 0, -15)
	f.stores.beliefs.byID[b.ID].UpdatedAt = backdated
	f.stores.beliefs.byID[b.ID].Confidence = 0.5

	// Two sweeps with no status change must not touch the row; a write
	// would reset the decay window and pin confidence at its raw value.
	for i := 0; i < 2; i++ {
		result, err := f.svc.AutoTransition(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Deprecated)

		got, err := f.beliefs.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, backdated, got.UpdatedAt)
		assert.InDelta(t, 0.5, got.Confidence, 1e-6)
	}
}

func TestAutoTransition_DecayAloneCanDeprecate(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	b, err := f.beliefs.Create(ctx, "the old pipeline still works", 0.5, domain.DecayExponential, "", nil)
	require.NoError(t, err)
	_, err = f.beliefs.UpdateStatus(ctx, b.ID, domain.StatusActive)
	require.NoError(t, err)
	_, err = f.beliefs.UpdateStatus(ctx, b.ID, domain.StatusChallenged)
	require.NoError(t, err)
	f.contradict(t, b.ID, 1) // raw 0.4, two half-lives decay it to 0.1

	f.stores.beliefs.byID[b.ID].UpdatedAt = time.Now().UTC().AddDate(0, 0, -60)

	result, err := f.svc.AutoTransition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deprecated)

	got, err := f.beliefs.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeprecated, got.Status)
	assert.InDelta(t, 0.1, got.Confidence, 1e-3)
}
