package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/bonjohen/second-brain/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type curatorFixture struct {
	stores   *memStores
	notes    *NoteService
	beliefs  *BeliefService
	embedder *embedding.MockClient
	svc      *CuratorService
}

func newCuratorFixture(t *testing.T) *curatorFixture {
	t.Helper()
	logger := zap.NewNop()
	stores := newMemStores()
	notes := NewNoteService(stores.notes, stores.sources, logger)
	beliefs := NewBeliefService(stores.beliefs, logger)
	embedder := embedding.NewMockClient()
	return &curatorFixture{
		stores:   stores,
		notes:    notes,
		beliefs:  beliefs,
		embedder: embedder,
		svc:      NewCuratorService(notes, beliefs, stores.edges, stores.signals, stores.audits, embedder, logger),
	}
}

func (f *curatorFixture) createBelief(t *testing.T, claim string, status domain.BeliefStatus) *domain.Belief {
	t.Helper()
	ctx := context.Background()
	b, err := f.beliefs.Create(ctx, claim, 0.5, domain.DecayNone, "", nil)
	require.NoError(t, err)
	for _, next := range fullStatusPath(status) {
		b, err = f.beliefs.UpdateStatus(ctx, b.ID, next)
		require.NoError(t, err)
	}
	return b
}

func fullStatusPath(target domain.BeliefStatus) []domain.BeliefStatus {
	switch target {
	case domain.StatusActive:
		return []domain.BeliefStatus{domain.StatusActive}
	case domain.StatusChallenged:
		return []domain.BeliefStatus{domain.StatusActive, domain.StatusChallenged}
	case domain.StatusDeprecated:
		return []domain.BeliefStatus{domain.StatusActive, domain.StatusChallenged, domain.StatusDeprecated}
	case domain.StatusArchived:
		return []domain.BeliefStatus{domain.StatusActive, domain.StatusChallenged, domain.StatusDeprecated, domain.StatusArchived}
	default:
		return nil
	}
}

func (f *curatorFixture) addNote(t *testing.T, content string, tags []string) *domain.Note {
	t.Helper()
	ctx := context.Background()
	src, err := f.notes.CreateSource(ctx, domain.SourceKindUser, "test", domain.TrustUser)
	require.NoError(t, err)
	n, err := f.notes.CreateNote(ctx, content, domain.ContentTypeText, src.ID, tags, nil)
	require.NoError(t, err)
	return n
}

func TestArchiveCold_OnlyOldDeprecated(t *testing.T) {
	f := newCuratorFixture(t)
	ctx := context.Background()

	cold := f.createBelief(t, "old idea one", domain.StatusDeprecated)
	fresh := f.createBelief(t, "recent idea", domain.StatusDeprecated)
	active := f.createBelief(t, "live idea", domain.StatusActive)

	// Backdate the cold belief past the window.
	f.stores.beliefs.byID[cold.ID].UpdatedAt = time.Now().AddDate(0, 0, -120)

	archived, err := f.svc.ArchiveCold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	got, err := f.beliefs.Get(ctx, cold.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, got.Status)

	got, err = f.beliefs.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeprecated, got.Status)

	got, err = f.beliefs.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestDeduplicate_MergesNearIdenticalClaims(t *testing.T) {
	f := newCuratorFixture(t)
	ctx := context.Background()

	survivor := f.createBelief(t, "standups run long", domain.StatusActive)
	dup := f.createBelief(t, "standups run too long", domain.StatusActive)
	f.createBelief(t, "coffee is out again", domain.StatusActive)

	// Give the duplicate pair identical vectors; the third claim hashes to
	// something unrelated.
	f.embedder.Vectors[survivor.ClaimText] = []float32{1, 0, 0}
	f.embedder.Vectors[dup.ClaimText] = []float32{1, 0, 0}
	f.embedder.Vectors["coffee is out again"] = []float32{0, 1, 0}

	// An edge on the duplicate should move to the survivor.
	note := f.addNote(t, "standup went 40 minutes", nil)
	require.NoError(t, f.stores.edges.Create(ctx, &domain.Edge{
		FromType: domain.EntityNote, FromID: note.ID,
		RelType: domain.RelSupports,
		ToType:  domain.EntityBelief, ToID: dup.ID,
	}))

	merged, err := f.svc.Deduplicate(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	got, err := f.beliefs.Get(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeprecated, got.Status)

	// The support edge now points at the survivor.
	exists, err := f.stores.edges.Exists(ctx,
		domain.EntityNote, note.ID, domain.RelSupports, domain.EntityBelief, survivor.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	// The merge left a trail: related_to edge plus an audit entry.
	exists, err = f.stores.edges.Exists(ctx,
		domain.EntityBelief, dup.ID, domain.RelRelatedTo, domain.EntityBelief, survivor.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	history, err := f.stores.audits.History(ctx, domain.EntityBelief, dup.ID)
	require.NoError(t, err)
	var dedupEntries int
	for _, e := range history {
		if e.Action == domain.AuditDeduplicated {
			dedupEntries++
			assert.Equal(t, survivor.ID.String(), e.After["merged_into"])
		}
	}
	assert.Equal(t, 1, dedupEntries)
}

func TestDeduplicate_NilEmbedderIsNoop(t *testing.T) {
	f := newCuratorFixture(t)
	f.svc.embedder = nil

	f.createBelief(t, "standups run long", domain.StatusActive)
	f.createBelief(t, "standups run long today", domain.StatusActive)

	merged, err := f.svc.Deduplicate(context.Background(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, merged)
}

func TestDeduplicate_ExpiredBudgetReturnsPartial(t *testing.T) {
	f := newCuratorFixture(t)

	f.createBelief(t, "claim one", domain.StatusActive)
	f.createBelief(t, "claim two", domain.StatusActive)

	merged, err := f.svc.Deduplicate(context.Background(), time.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, merged)
}

func TestDeduplicate_ChainCollapsesAcrossRuns(t *testing.T) {
	f := newCuratorFixture(t)
	ctx := context.Background()

	var beliefs []*domain.Belief
	for i := 0; i < 4; i++ {
		b := f.createBelief(t, fmt.Sprintf("the retro keeps slipping %d", i), domain.StatusActive)
		f.embedder.Vectors[b.ClaimText] = []float32{1, 0, 0}
		beliefs = append(beliefs, b)
	}

	// One pass pairs each candidate at most once: 4 duplicates yield 2
	// merges, never more than half the pool.
	merged, err := f.svc.Deduplicate(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, merged)

	// The second run merges the two remaining survivors; a third finds
	// nothing left to pair.
	merged, err = f.svc.Deduplicate(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	merged, err = f.svc.Deduplicate(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, merged)

	got, err := f.beliefs.Get(ctx, beliefs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	for _, b := range beliefs[1:] {
		got, err := f.beliefs.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDeprecated, got.Status)
	}
}

func TestDistill_SummarizesLargeTagGroup(t *testing.T) {
	f := newCuratorFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.addNote(t, fmt.Sprintf("observation %d about the migration", i), []string{"migration"})
	}
	f.addNote(t, "unrelated note", []string{"misc"})

	distilled, err := f.svc.Distill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, distilled)

	summaries, err := f.notes.ListByTag(ctx, "distill-migration", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Contains(t, summaries[0].Content, "Summary of 5 notes tagged #migration")
	assert.Contains(t, summaries[0].Tags, "summary")

	// Members link to the summary.
	rel := domain.RelDerivedFrom
	edges, err := f.stores.edges.Query(ctx, domain.EntityNote, summaries[0].ID, domain.DirectionIncoming, &rel)
	require.NoError(t, err)
	assert.Len(t, edges, 5)

	assert.Len(t, f.stores.signals.byType(domain.SignalNoteDistilled), 1)
}

func TestDistill_RerunIsIdempotent(t *testing.T) {
	f := newCuratorFixture(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		f.addNote(t, fmt.Sprintf("observation %d", i), []string{"migration"})
	}

	distilled, err := f.svc.Distill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, distilled)

	distilled, err = f.svc.Distill(ctx)
	require.NoError(t, err)
	assert.Zero(t, distilled)

	summaries, err := f.notes.ListByTag(ctx, "distill-migration", 10)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestDistill_SmallGroupsIgnored(t *testing.T) {
	f := newCuratorFixture(t)

	for i := 0; i < 4; i++ {
		f.addNote(t, fmt.Sprintf("observation %d", i), []string{"migration"})
	}

	distilled, err := f.svc.Distill(context.Background())
	require.NoError(t, err)
	assert.Zero(t, distilled)
}

func TestRun_ReportsAllPasses(t *testing.T) {
	f := newCuratorFixture(t)
	ctx := context.Background()

	cold := f.createBelief(t, "stale claim", domain.StatusDeprecated)
	f.stores.beliefs.byID[cold.ID].UpdatedAt = time.Now().AddDate(0, 0, -120)
	for i := 0; i < 5; i++ {
		f.addNote(t, fmt.Sprintf("observation %d", i), []string{"migration"})
	}

	result, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Archived)
	assert.Zero(t, result.Deduplicated)
	assert.Equal(t, 1, result.Distilled)
}
