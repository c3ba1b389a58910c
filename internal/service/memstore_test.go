package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/bonjohen/second-brain/internal/store"
	"github.com/google/uuid"
)

// In-memory store fakes shared by the service tests. They mirror the
// Postgres stores' observable behavior: insertion IDs and timestamps,
// oldest-first ordering, ErrNotFound on misses, and audit entries appended
// alongside mutations.

type memSourceStore struct {
	sources map[uuid.UUID]*domain.Source
	audits  *memAuditStore
}

func newMemSourceStore(audits *memAuditStore) *memSourceStore {
	return &memSourceStore{sources: make(map[uuid.UUID]*domain.Source), audits: audits}
}

func (m *memSourceStore) Create(ctx context.Context, s *domain.Source, entry *domain.AuditEntry) error {
	s.ID = uuid.New()
	s.CapturedAt = time.Now().UTC()
	cp := *s
	m.sources[s.ID] = &cp
	m.audits.append(entry, s.ID)
	return nil
}

func (m *memSourceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	s, ok := m.sources[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSourceStore) UpdateTrustLabel(ctx context.Context, id uuid.UUID, label domain.TrustLabel, entry *domain.AuditEntry) error {
	s, ok := m.sources[id]
	if !ok {
		return store.ErrNotFound
	}
	s.TrustLabel = label
	m.audits.append(entry, id)
	return nil
}

func (m *memSourceStore) Count(ctx context.Context) (int, error) {
	return len(m.sources), nil
}

type memNoteStore struct {
	notes []*domain.Note
	byID  map[uuid.UUID]*domain.Note
	// similar is returned verbatim by FindSimilar; tests preload it.
	similar []domain.NoteWithScore
	audits  *memAuditStore
}

func newMemNoteStore(audits *memAuditStore) *memNoteStore {
	return &memNoteStore{byID: make(map[uuid.UUID]*domain.Note), audits: audits}
}

func (m *memNoteStore) Create(ctx context.Context, n *domain.Note, entry *domain.AuditEntry) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now().UTC()
	cp := *n
	m.notes = append(m.notes, &cp)
	m.byID[n.ID] = &cp
	m.audits.append(entry, n.ID)
	return nil
}

func (m *memNoteStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	n, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *memNoteStore) List(ctx context.Context, limit, offset int) ([]domain.Note, error) {
	return pageNotes(m.notes, func(*domain.Note) bool { return true }, limit, offset), nil
}

func (m *memNoteStore) ListByTag(ctx context.Context, tag string, limit int) ([]domain.Note, error) {
	return pageNotes(m.notes, func(n *domain.Note) bool { return contains(n.Tags, tag) }, limit, 0), nil
}

func (m *memNoteStore) ListByEntity(ctx context.Context, entity string, limit int) ([]domain.Note, error) {
	return pageNotes(m.notes, func(n *domain.Note) bool { return contains(n.Entities, entity) }, limit, 0), nil
}

func (m *memNoteStore) Search(ctx context.Context, query string, limit int) ([]domain.Note, error) {
	terms := strings.Fields(strings.ToLower(query))
	return pageNotes(m.notes, func(n *domain.Note) bool {
		content := strings.ToLower(n.Content)
		for _, t := range terms {
			if strings.Contains(content, t) {
				return true
			}
		}
		return false
	}, limit, 0), nil
}

func (m *memNoteStore) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	n, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	n.Embedding = embedding
	return nil
}

func (m *memNoteStore) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.NoteWithScore, error) {
	if len(m.similar) > limit {
		return m.similar[:limit], nil
	}
	return m.similar, nil
}

func (m *memNoteStore) Count(ctx context.Context) (int, error) {
	return len(m.notes), nil
}

func pageNotes(notes []*domain.Note, match func(*domain.Note) bool, limit, offset int) []domain.Note {
	var out []domain.Note
	skipped := 0
	for _, n := range notes {
		if !match(n) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, *n)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type memBeliefStore struct {
	beliefs []*domain.Belief
	byID    map[uuid.UUID]*domain.Belief
	audits  *memAuditStore
}

func newMemBeliefStore(audits *memAuditStore) *memBeliefStore {
	return &memBeliefStore{byID: make(map[uuid.UUID]*domain.Belief), audits: audits}
}

func (m *memBeliefStore) Create(ctx context.Context, b *domain.Belief, entry *domain.AuditEntry) error {
	b.ID = uuid.New()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	m.beliefs = append(m.beliefs, &cp)
	m.byID[b.ID] = &cp
	m.audits.append(entry, b.ID)
	return nil
}

func (m *memBeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBeliefStore) List(ctx context.Context, status *domain.BeliefStatus, limit, offset int) ([]domain.Belief, error) {
	var out []domain.Belief
	skipped := 0
	for _, b := range m.beliefs {
		if status != nil && b.Status != *status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, *b)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memBeliefStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BeliefStatus, entry *domain.AuditEntry) error {
	b, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	m.audits.append(entry, id)
	return nil
}

func (m *memBeliefStore) UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float32, entry *domain.AuditEntry) error {
	b, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Confidence = confidence
	b.UpdatedAt = time.Now().UTC()
	m.audits.append(entry, id)
	return nil
}

func (m *memBeliefStore) ExistsByClaim(ctx context.Context, claimText string) (bool, error) {
	for _, b := range m.beliefs {
		if b.ClaimText == claimText {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBeliefStore) CountByStatus(ctx context.Context) (map[domain.BeliefStatus]int, error) {
	out := make(map[domain.BeliefStatus]int)
	for _, b := range m.beliefs {
		out[b.Status]++
	}
	return out, nil
}

type memEdgeStore struct {
	edges []*domain.Edge
}

func newMemEdgeStore() *memEdgeStore {
	return &memEdgeStore{}
}

func (m *memEdgeStore) Create(ctx context.Context, e *domain.Edge) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	cp := *e
	m.edges = append(m.edges, &cp)
	return nil
}

func (m *memEdgeStore) Query(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, direction domain.Direction, relType *domain.RelType) ([]domain.Edge, error) {
	var out []domain.Edge
	for _, e := range m.edges {
		if relType != nil && e.RelType != *relType {
			continue
		}
		from := e.FromType == entityType && e.FromID == entityID
		to := e.ToType == entityType && e.ToID == entityID
		switch direction {
		case domain.DirectionOutgoing:
			if !from {
				continue
			}
		case domain.DirectionIncoming:
			if !to {
				continue
			}
		default:
			if !from && !to {
				continue
			}
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *memEdgeStore) Exists(ctx context.Context, fromType domain.EntityType, fromID uuid.UUID, relType domain.RelType, toType domain.EntityType, toID uuid.UUID) (bool, error) {
	for _, e := range m.edges {
		if e.FromType == fromType && e.FromID == fromID && e.RelType == relType && e.ToType == toType && e.ToID == toID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEdgeStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	for i, e := range m.edges {
		if e.ID == id {
			m.edges = append(m.edges[:i], m.edges[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memEdgeStore) Count(ctx context.Context) (int, error) {
	return len(m.edges), nil
}

type memSignalStore struct {
	signals []*domain.Signal
	seq     int
}

func newMemSignalStore() *memSignalStore {
	return &memSignalStore{}
}

func (m *memSignalStore) Emit(ctx context.Context, s *domain.Signal) error {
	s.ID = uuid.New()
	// Monotonic timestamps keep oldest-first ordering deterministic even
	// when emits land in the same wall-clock instant.
	m.seq++
	s.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	cp := *s
	m.signals = append(m.signals, &cp)
	return nil
}

func (m *memSignalStore) Unprocessed(ctx context.Context, signalType string, limit int) ([]domain.Signal, error) {
	var out []domain.Signal
	for _, s := range m.signals {
		if s.ProcessedAt != nil {
			continue
		}
		if signalType != "" && s.Type != signalType {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSignalStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	for _, s := range m.signals {
		if s.ID == id {
			if s.ProcessedAt == nil {
				now := time.Now().UTC()
				s.ProcessedAt = &now
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memSignalStore) IncrementRetry(ctx context.Context, id uuid.UUID) (int, error) {
	for _, s := range m.signals {
		if s.ID == id {
			s.RetryCount++
			return s.RetryCount, nil
		}
	}
	return 0, store.ErrNotFound
}

func (m *memSignalStore) CountUnprocessed(ctx context.Context) (int, error) {
	n := 0
	for _, s := range m.signals {
		if s.ProcessedAt == nil {
			n++
		}
	}
	return n, nil
}

// byType returns all signals of a type regardless of processed state.
func (m *memSignalStore) byType(signalType string) []domain.Signal {
	var out []domain.Signal
	for _, s := range m.signals {
		if s.Type == signalType {
			out = append(out, *s)
		}
	}
	return out
}

type memAuditStore struct {
	entries []*domain.AuditEntry
}

func newMemAuditStore() *memAuditStore {
	return &memAuditStore{}
}

func (m *memAuditStore) Append(ctx context.Context, e *domain.AuditEntry) error {
	m.append(e, e.EntityID)
	return nil
}

func (m *memAuditStore) History(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range m.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memAuditStore) Count(ctx context.Context) (int, error) {
	return len(m.entries), nil
}

func (m *memAuditStore) append(e *domain.AuditEntry, entityID uuid.UUID) {
	if e == nil {
		return
	}
	e.ID = uuid.New()
	if e.EntityID == uuid.Nil {
		e.EntityID = entityID
	}
	e.CreatedAt = time.Now().UTC()
	cp := *e
	m.entries = append(m.entries, &cp)
}

// memStores bundles one consistent set of fakes.
type memStores struct {
	audits  *memAuditStore
	sources *memSourceStore
	notes   *memNoteStore
	beliefs *memBeliefStore
	edges   *memEdgeStore
	signals *memSignalStore
}

func newMemStores() *memStores {
	audits := newMemAuditStore()
	return &memStores{
		audits:  audits,
		sources: newMemSourceStore(audits),
		notes:   newMemNoteStore(audits),
		beliefs: newMemBeliefStore(audits),
		edges:   newMemEdgeStore(),
		signals: newMemSignalStore(),
	}
}
