package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

// MemoryStore is an in-memory implementation of domain.KnowledgeStore.
// Documents are held per space in insertion order. Writes are serialized per
// space; reads take a read lock so they proceed concurrently with writes to
// unrelated spaces.
type MemoryStore struct {
	mu     sync.RWMutex
	spaces map[string]*memorySpace
	ranker Ranker
}

type memorySpace struct {
	mu   sync.Mutex
	docs []domain.Document
	ids  map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore using the given ranker; a nil
// ranker selects the baseline term-overlap strategy.
func NewMemoryStore(ranker Ranker) *MemoryStore {
	if ranker == nil {
		ranker = TermOverlapRanker{}
	}
	return &MemoryStore{
		spaces: make(map[string]*memorySpace),
		ranker: ranker,
	}
}

// Ground implements domain.KnowledgeStore. An unknown space is not an error:
// it yields empty evidence and coverage 0.
func (s *MemoryStore) Ground(ctx context.Context, query, space string, k int, minScore float64) (domain.GroundingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.GroundingResult{}, err
	}

	docs, err := s.Snapshot(ctx, space)
	if err != nil {
		return domain.GroundingResult{}, err
	}
	return rank(s.ranker, query, space, docs, k, minScore), nil
}

// Writeback implements domain.KnowledgeStore. Each document is committed
// individually: a validation failure on one document leaves prior writes in
// the same call intact.
func (s *MemoryStore) Writeback(ctx context.Context, docs []domain.Document, space string) ([]string, error) {
	if strings.TrimSpace(space) == "" {
		return nil, fmt.Errorf("knowledge: space is required")
	}

	target := s.space(space)
	target.mu.Lock()
	defer target.mu.Unlock()

	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		if strings.TrimSpace(doc.Content) == "" {
			return ids, fmt.Errorf("knowledge: document %d has empty content", i)
		}
		stored := doc.Clone()
		stored.Space = space
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		} else if _, exists := target.ids[stored.ID]; exists {
			return ids, fmt.Errorf("knowledge: document id %q already exists in space %q", stored.ID, space)
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
		target.docs = append(target.docs, stored)
		target.ids[stored.ID] = struct{}{}
		ids = append(ids, stored.ID)
	}
	return ids, nil
}

// Snapshot implements domain.KnowledgeStore.
func (s *MemoryStore) Snapshot(ctx context.Context, space string) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	target, ok := s.spaces[space]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	out := make([]domain.Document, len(target.docs))
	for i, doc := range target.docs {
		out[i] = doc.Clone()
	}
	return out, nil
}

func (s *MemoryStore) space(name string) *memorySpace {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.spaces[name]
	if !ok {
		target = &memorySpace{ids: make(map[string]struct{})}
		s.spaces[name] = target
	}
	return target
}
