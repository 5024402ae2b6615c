package tools

import (
	"context"
	"fmt"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

// GroundTool retrieves evidence for a query from a knowledge space.
type GroundTool struct {
	store domain.KnowledgeStore
}

// NewGroundTool wraps a knowledge store as a tool.
func NewGroundTool(store domain.KnowledgeStore) *GroundTool {
	return &GroundTool{store: store}
}

// Run executes a grounding query. Parameters: query (required), space
// (default "default"), k (default 5), min_score (default 0).
func (t *GroundTool) Run(ctx context.Context, params map[string]any, _ map[string]any) (any, error) {
	query, err := stringParam(params, "query")
	if err != nil {
		return nil, err
	}
	space, err := optionalStringParam(params, "space", "default")
	if err != nil {
		return nil, err
	}
	k, err := intParam(params, "k", 5)
	if err != nil {
		return nil, err
	}
	minScore, err := floatParam(params, "min_score", 0)
	if err != nil {
		return nil, err
	}

	result, err := t.store.Ground(ctx, query, space, k, minScore)
	if err != nil {
		return nil, fmt.Errorf("ground %q in space %q: %w", query, space, err)
	}

	evidence := make([]map[string]any, 0, len(result.Evidence))
	for _, ev := range result.Evidence {
		evidence = append(evidence, map[string]any{
			"id":      ev.Document.ID,
			"content": ev.Document.Content,
			"score":   ev.Score,
		})
	}
	return map[string]any{
		"answer":   result.Answer,
		"coverage": result.Coverage,
		"evidence": evidence,
	}, nil
}

// WritebackTool persists documents into a knowledge space.
type WritebackTool struct {
	store domain.KnowledgeStore
}

// NewWritebackTool wraps a knowledge store's writeback path as a tool.
func NewWritebackTool(store domain.KnowledgeStore) *WritebackTool {
	return &WritebackTool{store: store}
}

// Run persists documents. Parameters: docs (required list of {id?, content,
// metadata?}), space (default "default").
func (t *WritebackTool) Run(ctx context.Context, params map[string]any, _ map[string]any) (any, error) {
	space, err := optionalStringParam(params, "space", "default")
	if err != nil {
		return nil, err
	}

	raw, ok := params["docs"]
	if !ok {
		return nil, fmt.Errorf("parameter %q is required", "docs")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be a list, got %T", "docs", raw)
	}

	docs := make([]domain.Document, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameter docs[%d] must be a mapping, got %T", i, item)
		}
		doc := domain.Document{Space: space}
		if id, ok := entry["id"].(string); ok {
			doc.ID = id
		}
		content, ok := entry["content"].(string)
		if !ok {
			return nil, fmt.Errorf("parameter docs[%d].content must be a string", i)
		}
		doc.Content = content
		if meta, ok := entry["metadata"].(map[string]any); ok {
			doc.Metadata = make(map[string]string, len(meta))
			for k, v := range meta {
				doc.Metadata[k] = fmt.Sprint(v)
			}
		}
		docs = append(docs, doc)
	}

	ids, err := t.store.Writeback(ctx, docs, space)
	if err != nil {
		return nil, fmt.Errorf("writeback to space %q: %w", space, err)
	}
	return map[string]any{"ids": ids, "count": len(ids)}, nil
}
