package domain

import (
	"context"
	"time"
)

// Document is an append-only unit of grounding knowledge. A new version of a
// document is a new Document with a new ID; existing documents are never
// mutated in place and IDs are never reused.
type Document struct {
	ID        string            `json:"id" yaml:"id"`
	Space     string            `json:"space" yaml:"space"`
	Content   string            `json:"content" yaml:"content"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
}

// Clone returns a deep copy of the document to avoid shared mutable state.
func (d Document) Clone() Document {
	clone := d
	if len(d.Metadata) > 0 {
		clone.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// Evidence pairs a document with its relevance score for a grounding query.
// Scores are bounded in [0,1].
type Evidence struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// GroundingResult is the outcome of a grounding query. Absent knowledge is not
// an error: an unknown space or an unmatched query yields empty evidence and
// coverage 0.
type GroundingResult struct {
	Query    string     `json:"query"`
	Space    string     `json:"space"`
	Evidence []Evidence `json:"evidence"`
	Answer   string     `json:"answer"`
	Coverage float64    `json:"coverage"`
}

// KnowledgeStore persists namespaced documents and answers grounding queries
// with scored evidence. Implementations serialize writes per space so that
// Snapshot observes a consistent state; reads may proceed concurrently with
// unrelated writes.
type KnowledgeStore interface {
	// Ground scores documents in space against query and returns the top-k
	// by descending score, ties broken by insertion order then ID.
	Ground(ctx context.Context, query, space string, k int, minScore float64) (GroundingResult, error)

	// Writeback persists documents into space, assigning IDs where absent.
	// Each document write is atomic individually; a failure on one document
	// must not corrupt prior writes in the same call.
	Writeback(ctx context.Context, docs []Document, space string) ([]string, error)

	// Snapshot returns a consistent point-in-time export of a space.
	Snapshot(ctx context.Context, space string) ([]Document, error)
}
