// Package knowledge persists namespaced documents and answers grounding
// queries with scored evidence.
//
// Ranking is a pluggable strategy behind the stable Ground contract: the
// baseline TermOverlapRanker scores by normalized term overlap, and callers
// may substitute a semantic ranker without touching store implementations.
// Two backends are provided: an in-memory store and a SQLite-backed store for
// durable spaces. Both serialize writes per space so Snapshot observes a
// consistent state.
package knowledge
