package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	space      TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	UNIQUE (space, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_space ON documents (space, seq);
`

// SQLiteStore is a durable implementation of domain.KnowledgeStore backed by
// a SQLite database. Insertion order is preserved through a monotonic
// sequence column; metadata is stored as JSON.
type SQLiteStore struct {
	db     *sql.DB
	ranker Ranker

	mu     sync.Mutex
	spaces map[string]*sync.Mutex
}

// OpenSQLite opens (or creates) a SQLite-backed store at path.
func OpenSQLite(path string, ranker Ranker) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("knowledge: storage path is required")
	}
	if ranker == nil {
		ranker = TermOverlapRanker{}
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("knowledge: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("knowledge: bootstrap schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		ranker: ranker,
		spaces: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ground implements domain.KnowledgeStore.
func (s *SQLiteStore) Ground(ctx context.Context, query, space string, k int, minScore float64) (domain.GroundingResult, error) {
	docs, err := s.Snapshot(ctx, space)
	if err != nil {
		return domain.GroundingResult{}, err
	}
	return rank(s.ranker, query, space, docs, k, minScore), nil
}

// Writeback implements domain.KnowledgeStore. Each document is inserted in
// its own implicit transaction, so a failure mid-call never corrupts prior
// writes. Writes are serialized per space.
func (s *SQLiteStore) Writeback(ctx context.Context, docs []domain.Document, space string) ([]string, error) {
	if strings.TrimSpace(space) == "" {
		return nil, fmt.Errorf("knowledge: space is required")
	}

	lock := s.spaceLock(space)
	lock.Lock()
	defer lock.Unlock()

	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		if strings.TrimSpace(doc.Content) == "" {
			return ids, fmt.Errorf("knowledge: document %d has empty content", i)
		}

		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		metadata, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return ids, err
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO documents (id, space, content, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, space, doc.Content, metadata, createdAt.UnixMilli(),
		)
		if err != nil {
			return ids, fmt.Errorf("knowledge: insert document %q: %w", id, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Snapshot implements domain.KnowledgeStore.
func (s *SQLiteStore) Snapshot(ctx context.Context, space string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, created_at FROM documents WHERE space = ? ORDER BY seq`,
		space,
	)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query space %q: %w", space, err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc      domain.Document
			metadata string
			created  int64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata, &created); err != nil {
			return nil, fmt.Errorf("knowledge: scan document: %w", err)
		}
		doc.Space = space
		doc.CreatedAt = time.UnixMilli(created).UTC()
		if doc.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("knowledge: iterate space %q: %w", space, err)
	}
	return docs, nil
}

func (s *SQLiteStore) spaceLock(space string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.spaces[space]
	if !ok {
		lock = &sync.Mutex{}
		s.spaces[space] = lock
	}
	return lock
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("knowledge: marshal metadata: %w", err)
	}
	return string(encoded), nil
}

func decodeMetadata(value string) (map[string]string, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "{}" {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(value), &metadata); err != nil {
		return nil, fmt.Errorf("knowledge: unmarshal metadata: %w", err)
	}
	return metadata, nil
}
