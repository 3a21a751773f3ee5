package vector

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/vexd/internal/core"
	_ "github.com/sandevgo/vexd/pkg/sqlite"
)

// Store keeps memory documents and their embeddings in sqlite, with the
// vec0 extension providing cosine distance. Collections are rows, not
// tables, so querying an absent collection simply yields no hits.
type Store struct {
	db   *sql.DB
	dims int
}

func NewStore(ctx context.Context, dbPath string, dims int) (*Store, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("invalid embedding dims: %d", dims)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3_vec", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping vector database: %w", err)
	}

	s := &Store{db: db, dims: dims}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// The vec0 table carries the configured dimension, so the schema is created
// at runtime rather than through static migrations.
func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			collection TEXT NOT NULL,
			content TEXT NOT NULL,
			meta TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS documents_vec USING vec0(embedding float[%d])`, s.dims),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create vector schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Upsert(ctx context.Context, collection string, vectors [][]float32, documents []string, metadatas []map[string]any) ([]string, error) {
	if len(vectors) != len(documents) {
		return nil, fmt.Errorf("vectors/documents length mismatch: %d != %d", len(vectors), len(documents))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ids := make([]string, 0, len(documents))

	for i, doc := range documents {
		var meta map[string]any
		if i < len(metadatas) && metadatas[i] != nil {
			meta = metadatas[i]
		} else {
			meta = map[string]any{}
		}
		// Timestamp every entry for auditability.
		if _, ok := meta["ts"]; !ok {
			meta["ts"] = now.Unix()
		}

		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}

		docID := uuid.NewString()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO documents (doc_id, collection, content, meta, created_at) VALUES (?, ?, ?, ?, ?)`,
			docID, collection, doc, string(metaJSON), now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert document: %w", err)
		}

		rowID, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}

		vecBlob, err := serializeVector(vectors[i])
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents_vec (rowid, embedding) VALUES (?, ?)`, rowID, vecBlob,
		); err != nil {
			return nil, fmt.Errorf("failed to insert document vector: %w", err)
		}

		ids = append(ids, docID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]core.RecallHit, error) {
	if k <= 0 {
		k = 3
	}

	vecBlob, err := serializeVector(vector)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.content, d.meta, vec_distance_cosine(v.embedding, ?) AS distance
		FROM documents_vec v
		JOIN documents d ON d.id = v.rowid
		WHERE d.collection = ?
		ORDER BY distance ASC
		LIMIT ?`,
		vecBlob, collection, k,
	)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	var hits []core.RecallHit
	for rows.Next() {
		var hit core.RecallHit
		var metaStr sql.NullString
		var distance float64
		if err := rows.Scan(&hit.Text, &metaStr, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		if metaStr.Valid && metaStr.String != "" {
			if err := json.Unmarshal([]byte(metaStr.String), &hit.Meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal hit metadata: %w", err)
			}
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *Store) ListCollections(ctx context.Context) ([]core.CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, COUNT(*) FROM documents GROUP BY collection ORDER BY collection`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var cols []core.CollectionInfo
	for rows.Next() {
		var c core.CollectionInfo
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// Document is the browse view of one stored memory entry.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Peek returns the newest n documents of a collection.
func (s *Store) Peek(ctx context.Context, collection string, n int) ([]Document, error) {
	if n <= 0 {
		n = 20
	}
	return s.scanDocuments(ctx, `
		SELECT doc_id, collection, content, meta, created_at FROM documents
		WHERE collection = ? ORDER BY id DESC LIMIT ?`,
		collection, n,
	)
}

// SearchText is a literal substring search over document contents.
func (s *Store) SearchText(ctx context.Context, collection, term string, n int) ([]Document, error) {
	if n <= 0 {
		n = 20
	}
	return s.scanDocuments(ctx, `
		SELECT doc_id, collection, content, meta, created_at FROM documents
		WHERE collection = ? AND content LIKE '%' || ? || '%'
		ORDER BY id DESC LIMIT ?`,
		collection, term, n,
	)
}

func (s *Store) scanDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("document query failed: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var metaStr sql.NullString
		if err := rows.Scan(&d.ID, &d.Collection, &d.Content, &metaStr, &d.CreatedAt); err != nil {
			return nil, err
		}
		if metaStr.Valid && metaStr.String != "" {
			if err := json.Unmarshal([]byte(metaStr.String), &d.Meta); err != nil {
				return nil, err
			}
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE doc_id = ?`, docID).Scan(&rowID)
	if err != nil {
		return fmt.Errorf("document not found: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents_vec WHERE rowid = ?`, rowID); err != nil {
		return fmt.Errorf("failed to delete vector: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, rowID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return tx.Commit()
}

func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents_vec WHERE rowid IN (SELECT id FROM documents WHERE collection = ?)`,
		collection,
	); err != nil {
		return fmt.Errorf("failed to delete collection vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	return tx.Commit()
}

// serializeVector converts a float32 slice to a LittleEndian byte slice
// compatible with sqlite-vec BLOB input.
func serializeVector(vec []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("failed to serialize vector: %w", err)
	}
	return buf.Bytes(), nil
}
