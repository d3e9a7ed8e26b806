package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"rag-system-api/internal/apperrors"
	"rag-system-api/internal/models"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteVectorStore implements VectorStore on SQLite with the sqlite-vec
// extension. Documents live in a plain table keyed by a monotonic seq
// (the insertion-order tie-breaker); vectors live in a vec0 virtual
// table created once the dimension is known.
type SQLiteVectorStore struct {
	db *sql.DB

	mu        sync.Mutex
	dimension int
}

// NewSQLiteVectorStore opens (or creates) the store at the given DSN.
func NewSQLiteVectorStore(dsn string) (*SQLiteVectorStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteVectorStore{db: db}
	if err := store.initDB(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteVectorStore) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	// Recover the pinned dimension when reopening an existing store. The
	// vec table itself is created lazily on first insert.
	var dim sql.NullInt64
	err := s.db.QueryRow(`
		SELECT length(embedding) / 4 FROM vec_documents LIMIT 1
	`).Scan(&dim)
	if err == nil && dim.Valid {
		s.dimension = int(dim.Int64)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteVectorStore) Close() error {
	return s.db.Close()
}

// serializeFloat32Vector converts a float32 slice to the byte format expected by sqlite-vec.
func serializeFloat32Vector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
	}
	return buf
}

// Insert stores a document with its embedding and returns the generated id.
func (s *SQLiteVectorStore) Insert(ctx context.Context, text string, embedding []float32, metadata map[string]interface{}) (string, error) {
	if err := s.ensureVecTable(ctx, len(embedding)); err != nil {
		return "", err
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", apperrors.ErrStoreUnavailable.WithCause(err)
	}

	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", apperrors.ErrStoreUnavailable.WithCause(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, content, metadata) VALUES (?, ?, ?)`,
		id, text, string(metadataJSON)); err != nil {
		return "", apperrors.ErrStoreUnavailable.WithCause(err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_documents (id, embedding) VALUES (?, ?)`,
		id, serializeFloat32Vector(embedding)); err != nil {
		return "", apperrors.ErrStoreUnavailable.WithCause(err)
	}

	if err := tx.Commit(); err != nil {
		return "", apperrors.ErrStoreUnavailable.WithCause(err)
	}

	return id, nil
}

// ensureVecTable creates the vec0 table on first insert, pinning the
// embedding dimension for the life of the store.
func (s *SQLiteVectorStore) ensureVecTable(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 {
		if dim != s.dimension {
			return apperrors.ErrDimensionMismatch.WithCause(
				fmt.Errorf("cannot insert %d-dimension vector into %d-dimension store", dim, s.dimension))
		}
		return nil
	}

	query := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(
			id TEXT PRIMARY KEY,
			embedding FLOAT[%d]
		)
	`, dim)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return apperrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to create vec_documents table: %w", err))
	}

	s.dimension = dim
	return nil
}

// QueryNearest performs KNN search via sqlite-vec, returning at most k
// hits ordered by ascending distance with insertion-order tie-break.
func (s *SQLiteVectorStore) QueryNearest(ctx context.Context, embedding []float32, k int) ([]models.SearchHit, error) {
	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()

	// No inserts yet means no vec table and nothing to find.
	if dim == 0 {
		return []models.SearchHit{}, nil
	}
	if len(embedding) != dim {
		return nil, apperrors.ErrDimensionMismatch.WithCause(
			fmt.Errorf("query vector has %d dimensions, store has %d", len(embedding), dim))
	}

	query := `
		SELECT
			d.content,
			d.metadata,
			v.distance
		FROM vec_documents v
		JOIN documents d ON d.id = v.id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance, d.seq
	`

	rows, err := s.db.QueryContext(ctx, query, serializeFloat32Vector(embedding), k)
	if err != nil {
		return nil, apperrors.ErrStoreUnavailable.WithCause(fmt.Errorf("failed to perform vector search: %w", err))
	}
	defer func() { _ = rows.Close() }()

	hits := make([]models.SearchHit, 0, k)
	for rows.Next() {
		var content, metadataJSON string
		var distance float32

		if err := rows.Scan(&content, &metadataJSON, &distance); err != nil {
			return nil, apperrors.ErrStoreUnavailable.WithCause(err)
		}

		var metadata map[string]interface{}
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return nil, apperrors.ErrStoreUnavailable.WithCause(fmt.Errorf("corrupt metadata: %w", err))
		}

		hits = append(hits, models.SearchHit{
			Content:  content,
			Score:    distance,
			Metadata: metadata,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.ErrStoreUnavailable.WithCause(fmt.Errorf("error iterating results: %w", err))
	}

	return hits, nil
}

// Count reports the number of stored documents.
func (s *SQLiteVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, apperrors.ErrStoreUnavailable.WithCause(err)
	}
	return count, nil
}
