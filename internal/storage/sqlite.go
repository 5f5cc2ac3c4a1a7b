package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/patentsearch/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = types.ErrNotFound
	// ErrNestedTx is returned by BeginTx on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
	// ErrEmptyTextQuery is returned by SearchText when the query has no searchable terms
	ErrEmptyTextQuery = errors.New("empty search query")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) Savepoint(ctx context.Context, name string) error {
	if !validSavepoint(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (t *sqliteTx) RollbackTo(ctx context.Context, name string) error {
	if !validSavepoint(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (t *sqliteTx) ReleaseSavepoint(ctx context.Context, name string) error {
	if !validSavepoint(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

// validSavepoint reports whether name is a bare identifier, since savepoint
// names cannot be bound as parameters
func validSavepoint(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Patent operations

const patentColumns = `
	id, doc_id, doc_type, COALESCE(title, ''), COALESCE(abstract, ''), COALESCE(claims, ''),
	COALESCE(description, ''), COALESCE(source_file, ''), content_hash, indexed_at, created_at, updated_at`

// upsertPatentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertPatentWithQuerier(ctx context.Context, q querier, patent *Patent) error {
	if patent.DocID == "" {
		return fmt.Errorf("failed to upsert patent: empty doc_id")
	}
	if patent.DocType == "" {
		patent.DocType = "unknown"
	}
	query := `
		INSERT INTO patents (doc_id, doc_type, title, abstract, claims, description, source_file, content_hash, indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			doc_type = excluded.doc_type,
			title = excluded.title,
			abstract = excluded.abstract,
			claims = excluded.claims,
			description = excluded.description,
			source_file = excluded.source_file,
			content_hash = excluded.content_hash,
			indexed_at = excluded.indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		patent.DocID, patent.DocType, patent.Title, patent.Abstract, patent.Claims,
		patent.Description, patent.SourceFile, patent.ContentHash[:], now, now, now).Scan(&patent.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert patent: %w", err)
	}
	patent.IndexedAt = now
	patent.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertPatent(ctx context.Context, patent *Patent) error {
	return s.upsertPatentWithQuerier(ctx, s.querier(), patent)
}

// scanPatent reads one patent row in patentColumns order
func scanPatent(scan func(dest ...interface{}) error) (*Patent, error) {
	var patent Patent
	var hash []byte
	var indexedAt sql.NullTime
	err := scan(
		&patent.ID, &patent.DocID, &patent.DocType, &patent.Title, &patent.Abstract,
		&patent.Claims, &patent.Description, &patent.SourceFile, &hash, &indexedAt,
		&patent.CreatedAt, &patent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(patent.ContentHash[:], hash)
	if indexedAt.Valid {
		patent.IndexedAt = indexedAt.Time
	}
	return &patent, nil
}

// getPatentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getPatentWithQuerier(ctx context.Context, q querier, docID string) (*Patent, error) {
	query := `SELECT ` + patentColumns + ` FROM patents WHERE doc_id = ?`
	patent, err := scanPatent(q.QueryRowContext(ctx, query, docID).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return patent, nil
}

func (s *SQLiteStorage) GetPatent(ctx context.Context, docID string) (*Patent, error) {
	return s.getPatentWithQuerier(ctx, s.querier(), docID)
}

// listPatentsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listPatentsWithQuerier(ctx context.Context, q querier, offset, limit int) ([]*Patent, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := `SELECT ` + patentColumns + ` FROM patents ORDER BY doc_id LIMIT ? OFFSET ?`
	rows, err := q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list patents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patents []*Patent
	for rows.Next() {
		patent, err := scanPatent(rows.Scan)
		if err != nil {
			return nil, err
		}
		patents = append(patents, patent)
	}
	return patents, rows.Err()
}

func (s *SQLiteStorage) ListPatents(ctx context.Context, offset, limit int) ([]*Patent, error) {
	return s.listPatentsWithQuerier(ctx, s.querier(), offset, limit)
}

// deletePatentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deletePatentWithQuerier(ctx context.Context, q querier, docID string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM patents WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("failed to delete patent: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeletePatent(ctx context.Context, docID string) error {
	return s.deletePatentWithQuerier(ctx, s.querier(), docID)
}

// Chunk operations

const chunkColumns = `c.id, c.chunk_id, c.patent_id, p.doc_id, c.ordinal, c.text, COALESCE(c.token_count, 0), c.created_at`

func scanChunk(scan func(dest ...interface{}) error) (*Chunk, error) {
	var chunk Chunk
	err := scan(&chunk.ID, &chunk.ChunkID, &chunk.PatentID, &chunk.DocID,
		&chunk.Ordinal, &chunk.Text, &chunk.TokenCount, &chunk.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

func collectChunks(rows *sql.Rows) ([]*Chunk, error) {
	defer func() { _ = rows.Close() }()
	var chunks []*Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// upsertChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	if chunk.TokenCount == 0 {
		chunk.TokenCount = len(strings.Fields(chunk.Text))
	}
	query := `
		INSERT INTO chunks (chunk_id, patent_id, ordinal, text, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			patent_id = excluded.patent_id,
			ordinal = excluded.ordinal,
			text = excluded.text,
			token_count = excluded.token_count
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		chunk.ChunkID, chunk.PatentID, chunk.Ordinal, chunk.Text, chunk.TokenCount, now).Scan(&chunk.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	chunk.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.upsertChunkWithQuerier(ctx, s.querier(), chunk)
}

// getChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, chunkID string) (*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks c JOIN patents p ON c.patent_id = p.id WHERE c.chunk_id = ?`
	chunk, err := scanChunk(q.QueryRowContext(ctx, query, chunkID).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID string) (*Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), chunkID)
}

// listChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listChunksWithQuerier(ctx context.Context, q querier) ([]*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks c JOIN patents p ON c.patent_id = p.id ORDER BY c.id`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return collectChunks(rows)
}

func (s *SQLiteStorage) ListChunks(ctx context.Context) ([]*Chunk, error) {
	return s.listChunksWithQuerier(ctx, s.querier())
}

// listChunksByPatentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listChunksByPatentWithQuerier(ctx context.Context, q querier, patentID int64) ([]*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks c JOIN patents p ON c.patent_id = p.id
		WHERE c.patent_id = ? ORDER BY c.ordinal`
	rows, err := q.QueryContext(ctx, query, patentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return collectChunks(rows)
}

func (s *SQLiteStorage) ListChunksByPatent(ctx context.Context, patentID int64) ([]*Chunk, error) {
	return s.listChunksByPatentWithQuerier(ctx, s.querier(), patentID)
}

// listChunksWithoutEmbeddingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listChunksWithoutEmbeddingWithQuerier(ctx context.Context, q querier, limit int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + chunkColumns + ` FROM chunks c JOIN patents p ON c.patent_id = p.id
		LEFT JOIN embeddings e ON e.chunk_id = c.id
		WHERE e.id IS NULL ORDER BY c.id LIMIT ?`
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending chunks: %w", err)
	}
	return collectChunks(rows)
}

func (s *SQLiteStorage) ListChunksWithoutEmbedding(ctx context.Context, limit int) ([]*Chunk, error) {
	return s.listChunksWithoutEmbeddingWithQuerier(ctx, s.querier(), limit)
}

// deleteChunksByPatentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteChunksByPatentWithQuerier(ctx context.Context, q querier, patentID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE patent_id = ?", patentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteChunksByPatent(ctx context.Context, patentID int64) error {
	return s.deleteChunksByPatentWithQuerier(ctx, s.querier(), patentID)
}

// Embedding operations

// upsertEmbeddingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

// getEmbeddingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, chunkID int64) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var embedding Embedding
	err := q.QueryRowContext(ctx, query, chunkID).Scan(
		&embedding.ID, &embedding.ChunkID, &embedding.Vector, &embedding.Dimension,
		&embedding.Provider, &embedding.Model, &embedding.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), chunkID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), vector, limit, filters)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.querier(), query, limit, filters)
}

// Status operations

// getStatusWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*IndexStatus, error) {
	status := &IndexStatus{BuildMode: BuildMode}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM patents", &status.PatentsCount},
		{"SELECT COUNT(*) FROM patents WHERE doc_type = 'grant'", &status.GrantsCount},
		{"SELECT COUNT(*) FROM patents WHERE doc_type = 'application'", &status.ApplicationsCount},
		{"SELECT COUNT(*) FROM chunks", &status.ChunksCount},
		{"SELECT COUNT(*) FROM embeddings", &status.EmbeddingsCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var lastIndexed sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT MAX(indexed_at) FROM patents").Scan(&lastIndexed); err == nil && lastIndexed.Valid {
		status.LastIndexedAt = parseSQLiteTime(lastIndexed.String)
	}

	version, err := currentVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.Original()

	// Calculate database size
	var pageCount, pageSize int
	err = q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var ftsName string
	ftsErr := q.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE name = 'patents_fts'").Scan(&ftsName)

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     ftsErr == nil,
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*IndexStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// parseSQLiteTime parses the textual timestamp formats both drivers produce for MAX()
func parseSQLiteTime(v string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Transaction implementations route every statement through the transaction handle

func (t *sqliteTx) UpsertPatent(ctx context.Context, patent *Patent) error {
	return t.storage.upsertPatentWithQuerier(ctx, t.querier(), patent)
}

func (t *sqliteTx) GetPatent(ctx context.Context, docID string) (*Patent, error) {
	return t.storage.getPatentWithQuerier(ctx, t.querier(), docID)
}

func (t *sqliteTx) ListPatents(ctx context.Context, offset, limit int) ([]*Patent, error) {
	return t.storage.listPatentsWithQuerier(ctx, t.querier(), offset, limit)
}

func (t *sqliteTx) DeletePatent(ctx context.Context, docID string) error {
	return t.storage.deletePatentWithQuerier(ctx, t.querier(), docID)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.upsertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID string) (*Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) ListChunks(ctx context.Context) ([]*Chunk, error) {
	return t.storage.listChunksWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) ListChunksByPatent(ctx context.Context, patentID int64) ([]*Chunk, error) {
	return t.storage.listChunksByPatentWithQuerier(ctx, t.querier(), patentID)
}

func (t *sqliteTx) ListChunksWithoutEmbedding(ctx context.Context, limit int) ([]*Chunk, error) {
	return t.storage.listChunksWithoutEmbeddingWithQuerier(ctx, t.querier(), limit)
}

func (t *sqliteTx) DeleteChunksByPatent(ctx context.Context, patentID int64) error {
	return t.storage.deleteChunksByPatentWithQuerier(ctx, t.querier(), patentID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), vector, limit, filters)
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, t.querier(), query, limit, filters)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*IndexStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, ErrNestedTx
}
