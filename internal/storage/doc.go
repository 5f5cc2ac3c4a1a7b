// Package storage provides SQLite-based persistence for the patent index.
//
// The storage layer manages:
//   - Patent documents (grants and applications)
//   - Preprocessed chunks of patent text
//   - Vector embeddings for chunks
//   - An FTS5 index over patent titles and abstracts
//
// # Database Schema
//
// Tables:
//   - patents: doc_id, doc_type, text fields, source file and content hash
//   - chunks: "{doc_id}_chunk{n}" token windows of a patent
//   - embeddings: float32 vectors for chunks, little-endian blobs
//   - patents_fts: FTS5 index kept in sync by triggers
//   - schema_version: applied migrations, compared with semver
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("patents.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	patent := storage.FromTypesPatent(p)
//	if err := db.UpsertPatent(ctx, patent); err != nil {
//	    return err
//	}
//
// # Transactions
//
// Every operation is available on a Tx, and reads inside a transaction see its
// uncommitted writes. The connection pool holds a single connection, so code
// holding a Tx must not call back into the non-transactional Storage.
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpsertPatent(ctx, patent)
//	_ = tx.UpsertChunk(ctx, &storage.Chunk{ChunkID: id, PatentID: patent.ID, Text: text})
//
//	return tx.Commit()
//
// # Incremental Updates
//
// Patents carry a SHA-256 content hash. The indexer compares it with the stored
// hash and skips unchanged documents.
//
// # Vector Search
//
//	results, err := db.SearchVector(ctx, queryVector, 15, &storage.SearchFilters{
//	    DocTypes: []string{"grant"},
//	})
//
// Similarity is cosine, computed by the sqlite-vec extension (CGO build) or by an
// exhaustive scan in Go (purego build). Embeddings whose dimension differs from
// the query are ignored.
//
// # Title Search
//
// SearchText matches free text against titles and abstracts using BM25. Query
// terms are quoted, so FTS5 operators in user input are matched literally. Scores
// are mapped into (0, 1].
//
// # Build Tags
//
// CGO build (sqlite_vec tag) uses github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...
//
// Pure Go build (default) uses modernc.org/sqlite:
//
//	CGO_ENABLED=0 go build ./...
package storage
