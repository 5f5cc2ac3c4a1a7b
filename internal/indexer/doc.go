// Package indexer loads patents into storage and keeps their chunks embedded.
//
// A run has three stages:
//
//  1. Store: patents are written in batched transactions. A patent whose content
//     hash matches the stored copy is skipped unless Config.Force is set; a changed
//     patent has its chunks (and, by cascade, their embeddings) replaced.
//  2. Embed: chunks without an embedding are embedded in batches, with up to
//     Config.Workers requests in flight, and persisted one round per transaction.
//  3. Rebuild: the registered LexicalRebuilder refreshes the in-memory TF-IDF index.
//
// Usage:
//
//	idx := indexer.New(store, emb, indexer.WithRebuilder(searcher))
//	stats, err := idx.IndexFiles(ctx, []string{"data/grants.jsonl", "data/applications.jsonl"}, nil)
//
// Invalid patents are counted in Statistics.PatentsFailed and do not stop the run.
// Storage and embedding failures abort it. Only one run may be active per Indexer;
// a concurrent call returns ErrIndexingInProgress.
package indexer
