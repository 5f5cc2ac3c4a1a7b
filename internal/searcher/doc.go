// Package searcher ranks patent chunks by lexical, embedding and blended scores.
//
// Four modes are supported:
//   - tfidf: cosine similarity over the in-memory TF-IDF index
//   - semantic: nearest neighbours of the query embedding (default)
//   - hybrid: alpha*semantic + (1-alpha)*tfidf over raw scores
//   - hybrid-advanced: min-max normalized tfidf_weight*tfidf + semantic_weight*semantic
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb, searcher.WithLogger(logger))
//	if err := s.RebuildLexical(ctx); err != nil {
//	    return err
//	}
//
//	req := searcher.NewRequest("battery thermal management")
//	req.Mode = searcher.ModeHybrid
//	req.Alpha = 0.6
//	resp, err := s.Search(ctx, req)
//
// # Reranking
//
// With Rerank set, a wider candidate pool is fetched and every candidate's score
// becomes semantic_weight*score + tfidf_weight*Jaccard(chunk, query) before the
// list is truncated to top_k.
//
// # Caching
//
// Responses are cached in an LRU keyed by a SHA-256 of every request field and
// expire after the configured TTL. RebuildLexical and InvalidateCache purge the cache.
//
// # Errors
//
// Invalid requests return *types.ValidationError with the message shown to clients,
// for example "top_k cannot exceed 100".
package searcher
