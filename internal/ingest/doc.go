// Package ingest turns USPTO bulk XML into patent records and token chunks.
//
// Bulk grant and application files concatenate thousands of XML documents, so
// records are first split on their root tag and then decoded one at a time:
//
//	parser := ingest.NewParser(logger)
//	counts, err := parser.ParseCorpus(ctx, "data", "data/processed")
//
// Preprocessing cleans markup, lowercases, drops English stopwords and cuts the
// token stream into overlapping windows (500 tokens, 50 shared):
//
//	chunks := ingest.DefaultChunker().Preprocess(patent)
//	// chunks[0].ChunkID == "US11234567B2_chunk0"
package ingest
