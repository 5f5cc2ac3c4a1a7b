package searcher

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(req Request) *Response {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}

	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a copy of response under the request hash. The store is
// skipped when the cache was invalidated after gen was read, so a search that
// raced a rebuild cannot repopulate the cache with results from the old index.
func (s *Searcher) storeInCache(req Request, response *Response, gen uint64) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen != s.cacheGen {
		return
	}
	s.cache.Add(computeQueryHash(req), entry)
}

// cacheGeneration returns the current invalidation generation
func (s *Searcher) cacheGeneration() uint64 {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cacheGen
}

// InvalidateCache drops every cached response. Called after reindexing.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cacheGen++
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

// copyResponse creates a deep copy of a Response.
// SearchResult holds only value fields, so copying the slice is enough.
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = append(src.Results[:0:0], src.Results...)
	return &dst
}

// computeQueryHash hashes every field that influences the result list
func computeQueryHash(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	fmt.Fprintf(&data, "|%d|%g|%g|%g|%t|%t|%t",
		req.TopK, req.Alpha, req.TFIDFWeight, req.SemanticWeight,
		req.Rerank, req.IncludeSnippets, req.IncludeMetadata)

	if req.Filters != nil {
		data.WriteString("|filters:")
		data.WriteString(strings.Join(req.Filters.DocTypes, ","))
		data.WriteString("|")
		data.WriteString(strings.Join(req.Filters.DocIDs, ","))
		fmt.Fprintf(&data, "|%.2f", req.Filters.MinRelevance)
	}

	return sha256.Sum256([]byte(data.String()))
}
