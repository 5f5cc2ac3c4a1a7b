package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Output formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatBoth = "both"
)

var csvHeader = []string{
	"query", "mode", "search_time", "num_results", "rank",
	"doc_id", "base_doc_id", "score", "title", "doc_type", "snippet",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteCSV writes one row per result. Queries without results produce no rows.
func WriteCSV(w io.Writer, results []QueryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, qr := range results {
		for _, res := range qr.Results {
			row := []string{
				qr.Query,
				qr.Mode,
				formatFloat(qr.SearchTime),
				strconv.Itoa(qr.NumResults),
				strconv.Itoa(res.Rank),
				res.DocID,
				res.BaseDocID,
				formatFloat(res.Score),
				res.Title,
				res.DocType,
				res.Snippet,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes results as JSON indented by two spaces
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// ScoreStats summarizes every result score in a batch
type ScoreStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// Summary aggregates a batch run
type Summary struct {
	TotalQueries           int         `json:"total_queries"`
	SuccessfulQueries      int         `json:"successful_queries"`
	FailedQueries          int         `json:"failed_queries"`
	TotalSearchTime        float64     `json:"total_search_time"`
	AverageSearchTime      float64     `json:"average_search_time"`
	TotalResults           int         `json:"total_results"`
	AverageResultsPerQuery float64     `json:"average_results_per_query"`
	ScoreStatistics        *ScoreStats `json:"score_statistics"`
}

// Summarize computes batch statistics
func Summarize(results []QueryResult) Summary {
	s := Summary{TotalQueries: len(results)}
	var stats *ScoreStats
	sum := 0.0

	for _, qr := range results {
		if !qr.Failed() {
			s.SuccessfulQueries++
		}
		s.TotalSearchTime += qr.SearchTime
		s.TotalResults += qr.NumResults

		for _, res := range qr.Results {
			if stats == nil {
				stats = &ScoreStats{Min: res.Score, Max: res.Score}
			}
			if res.Score < stats.Min {
				stats.Min = res.Score
			}
			if res.Score > stats.Max {
				stats.Max = res.Score
			}
			sum += res.Score
			stats.Count++
		}
	}
	s.FailedQueries = s.TotalQueries - s.SuccessfulQueries

	if s.TotalQueries > 0 {
		s.AverageSearchTime = s.TotalSearchTime / float64(s.TotalQueries)
		s.AverageResultsPerQuery = float64(s.TotalResults) / float64(s.TotalQueries)
	}
	if stats != nil {
		stats.Avg = sum / float64(stats.Count)
		s.ScoreStatistics = stats
	} else {
		s.ScoreStatistics = &ScoreStats{}
	}
	return s
}

// Save writes results in the requested format plus a summary file and returns the
// paths written. Names follow OutputName.
func Save(prefix, mode, format string, results []QueryResult, at time.Time) ([]string, error) {
	var written []string

	writeFile := func(name string, fn func(io.Writer) error) error {
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, name)
		return nil
	}

	switch format {
	case FormatCSV, FormatJSON, FormatBoth:
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	if format == FormatCSV || format == FormatBoth {
		name := OutputName(prefix, mode, at, ".csv")
		if err := writeFile(name, func(w io.Writer) error { return WriteCSV(w, results) }); err != nil {
			return written, err
		}
	}
	if format == FormatJSON || format == FormatBoth {
		name := OutputName(prefix, mode, at, ".json")
		if err := writeFile(name, func(w io.Writer) error { return WriteJSON(w, results) }); err != nil {
			return written, err
		}
	}

	summary := Summarize(results)
	name := OutputName(prefix, mode, at, "_summary.json")
	if err := writeFile(name, func(w io.Writer) error { return WriteJSON(w, summary) }); err != nil {
		return written, err
	}
	return written, nil
}
