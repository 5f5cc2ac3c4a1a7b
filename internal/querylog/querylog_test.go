package querylog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patentsearch/pkg/types"
)

func results(scores ...float64) []types.SearchResult {
	out := make([]types.SearchResult, len(scores))
	for i, s := range scores {
		out[i] = types.SearchResult{Rank: i + 1, DocID: fmt.Sprintf("US%d_chunk0", i+1), Score: s}
	}
	return out
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "query_log.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestWriter_Log(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	w := NewWriter(path)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	require.NoError(t, w.Log("battery cooling", "hybrid", results(0.9, 0.8, 0.7, 0.6, 0.5, 0.4), 0.25))
	require.NoError(t, w.Log("wireless charging", "tfidf", nil, 0.01))

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "battery cooling", first.Query)
	assert.Equal(t, "hybrid", first.Mode)
	assert.Equal(t, 6, first.NumResults)
	assert.Equal(t, []float64{0.9, 0.8, 0.7, 0.6, 0.5}, first.TopScores)
	assert.Equal(t, []string{"US1_chunk0", "US2_chunk0", "US3_chunk0", "US4_chunk0", "US5_chunk0"}, first.TopDocs)
	assert.Equal(t, 0.25, first.SearchTime)
	assert.True(t, fixed.Equal(first.Timestamp))

	assert.Equal(t, 0, entries[1].NumResults)
	assert.Empty(t, entries[1].TopScores)
}

func TestWriter_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultPath, NewWriter("").Path())
}

func TestWriter_ConcurrentLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	w := NewWriter(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, w.Log(fmt.Sprintf("query %d", i), "semantic", results(0.5), 0.1))
		}(i)
	}
	wg.Wait()

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, entries, 20, "No interleaved or lost lines")
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	path := writeLog(t,
		`{"query":"a","mode":"tfidf","top_scores":[0.5]}`,
		`not json`,
		``,
		`{"query":"b","mode":"semantic","top_scores":[0.7]}`,
	)
	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[1].Query)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestAnalyze(t *testing.T) {
	path := writeLog(t,
		`{"query":"battery","mode":"tfidf","top_scores":[0.8,0.6]}`,
		`{"query":"coil","mode":"semantic","top_scores":[0.4]}`,
		`{"query":"battery","mode":"hybrid","top_scores":[1.0,0.2]}`,
		`{"query":"coil","mode":"tfidf","top_scores":[]}`,
		`{"query":"pump","mode":"tfidf","top_scores":[]}`,
	)

	a, err := Analyze(path)
	require.NoError(t, err)

	assert.Equal(t, 5, a.TotalQueries)
	assert.Equal(t, 3, a.UniqueQueries)
	assert.Equal(t, map[string]int{"tfidf": 3, "semantic": 1, "hybrid": 1}, a.ModeUsage)
	assert.Equal(t, []QueryCount{{"battery", 2}, {"coil", 2}, {"pump", 1}}, a.MostCommonQueries)
	assert.InDelta(t, 0.6, a.AverageTopScore, 1e-9)
	assert.InDelta(t, 0.2, a.ScoreDistribution.Min, 1e-9)
	assert.InDelta(t, 1.0, a.ScoreDistribution.Max, 1e-9)
}

func TestAnalyze_MostCommonCappedAtTen(t *testing.T) {
	var lines []string
	for i := 0; i < 15; i++ {
		lines = append(lines, fmt.Sprintf(`{"query":"q%d","mode":"tfidf","top_scores":[]}`, i))
	}
	a, err := Analyze(writeLog(t, lines...))
	require.NoError(t, err)
	assert.Len(t, a.MostCommonQueries, 10)
	assert.Equal(t, "q0", a.MostCommonQueries[0].Query)
}

func TestQueryCount_JSON(t *testing.T) {
	data, err := json.Marshal([]QueryCount{{"battery", 3}})
	require.NoError(t, err)
	assert.JSONEq(t, `[["battery",3]]`, string(data))

	var back []QueryCount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []QueryCount{{"battery", 3}}, back)

	var bad QueryCount
	assert.Error(t, json.Unmarshal([]byte(`["only"]`), &bad))
}

func TestSummarize(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "absent.jsonl")
		s, err := Summarize(missing)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Log file %s not found", missing), s.Error)
		assert.Zero(t, s.TotalQueries)

		data, err := json.Marshal(s)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"mode_usage":{}`)
		assert.Contains(t, string(data), `"most_common_queries":[]`)
	})

	t.Run("existing file", func(t *testing.T) {
		path := writeLog(t, `{"query":"battery","mode":"tfidf","top_scores":[0.5,0.7]}`)
		s, err := Summarize(path)
		require.NoError(t, err)
		assert.Empty(t, s.Error)
		assert.Equal(t, path, s.LogFile)
		assert.Equal(t, 1, s.TotalQueries)
		assert.InDelta(t, 0.6, s.AverageScore, 1e-9)
	})
}

func TestBuildReport(t *testing.T) {
	entries := []Entry{
		{Query: "battery thermal", Mode: "tfidf", TopScores: []float64{0.5}, SearchTime: 0.1},
		{Query: "coil", Mode: "semantic", TopScores: []float64{0.9, 0.3}, SearchTime: 0.3},
		{Query: "battery thermal system", Mode: "tfidf", SearchTime: 0.2},
	}
	r := BuildReport(entries)

	assert.Equal(t, 3, r.Patterns.TotalQueries)
	assert.Equal(t, 3, r.Patterns.UniqueQueries)
	assert.Equal(t, 1.0, r.Patterns.QueryLength.Min)
	assert.Equal(t, 3.0, r.Patterns.QueryLength.Max)
	assert.InDelta(t, 2.0, r.Patterns.QueryLength.Avg, 1e-9)
	assert.Equal(t, 3, r.Patterns.ScoreDistribution.Count)
	assert.Equal(t, []string{"battery thermal", "battery thermal system"}, r.Patterns.QueriesByMode["tfidf"])

	assert.InDelta(t, 0.6, r.Performance.TotalTime, 1e-9)
	assert.InDelta(t, 0.2, r.Performance.AverageTime, 1e-9)
	tfidf := r.Performance.PerformanceByMode["tfidf"]
	assert.Equal(t, 2, tfidf.QueryCount)
	assert.InDelta(t, 0.1, tfidf.MinTime, 1e-9)
	assert.InDelta(t, 0.2, tfidf.MaxTime, 1e-9)
	assert.InDelta(t, 0.15, tfidf.AvgTime, 1e-9)
}

func TestBuildReport_Empty(t *testing.T) {
	r := BuildReport(nil)
	assert.Zero(t, r.Performance.AverageTime)
	assert.Empty(t, r.Patterns.MostCommonQueries)
}

func TestReport_Write(t *testing.T) {
	r := BuildReport([]Entry{
		{Query: "battery", Mode: "tfidf", TopScores: []float64{0.5}, SearchTime: 0.1},
		{Query: "battery", Mode: "hybrid", TopScores: []float64{0.7}, SearchTime: 0.3},
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.WriteJSON(&buf))
		var decoded map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Contains(t, decoded, "patterns")
		assert.Contains(t, decoded, "performance")
		assert.Contains(t, buf.String(), "\n  \"patterns\"")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.WriteCSV(&buf))

		reader := csv.NewReader(&buf)
		reader.FieldsPerRecord = -1
		rows, err := reader.ReadAll()
		require.NoError(t, err)

		assert.Equal(t, []string{"Metric", "Value"}, rows[0])
		assert.Equal(t, []string{"Total Queries", "2"}, rows[1])
		assert.Equal(t, []string{"Average Score", "0.6000"}, rows[4])
		assert.Equal(t, []string{"Average Search Time", "0.200 seconds"}, rows[5])
		assert.Equal(t, []string{"Mode", "Usage Count", "Percentage"}, rows[6])
		assert.Equal(t, []string{"hybrid", "1", "50.0%"}, rows[7])
		assert.Equal(t, []string{"Rank", "Query", "Frequency"}, rows[9])
		assert.Equal(t, []string{"1", "battery", "2"}, rows[10])
		assert.Equal(t, []string{"hybrid", "0.300", "0.300", "0.300", "1"}, rows[12])
	})
}
