package querylog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// QueryCount is a query and how often it was logged. It encodes as [query, count].
type QueryCount struct {
	Query string
	Count int
}

func (qc QueryCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{qc.Query, qc.Count})
}

func (qc *QueryCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("query count: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &qc.Query); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &qc.Count)
}

// Distribution summarizes a set of numbers
type Distribution struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count,omitempty"`
}

func distribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	d := Distribution{Min: values[0], Max: values[0], Count: len(values)}
	sum := 0.0
	for _, v := range values {
		if v < d.Min {
			d.Min = v
		}
		if v > d.Max {
			d.Max = v
		}
		sum += v
	}
	d.Avg = sum / float64(len(values))
	return d
}

// Analysis is the summary served by the logs endpoint
type Analysis struct {
	TotalQueries      int            `json:"total_queries"`
	UniqueQueries     int            `json:"unique_queries"`
	ModeUsage         map[string]int `json:"mode_usage"`
	MostCommonQueries []QueryCount   `json:"most_common_queries"`
	AverageTopScore   float64        `json:"average_top_score"`
	ScoreDistribution Distribution   `json:"score_distribution"`
}

// Analyze loads path and summarizes it
func Analyze(path string) (*Analysis, error) {
	entries, err := Load(path)
	if err != nil {
		return nil, err
	}
	return AnalyzeEntries(entries), nil
}

// AnalyzeEntries summarizes already loaded entries
func AnalyzeEntries(entries []Entry) *Analysis {
	a := &Analysis{
		TotalQueries:      len(entries),
		ModeUsage:         make(map[string]int),
		MostCommonQueries: mostCommon(entries, 10),
	}

	unique := make(map[string]struct{})
	var scores []float64
	for _, e := range entries {
		unique[e.Query] = struct{}{}
		a.ModeUsage[e.Mode]++
		scores = append(scores, e.TopScores...)
	}
	a.UniqueQueries = len(unique)

	a.ScoreDistribution = distribution(scores)
	a.ScoreDistribution.Count = 0
	a.AverageTopScore = a.ScoreDistribution.Avg
	return a
}

// mostCommon counts queries and returns the n most frequent.
// Ties keep first-seen order.
func mostCommon(entries []Entry, n int) []QueryCount {
	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		if _, ok := counts[e.Query]; !ok {
			order = append(order, e.Query)
		}
		counts[e.Query]++
	}

	out := make([]QueryCount, len(order))
	for i, q := range order {
		out[i] = QueryCount{Query: q, Count: counts[q]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// EndpointSummary is the shape returned by GET /logs/analyze
type EndpointSummary struct {
	Error             string         `json:"error,omitempty"`
	LogFile           string         `json:"log_file,omitempty"`
	TotalQueries      int            `json:"total_queries"`
	UniqueQueries     int            `json:"unique_queries"`
	ModeUsage         map[string]int `json:"mode_usage"`
	AverageScore      float64        `json:"average_score"`
	MostCommonQueries []QueryCount   `json:"most_common_queries"`
}

// Summarize builds the endpoint summary for path. A missing file is reported
// in the Error field with zero counts, not as an error.
func Summarize(path string) (*EndpointSummary, error) {
	a, err := Analyze(path)
	if errors.Is(err, ErrLogNotFound) {
		return &EndpointSummary{
			Error:             fmt.Sprintf("Log file %s not found", path),
			ModeUsage:         map[string]int{},
			MostCommonQueries: []QueryCount{},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &EndpointSummary{
		LogFile:           path,
		TotalQueries:      a.TotalQueries,
		UniqueQueries:     a.UniqueQueries,
		ModeUsage:         a.ModeUsage,
		AverageScore:      a.AverageTopScore,
		MostCommonQueries: a.MostCommonQueries,
	}, nil
}

// Patterns describes what users searched for
type Patterns struct {
	TotalQueries      int                 `json:"total_queries"`
	UniqueQueries     int                 `json:"unique_queries"`
	ModeUsage         map[string]int      `json:"mode_usage"`
	QueryLength       Distribution        `json:"query_length_distribution"`
	ScoreDistribution Distribution        `json:"score_distribution"`
	MostCommonQueries []QueryCount        `json:"most_common_queries"`
	QueriesByMode     map[string][]string `json:"queries_by_mode"`
}

// ModePerformance is search timing for one mode
type ModePerformance struct {
	AvgTime    float64 `json:"avg_time"`
	MinTime    float64 `json:"min_time"`
	MaxTime    float64 `json:"max_time"`
	QueryCount int     `json:"query_count"`
}

// Performance describes search timing
type Performance struct {
	TotalQueries      int                        `json:"total_queries"`
	TotalTime         float64                    `json:"total_time"`
	AverageTime       float64                    `json:"average_time"`
	PerformanceByMode map[string]ModePerformance `json:"performance_by_mode"`
}

// Report is the full offline analysis of a log
type Report struct {
	Patterns    Patterns    `json:"patterns"`
	Performance Performance `json:"performance"`
}

// BuildReport analyzes entries for the CLI report
func BuildReport(entries []Entry) *Report {
	p := Patterns{
		TotalQueries:      len(entries),
		ModeUsage:         make(map[string]int),
		MostCommonQueries: mostCommon(entries, 20),
		QueriesByMode:     make(map[string][]string),
	}
	perf := Performance{
		TotalQueries:      len(entries),
		PerformanceByMode: make(map[string]ModePerformance),
	}

	unique := make(map[string]struct{})
	var lengths, scores []float64
	times := make(map[string][]float64)
	for _, e := range entries {
		unique[e.Query] = struct{}{}
		p.ModeUsage[e.Mode]++
		p.QueriesByMode[e.Mode] = append(p.QueriesByMode[e.Mode], e.Query)
		lengths = append(lengths, float64(len(strings.Fields(e.Query))))
		scores = append(scores, e.TopScores...)
		times[e.Mode] = append(times[e.Mode], e.SearchTime)
		perf.TotalTime += e.SearchTime
	}
	p.UniqueQueries = len(unique)
	p.QueryLength = distribution(lengths)
	p.QueryLength.Count = 0
	p.ScoreDistribution = distribution(scores)

	if len(entries) > 0 {
		perf.AverageTime = perf.TotalTime / float64(len(entries))
	}
	for mode, ts := range times {
		d := distribution(ts)
		perf.PerformanceByMode[mode] = ModePerformance{
			AvgTime:    d.Avg,
			MinTime:    d.Min,
			MaxTime:    d.Max,
			QueryCount: d.Count,
		}
	}

	return &Report{Patterns: p, Performance: perf}
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// WriteCSV writes the report as a sectioned CSV: summary, mode usage,
// most common queries and per-mode timing, separated by blank rows.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	p, perf := r.Patterns, r.Performance

	rows := [][]string{
		{"Metric", "Value"},
		{"Total Queries", strconv.Itoa(p.TotalQueries)},
		{"Unique Queries", strconv.Itoa(p.UniqueQueries)},
		{"Average Query Length", fmt.Sprintf("%.1f words", p.QueryLength.Avg)},
		{"Average Score", fmt.Sprintf("%.4f", p.ScoreDistribution.Avg)},
		{"Average Search Time", fmt.Sprintf("%.3f seconds", perf.AverageTime)},
		{},
		{"Mode", "Usage Count", "Percentage"},
	}

	for _, mode := range sortedKeys(p.ModeUsage) {
		count := p.ModeUsage[mode]
		pct := 0.0
		if p.TotalQueries > 0 {
			pct = float64(count) / float64(p.TotalQueries) * 100
		}
		rows = append(rows, []string{mode, strconv.Itoa(count), fmt.Sprintf("%.1f%%", pct)})
	}

	rows = append(rows, []string{}, []string{"Rank", "Query", "Frequency"})
	for i, qc := range p.MostCommonQueries {
		rows = append(rows, []string{strconv.Itoa(i + 1), qc.Query, strconv.Itoa(qc.Count)})
	}

	rows = append(rows, []string{}, []string{"Mode", "Avg Time (s)", "Min Time (s)", "Max Time (s)", "Query Count"})
	modes := make([]string, 0, len(perf.PerformanceByMode))
	for m := range perf.PerformanceByMode {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		mp := perf.PerformanceByMode[mode]
		rows = append(rows, []string{
			mode,
			fmt.Sprintf("%.3f", mp.AvgTime),
			fmt.Sprintf("%.3f", mp.MinTime),
			fmt.Sprintf("%.3f", mp.MaxTime),
			strconv.Itoa(mp.QueryCount),
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv report: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
