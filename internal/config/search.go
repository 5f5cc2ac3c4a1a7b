package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"

	"github.com/dshills/patentsearch/internal/searcher"
)

// Query types produced by DetectQueryType
const (
	QueryKeywordHeavy = "keyword_heavy"
	QueryConceptual   = "conceptual"
	QueryMixed        = "mixed"
)

// Section name prefixes accepted by Section and Update
const (
	SectionDefault    = "default"
	SectionModes      = "modes"
	SectionProfiles   = "profiles"
	SectionQueryTypes = "query_types"
)

var (
	keywordIndicators = []string{
		"algorithm", "method", "system", "apparatus", "device",
		"patent", "us", "uspto", "application", "grant",
	}
	conceptualIndicators = []string{
		"how", "what", "why", "when", "where", "which",
		"improve", "enhance", "optimize", "better", "efficient",
	}
)

// ErrUnknownKey is returned by Update for a setting that does not exist
var ErrUnknownKey = errors.New("unknown setting")

// Settings is one section of search_config.yaml. Nil fields are unset and
// leave the underlying value alone when merged.
type Settings struct {
	Mode            *string  `yaml:"mode,omitempty" json:"mode,omitempty"`
	Alpha           *float64 `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	TopK            *int     `yaml:"top_k,omitempty" json:"top_k,omitempty"`
	Rerank          *bool    `yaml:"rerank,omitempty" json:"rerank,omitempty"`
	TFIDFWeight     *float64 `yaml:"tfidf_weight,omitempty" json:"tfidf_weight,omitempty"`
	SemanticWeight  *float64 `yaml:"semantic_weight,omitempty" json:"semantic_weight,omitempty"`
	IncludeSnippets *bool    `yaml:"include_snippets,omitempty" json:"include_snippets,omitempty"`
	IncludeMetadata *bool    `yaml:"include_metadata,omitempty" json:"include_metadata,omitempty"`
	LogEnabled      *bool    `yaml:"log_enabled,omitempty" json:"log_enabled,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// DefaultSettings are used when no config file exists
func DefaultSettings() Settings {
	return Settings{
		Mode:            ptr(string(searcher.ModeHybrid)),
		Alpha:           ptr(0.6),
		TopK:            ptr(10),
		Rerank:          ptr(true),
		TFIDFWeight:     ptr(0.3),
		SemanticWeight:  ptr(0.7),
		IncludeSnippets: ptr(true),
		IncludeMetadata: ptr(true),
		LogEnabled:      ptr(false),
	}
}

// Merge returns s with every field set in over replaced
func (s Settings) Merge(over Settings) Settings {
	if over.Mode != nil {
		s.Mode = over.Mode
	}
	if over.Alpha != nil {
		s.Alpha = over.Alpha
	}
	if over.TopK != nil {
		s.TopK = over.TopK
	}
	if over.Rerank != nil {
		s.Rerank = over.Rerank
	}
	if over.TFIDFWeight != nil {
		s.TFIDFWeight = over.TFIDFWeight
	}
	if over.SemanticWeight != nil {
		s.SemanticWeight = over.SemanticWeight
	}
	if over.IncludeSnippets != nil {
		s.IncludeSnippets = over.IncludeSnippets
	}
	if over.IncludeMetadata != nil {
		s.IncludeMetadata = over.IncludeMetadata
	}
	if over.LogEnabled != nil {
		s.LogEnabled = over.LogEnabled
	}
	return s
}

// Apply copies every set field onto req
func (s Settings) Apply(req *searcher.Request) {
	if s.Mode != nil {
		req.Mode = searcher.Mode(*s.Mode)
	}
	if s.Alpha != nil {
		req.Alpha = *s.Alpha
	}
	if s.TopK != nil {
		req.TopK = *s.TopK
	}
	if s.Rerank != nil {
		req.Rerank = *s.Rerank
	}
	if s.TFIDFWeight != nil {
		req.TFIDFWeight = *s.TFIDFWeight
	}
	if s.SemanticWeight != nil {
		req.SemanticWeight = *s.SemanticWeight
	}
	if s.IncludeSnippets != nil {
		req.IncludeSnippets = *s.IncludeSnippets
	}
	if s.IncludeMetadata != nil {
		req.IncludeMetadata = *s.IncludeMetadata
	}
	if s.LogEnabled != nil {
		req.LogEnabled = *s.LogEnabled
	}
}

// set parses value for key and stores it
func (s *Settings) set(key, value string) error {
	parseBool := func(dst **bool) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = &b
		return nil
	}
	parseFloat := func(dst **float64) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = &f
		return nil
	}

	switch key {
	case "mode":
		s.Mode = &value
		return nil
	case "top_k":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		s.TopK = &n
		return nil
	case "alpha":
		return parseFloat(&s.Alpha)
	case "tfidf_weight":
		return parseFloat(&s.TFIDFWeight)
	case "semantic_weight":
		return parseFloat(&s.SemanticWeight)
	case "rerank":
		return parseBool(&s.Rerank)
	case "include_snippets":
		return parseBool(&s.IncludeSnippets)
	case "include_metadata":
		return parseBool(&s.IncludeMetadata)
	case "log_enabled":
		return parseBool(&s.LogEnabled)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// SearchFile is the on-disk layout of search_config.yaml
type SearchFile struct {
	Default    Settings            `yaml:"default"`
	Modes      map[string]Settings `yaml:"modes,omitempty"`
	Profiles   map[string]Settings `yaml:"profiles,omitempty"`
	QueryTypes map[string]Settings `yaml:"query_types,omitempty"`
}

// SearchConfig holds search profiles loaded from YAML. It is safe for concurrent use.
type SearchConfig struct {
	path string
	mu   sync.RWMutex
	file SearchFile
}

// LoadSearchConfig reads path. A missing or unreadable file falls back to
// DefaultSettings with a warning so the service can still start.
func LoadSearchConfig(path string, logger zerolog.Logger) *SearchConfig {
	sc := &SearchConfig{path: path, file: SearchFile{Default: DefaultSettings()}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Str("path", path).Msg("search config not found, using defaults")
		} else {
			logger.Warn().Err(err).Str("path", path).Msg("failed to read search config, using defaults")
		}
		return sc
	}

	var file SearchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to parse search config, using defaults")
		return sc
	}
	file.Default = DefaultSettings().Merge(file.Default)
	sc.file = file
	return sc
}

// Path returns the file the config was loaded from
func (c *SearchConfig) Path() string {
	return c.path
}

// Default returns the default section
func (c *SearchConfig) Default() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.file.Default
}

// Mode returns default settings overlaid with modes.<mode>
func (c *SearchConfig) Mode(mode string) Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.file.Default.Merge(c.file.Modes[mode])
}

// Profile returns default settings overlaid with profiles.<name>
func (c *SearchConfig) Profile(name string) Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.file.Default.Merge(c.file.Profiles[name])
}

// QueryType returns default settings overlaid with query_types.<name>
func (c *SearchConfig) QueryType(name string) Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.file.Default.Merge(c.file.QueryTypes[name])
}

// Section returns the raw section named "default", "modes.<m>", "profiles.<p>"
// or "query_types.<q>". Unknown names return the default section.
func (c *SearchConfig) Section(name string) Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	group, key, _ := strings.Cut(name, ".")
	var m map[string]Settings
	switch group {
	case SectionModes:
		m = c.file.Modes
	case SectionProfiles:
		m = c.file.Profiles
	case SectionQueryTypes:
		m = c.file.QueryTypes
	}
	if s, ok := m[key]; ok {
		return s
	}
	return c.file.Default
}

// Optimized layers default, then the profile (when given), then the section for
// the detected query type.
func (c *SearchConfig) Optimized(query, profile string) Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.file.Default
	if profile != "" {
		s = s.Merge(c.file.Profiles[profile])
	}
	return s.Merge(c.file.QueryTypes[DetectQueryType(query)])
}

// Update sets key in section to value, creating the section when needed
func (c *SearchConfig) Update(section, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	group, name, hasName := strings.Cut(section, ".")
	if group == SectionDefault && !hasName {
		return c.file.Default.set(key, value)
	}

	var m *map[string]Settings
	switch group {
	case SectionModes:
		m = &c.file.Modes
	case SectionProfiles:
		m = &c.file.Profiles
	case SectionQueryTypes:
		m = &c.file.QueryTypes
	}
	if m == nil || !hasName || name == "" {
		return fmt.Errorf("invalid section %q", section)
	}
	if *m == nil {
		*m = make(map[string]Settings)
	}
	s := (*m)[name]
	if err := s.set(key, value); err != nil {
		return err
	}
	(*m)[name] = s
	return nil
}

// Save writes the config as YAML to path, or to the load path when path is empty
func (c *SearchConfig) Save(path string) error {
	if path == "" {
		path = c.path
	}

	c.mu.RLock()
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(c.file)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode search config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode search config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write search config: %w", err)
	}
	return nil
}

// Modes lists the configured mode sections
func (c *SearchConfig) Modes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedNames(c.file.Modes)
}

// Profiles lists the configured profile sections
func (c *SearchConfig) Profiles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedNames(c.file.Profiles)
}

// QueryTypes lists the configured query type sections
func (c *SearchConfig) QueryTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedNames(c.file.QueryTypes)
}

func sortedNames(m map[string]Settings) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DetectQueryType classifies query by substring hits against keyword and
// conceptual indicator lists.
func DetectQueryType(query string) string {
	q := strings.ToLower(query)

	keyword := 0
	for _, ind := range keywordIndicators {
		if strings.Contains(q, ind) {
			keyword++
		}
	}
	conceptual := 0
	for _, ind := range conceptualIndicators {
		if strings.Contains(q, ind) {
			conceptual++
		}
	}

	switch {
	case keyword > conceptual:
		return QueryKeywordHeavy
	case conceptual > keyword:
		return QueryConceptual
	default:
		return QueryMixed
	}
}
