package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/patentsearch/pkg/types"
)

// Output file names for parsed corpora
const (
	GrantsFile       = "grants.jsonl"
	ApplicationsFile = "applications.jsonl"
	ChunksFile       = "chunks.jsonl"
)

// Parser converts USPTO bulk XML into patent JSONL
type Parser struct {
	logger zerolog.Logger
}

// NewParser creates a Parser that reports skipped records to logger
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseFile extracts every tag record from r and calls fn for each parsed patent.
// Records that fail to parse are logged and skipped.
func (p *Parser) ParseFile(ctx context.Context, r io.Reader, tag, sourceFile string, fn func(*types.Patent) error) (int, error) {
	count := 0
	err := SplitRecords(r, tag, func(record string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		patent, err := ParseRecord(record, tag)
		if err != nil {
			p.logger.Warn().Err(err).Str("file", sourceFile).Msg("skipping record")
			return nil
		}
		patent.SourceFile = sourceFile
		if err := fn(patent); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// ParseDirectory parses every *.xml file in dir, in name order, and writes one JSON
// object per patent to out. It returns the number of patents written.
func (p *Parser) ParseDirectory(ctx context.Context, dir, tag string, out io.Writer) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".xml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	enc := json.NewEncoder(out)
	total := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		n, err := p.parsePath(ctx, path, tag, func(patent *types.Patent) error {
			return enc.Encode(patent)
		})
		if err != nil {
			return total, err
		}
		p.logger.Info().Str("file", path).Int("patents", n).Msg("parsed file")
		total += n
	}
	return total, nil
}

func (p *Parser) parsePath(ctx context.Context, path, tag string, fn func(*types.Patent) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return p.ParseFile(ctx, f, tag, path, fn)
}

// CorpusCounts reports how many patents ParseCorpus wrote per output file
type CorpusCounts struct {
	Grants       int `json:"grants"`
	Applications int `json:"applications"`
}

// ParseCorpus parses dataDir/grants into outDir/grants.jsonl and
// dataDir/applications into outDir/applications.jsonl. A missing input
// directory is skipped.
func (p *Parser) ParseCorpus(ctx context.Context, dataDir, outDir string) (CorpusCounts, error) {
	var counts CorpusCounts
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return counts, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	jobs := []struct {
		dir   string
		tag   string
		out   string
		count *int
	}{
		{filepath.Join(dataDir, "grants"), types.RecordTagGrant, GrantsFile, &counts.Grants},
		{filepath.Join(dataDir, "applications"), types.RecordTagApplication, ApplicationsFile, &counts.Applications},
	}

	for _, job := range jobs {
		if _, err := os.Stat(job.dir); os.IsNotExist(err) {
			p.logger.Warn().Str("dir", job.dir).Msg("input directory not found, skipping")
			continue
		}
		n, err := p.writeDirectory(ctx, job.dir, job.tag, filepath.Join(outDir, job.out))
		if err != nil {
			return counts, err
		}
		*job.count = n
	}
	return counts, nil
}

func (p *Parser) writeDirectory(ctx context.Context, dir, tag, outPath string) (int, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	n, err := p.ParseDirectory(ctx, dir, tag, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	p.logger.Info().Str("output", outPath).Int("patents", n).Msg("saved patents")
	return n, nil
}

// PreprocessCorpus chunks outDir/grants.jsonl and outDir/applications.jsonl
// into outDir/chunks.jsonl. Missing inputs are skipped.
func (p *Parser) PreprocessCorpus(ctx context.Context, chunker *Chunker, dir string) (int, error) {
	outPath := filepath.Join(dir, ChunksFile)
	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer func() { _ = out.Close() }()

	total := 0
	for _, name := range []string{GrantsFile, ApplicationsFile} {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		in, err := os.Open(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return total, err
		}
		n, err := chunker.PreprocessFile(in, out)
		_ = in.Close()
		if err != nil {
			return total, fmt.Errorf("failed to preprocess %s: %w", name, err)
		}
		p.logger.Info().Str("input", name).Int("chunks", n).Msg("preprocessed")
		total += n
	}
	return total, out.Sync()
}
