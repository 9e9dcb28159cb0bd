// Package etl drives a conversion: every mapping entry is resolved against the catalog,
// its flat file is decoded into a delimited output file plus a layout file, and the rows
// are optionally loaded into a Destination.
package etl

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"copyflat/internal/decode"
	"copyflat/internal/domain"
	"copyflat/internal/textio"
)

// ── Engine ─────────────────────────────────────────────────
// Orchestrates: mapping entry → catalog lookup → decode → output/layout → destination.

// Engine runs one conversion over a catalog and a mapping.
type Engine struct {
	Catalog    *domain.Catalog
	Mapping    domain.MappingSource
	DataDir    string
	OutputDir  string
	LayoutDir  string
	FieldDelim string
	GroupDelim string

	// Dest is optional; when nil no rows are loaded.
	Dest      Destination
	LoadMode  domain.LoadMode
	BatchSize int

	// OnFile, when set, is called after each mapping entry is processed.
	OnFile func(domain.FileResult)

	// tables already written to Dest during the current run
	loaded map[string]bool
}

// RunResult is the outcome of Engine.Run.
type RunResult struct {
	Files    []domain.FileResult `json:"files"`
	Rows     int                 `json:"rows"`
	Skipped  int                 `json:"skipped"`
	Failed   int                 `json:"failed"`
	Duration time.Duration       `json:"duration"`
}

// Status summarizes the run: error when nothing succeeded and something failed,
// partial when some entries failed, success otherwise.
func (r *RunResult) Status() domain.RunStatus {
	switch {
	case r.Failed == 0:
		return domain.RunSuccess
	case r.Failed == len(r.Files)-r.Skipped:
		return domain.RunError
	default:
		return domain.RunPartial
	}
}

// Run processes every mapping entry in order. Skips and per-file failures are
// reported on the result; only cancellation and setup failures return an error.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{}

	if e.Mapping == nil {
		return result, fmt.Errorf("run: no mapping")
	}
	e.loaded = make(map[string]bool)
	for _, dir := range []string{e.OutputDir, e.layoutDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return result, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	for _, entry := range e.Mapping.Entries() {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		fr := e.convertEntry(ctx, entry)
		if err := ctx.Err(); err != nil {
			result.Files = append(result.Files, fr)
			result.Duration = time.Since(start)
			return result, err
		}

		switch {
		case fr.Skip != domain.SkipNone:
			result.Skipped++
			log.Printf("convert: skip %q -> %q: %s", entry.Table, entry.FlatFile, fr.Skip)
		case fr.Error != "":
			result.Failed++
			log.Printf("convert: %s failed: %s", fr.Table, fr.Error)
		}
		result.Rows += fr.Rows
		result.Files = append(result.Files, fr)
		if e.OnFile != nil {
			e.OnFile(fr)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) convertEntry(ctx context.Context, entry domain.TableFile) domain.FileResult {
	fr := domain.FileResult{Table: entry.Table, FlatFile: entry.FlatFile}

	if strings.TrimSpace(entry.Table) == "" {
		fr.Skip = domain.SkipBlankTable
		return fr
	}
	table, ok := e.Catalog.Lookup(entry.Table)
	if !ok {
		fr.Skip = domain.SkipUnknownTable
		return fr
	}
	if len(table.Fields) == 0 {
		fr.Skip = domain.SkipEmptySchema
		return fr
	}
	dataPath, ok := e.dataPath(entry.FlatFile)
	if !ok {
		fr.Skip = domain.SkipMissingFile
		return fr
	}

	dec, err := decode.NewDecoder(table, e.FieldDelim, e.GroupDelim)
	if err != nil {
		fr.Error = err.Error()
		return fr
	}

	name := decode.OutputName(entry.FlatFile)
	fr.Layout = filepath.Join(e.layoutDir(), name)
	if err := writeLayout(fr.Layout, dec); err != nil {
		fr.Error = err.Error()
		return fr
	}

	fr.Output = filepath.Join(e.OutputDir, name)
	rows, loaded, err := e.decodeFile(ctx, dec, dataPath, fr.Output)
	fr.Rows, fr.Loaded = rows, loaded
	if err != nil {
		fr.Error = err.Error()
	}
	return fr
}

func (e *Engine) decodeFile(ctx context.Context, dec *decode.Decoder, dataPath, outPath string) (int, int, error) {
	in, err := os.Open(dataPath)
	if err != nil {
		return 0, 0, fmt.Errorf("open data file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return 0, 0, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	var (
		sink  decode.RowSink
		batch *batchWriter
	)
	if e.Dest != nil {
		table := dec.Table().Name
		batch = &batchWriter{
			ctx:     ctx,
			dest:    e.Dest,
			table:   table,
			columns: dec.Layout(),
			mode:    e.loadMode(),
			size:    e.batchSize(),
		}
		// Several flat files can feed one table; only the first may replace it.
		if e.loaded[table] {
			batch.mode = domain.LoadAppend
		}
		defer func() {
			if batch.flushed {
				e.markLoaded(table)
			}
		}()
		sink = batch.add
	}

	n, err := dec.DecodeStream(ctx, in, out, sink)
	if err != nil {
		return n, loadedRows(batch), fmt.Errorf("decode %s: %w", filepath.Base(dataPath), err)
	}
	if batch != nil {
		if err := batch.flush(); err != nil {
			return n, batch.written, fmt.Errorf("load %s: %w", dec.Table().Name, err)
		}
	}
	if err := out.Close(); err != nil {
		return n, loadedRows(batch), fmt.Errorf("close output: %w", err)
	}
	return n, loadedRows(batch), nil
}

func loadedRows(b *batchWriter) int {
	if b == nil {
		return 0
	}
	return b.written
}

func writeLayout(path string, dec *decode.Decoder) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create layout: %w", err)
	}
	defer f.Close()
	if err := dec.WriteLayout(f); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return f.Close()
}

// dataPath resolves a mapped file name inside DataDir and reports whether it is a regular file.
func (e *Engine) dataPath(flatFile string) (string, bool) {
	flatFile = strings.TrimSpace(flatFile)
	if flatFile == "" {
		return "", false
	}
	p := flatFile
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.DataDir, p)
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

func (e *Engine) layoutDir() string {
	if e.LayoutDir != "" {
		return e.LayoutDir
	}
	return filepath.Join(e.OutputDir, "Layout")
}

func (e *Engine) loadMode() domain.LoadMode {
	if e.LoadMode == "" {
		return domain.LoadReplace
	}
	return e.LoadMode
}

func (e *Engine) markLoaded(table string) {
	if e.loaded == nil {
		e.loaded = make(map[string]bool)
	}
	e.loaded[table] = true
}

func (e *Engine) batchSize() int {
	if e.BatchSize > 0 {
		return e.BatchSize
	}
	return DefaultBatchSize
}

// ── Preview ────────────────────────────────────────────────

// Preview is the decoded head of one table's flat file.
type Preview struct {
	Table    string     `json:"table"`
	FlatFile string     `json:"flatFile"`
	Header   []string   `json:"header"`
	Rows     [][]string `json:"rows"`
}

// Decoder returns a decoder for a catalog table.
func (e *Engine) Decoder(table string) (*decode.Decoder, error) {
	t, ok := e.Catalog.Lookup(table)
	if !ok {
		return nil, fmt.Errorf("table %q not in catalog", table)
	}
	return decode.NewDecoder(t, e.FieldDelim, e.GroupDelim)
}

// Preview decodes up to maxRows records of the file mapped to table.
func (e *Engine) Preview(ctx context.Context, table string, maxRows int) (*Preview, error) {
	dec, err := e.Decoder(table)
	if err != nil {
		return nil, err
	}
	if e.Mapping == nil {
		return nil, fmt.Errorf("preview: no mapping")
	}
	flat, ok := e.Mapping.Lookup(table)
	if !ok {
		return nil, fmt.Errorf("table %q has no mapped file", table)
	}
	path, ok := e.dataPath(flat)
	if !ok {
		return nil, fmt.Errorf("data file %q: %w", flat, fs.ErrNotExist)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	p := &Preview{Table: dec.Table().Name, FlatFile: flat, Header: dec.Header()}
	lr := textio.NewLineReader(f, textio.Replace)
	for len(p.Rows) < maxRows {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		line, err := lr.Next()
		if err != nil {
			break
		}
		p.Rows = append(p.Rows, dec.DecodeLine(line))
	}
	return p, nil
}
