package mapping

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"copyflat/internal/textio"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads the mapping from a delimited text file. UTF-8 is tried first, Latin-1 otherwise.

type csvFileSource struct{}

func init() { RegisterSource(&csvFileSource{}) }

func (s *csvFileSource) Spec() SourceSpec {
	return SourceSpec{
		Type:  "csv",
		Label: "CSV File",
		ConfigFields: []ConfigField{
			{Key: "path", Label: "File Path", Required: true, Help: "Path to the mapping CSV"},
			{Key: "delimiter", Label: "Delimiter", Default: ",", Help: "Column delimiter (default: comma)"},
		},
	}
}

func (s *csvFileSource) Load(ctx context.Context, cfg SourceConfig) (*Table, error) {
	path, err := requiredPath(cfg)
	if err != nil {
		return nil, err
	}
	text, err := textio.ReadFile(path, textio.Latin1)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(text))
	if delim := []rune(stringOpt(cfg, "delimiter", ",")); len(delim) > 0 {
		reader.Comma = delim[0]
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty csv file", ErrMissingColumns)
	}
	return FromRows(records[0], records[1:])
}
