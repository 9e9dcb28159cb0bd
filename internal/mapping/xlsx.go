package mapping

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ── Spreadsheet Source ──────────────────────────────────────
// Reads the mapping from an .xlsx workbook, first sheet unless one is named.

type xlsxSource struct{}

func init() { RegisterSource(&xlsxSource{}) }

func (s *xlsxSource) Spec() SourceSpec {
	return SourceSpec{
		Type:  "xlsx",
		Label: "Excel Workbook",
		ConfigFields: []ConfigField{
			{Key: "path", Label: "File Path", Required: true, Help: "Path to the mapping workbook"},
			{Key: "sheet", Label: "Sheet", Help: "Sheet name (default: first sheet)"},
		},
	}
}

func (s *xlsxSource) Load(ctx context.Context, cfg SourceConfig) (*Table, error) {
	path, err := requiredPath(cfg)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := stringOpt(cfg, "sheet", f.GetSheetName(0))
	if sheet == "" {
		return nil, fmt.Errorf("no sheets found in workbook")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %s is empty", ErrMissingColumns, sheet)
	}
	return FromRows(rows[0], rows[1:])
}
