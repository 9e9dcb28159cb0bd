package domain

import "time"

// TableFile is one row of the table↔file mapping.
type TableFile struct {
	Table    string `json:"table" yaml:"table" toml:"table"`
	FlatFile string `json:"flatFile" yaml:"flatFile" toml:"flatFile"`
}

// MappingSource is the minimal view the conversion engine needs of the mapping.
// Any backing format (delimited text, spreadsheet, embedded database, literal list) satisfies it.
type MappingSource interface {
	// Lookup returns the flat file mapped to a table.
	Lookup(table string) (string, bool)
	// Entries returns the mapping rows in source order.
	Entries() []TableFile
}

// SkipReason explains why a mapping row produced no output.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipBlankTable   SkipReason = "blank_table"
	SkipUnknownTable SkipReason = "unknown_table"
	SkipMissingFile  SkipReason = "missing_file"
	SkipEmptySchema  SkipReason = "empty_schema"
)

// FileResult is the outcome of converting one mapping row.
type FileResult struct {
	ID       string     `json:"id"`
	RunID    string     `json:"runId"`
	Table    string     `json:"table"`
	FlatFile string     `json:"flatFile"`
	Output   string     `json:"output,omitempty"`
	Layout   string     `json:"layout,omitempty"`
	Rows     int        `json:"rows"`
	Loaded   int        `json:"loaded"`
	Skip     SkipReason `json:"skip,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// RunStatus is the lifecycle state of a conversion run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunError   RunStatus = "error"
)

// RunLog is a historical record of a conversion run.
type RunLog struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"` // "cli" | "schedule" | "file_watch" | "mcp"
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     RunStatus `json:"status"`
	Files      int       `json:"files"`
	Skipped    int       `json:"skipped"`
	Rows       int       `json:"rows"`
	Error      string    `json:"error,omitempty"`
}

// LoadMode determines how decoded rows are written to a load target.
type LoadMode string

const (
	LoadReplace LoadMode = "replace" // clear the target table, then insert
	LoadAppend  LoadMode = "append"  // insert without clearing
)
