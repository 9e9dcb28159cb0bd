package etl

import (
	"context"

	"copyflat/internal/decode"
	"copyflat/internal/domain"
)

// ── Destination ────────────────────────────────────────────
// A Destination loads decoded rows into a target system.
// Implementations live in dbclient, one per driver family.

// Destination writes decoded rows of one table. columns describes the row cells
// in order; group cells still carry their members joined by the group delimiter.
type Destination interface {
	Write(ctx context.Context, table string, columns []decode.LayoutRow, rows [][]string, mode domain.LoadMode) (int, error)
}

// DefaultBatchSize is the number of rows handed to a Destination per Write.
const DefaultBatchSize = 1000

// batchWriter buffers rows and flushes them to a Destination. Only the first
// flush uses the configured mode; later flushes append.
type batchWriter struct {
	ctx     context.Context
	dest    Destination
	table   string
	columns []decode.LayoutRow
	mode    domain.LoadMode
	size    int

	buf     [][]string
	written int
	flushed bool
}

func (b *batchWriter) add(cells []string) error {
	b.buf = append(b.buf, cells)
	if len(b.buf) >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batchWriter) flush() error {
	if len(b.buf) == 0 && b.flushed {
		return nil
	}
	mode := b.mode
	if b.flushed {
		mode = domain.LoadAppend
	}
	n, err := b.dest.Write(b.ctx, b.table, b.columns, b.buf, mode)
	b.written += n
	b.flushed = true
	b.buf = nil
	return err
}
