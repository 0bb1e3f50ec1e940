package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/leonkenneth/RNB-coeur/internal/area"
	"github.com/leonkenneth/RNB-coeur/internal/logging"
)

// DefaultStatementTimeout covers a full national export.
const DefaultStatementTimeout = 48 * time.Hour

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Result describes a written export.
type Result struct {
	Path  string
	Rows  int64
	Bytes int64
}

// Exporter runs the area COPY and streams it to disk.
type Exporter struct {
	db               TxBeginner
	statementTimeout time.Duration
}

// NewExporter creates an Exporter. A non-positive timeout selects
// DefaultStatementTimeout.
func NewExporter(db TxBeginner, statementTimeout time.Duration) *Exporter {
	if statementTimeout <= 0 {
		statementTimeout = DefaultStatementTimeout
	}
	return &Exporter{db: db, statementTimeout: statementTimeout}
}

// CSVPath is where the export of a lands inside dir.
func CSVPath(dir string, a area.Area) string {
	return filepath.Join(dir, a.FileStem()+".csv")
}

// ExportCSV writes the export of a to dir/RNB_{area}.csv.
//
// The COPY runs in its own transaction with SET LOCAL statement_timeout so the
// server default cannot kill a long export, and the timeout does not leak to
// other users of the pooled connection.
func (e *Exporter) ExportCSV(ctx context.Context, dir string, a area.Area) (Result, error) {
	path := CSVPath(dir, a)
	logger := logging.WithFields(ctx, "stage", "extract", "path", path)

	f, err := os.Create(path)
	if err != nil {
		return Result{}, fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin export transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", e.statementTimeout.Milliseconds())); err != nil {
		return Result{}, fmt.Errorf("set statement timeout: %w", err)
	}

	start := time.Now()
	bw := bufio.NewWriterSize(f, 1<<20)
	cw := &countingWriter{w: bw}

	tag, err := tx.Conn().PgConn().CopyTo(ctx, cw, BuildQuery(a))
	if err != nil {
		return Result{}, fmt.Errorf("copy export: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return Result{}, fmt.Errorf("flush csv: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit export transaction: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("close csv: %w", err)
	}

	res := Result{Path: path, Rows: tag.RowsAffected(), Bytes: cw.n}
	logger.Info("csv export written",
		"rows", res.Rows,
		"bytes", res.Bytes,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// countingWriter tracks bytes written for the export summary.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
