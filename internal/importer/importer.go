// Package importer runs batch imports of telegram triplets: reading rows
// from spreadsheet or JSONL sources and parsing them across a worker pool
// with per-row error isolation.
package importer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"telegram_parser/internal/flightplan"
	"telegram_parser/internal/telegram"
)

// Row is one input row: a telegram triplet plus its position in the
// source, kept for error reporting.
type Row struct {
	Index   int
	Triplet telegram.Triplet
}

// RowError records why one row was skipped.
type RowError struct {
	Index  int    `json:"row"`
	Reason string `json:"reason"`
}

// Result summarizes one batch.
type Result struct {
	Total    int        `json:"total"`
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors,omitempty"`

	Records []*telegram.FlightRecord `json:"-"`
}

// Importer parses row batches. Rows are independent, so the batch fans out
// across a bounded worker pool; a malformed row lands in the error list
// and never aborts the batch.
type Importer struct {
	parser  *flightplan.Parser
	workers int
	logger  *slog.Logger
}

// New builds an Importer with the given parallelism. workers < 1 means
// sequential.
func New(parser *flightplan.Parser, workers int, logger *slog.Logger) *Importer {
	if workers < 1 {
		workers = 1
	}
	return &Importer{parser: parser, workers: workers, logger: logger}
}

// Process parses every row and returns the batch summary. Records are
// ordered by source row index regardless of worker scheduling. The only
// error returned is context cancellation.
func (im *Importer) Process(ctx context.Context, rows []Row) (*Result, error) {
	res := &Result{Total: len(rows)}
	parsed := make([]*telegram.FlightRecord, len(rows))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)

	for i, row := range rows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rec, err := im.parser.Parse(row.Triplet.Center, row.Triplet.SHR, row.Triplet.DEP, row.Triplet.ARR)
			if err != nil {
				mu.Lock()
				res.Failed++
				res.Errors = append(res.Errors, RowError{Index: row.Index, Reason: err.Error()})
				mu.Unlock()
				im.logger.Warn("row skipped", "row", row.Index, "reason", err)
				return nil
			}
			parsed[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, rec := range parsed {
		if rec != nil {
			res.Imported++
			res.Records = append(res.Records, rec)
		}
	}
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Index < res.Errors[j].Index })

	im.logger.Info("batch processed",
		"total", res.Total, "imported", res.Imported, "failed", res.Failed)
	return res, nil
}

// ReadJSONL reads rows from a JSON-lines stream, one triplet object per
// line. Blank lines are skipped; a malformed line is an error, since the
// stream itself is machine-written.
func ReadJSONL(r io.Reader) ([]Row, error) {
	var rows []Row
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		data := sc.Bytes()
		if len(data) == 0 {
			continue
		}
		var t telegram.Triplet
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, Row{Index: line, Triplet: t})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return rows, nil
}
