// Package loader writes parsed salary records to the store in fixed-size batches.
package loader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/salary-cli/internal/model"
)

// DefaultBatchSize is the number of rows per insert statement.
const DefaultBatchSize = 100

// Writer is the part of store.Store the loader needs.
type Writer interface {
	InsertBatch(ctx context.Context, records []model.SalaryRecord) (int64, error)
}

// Result counts the outcome of one Load call.
type Result struct {
	Inserted int
	Skipped  int // already present: identical identity tuple
	Invalid  int // rejected before writing, e.g. no last name
}

// Add accumulates o into r.
func (r *Result) Add(o Result) {
	r.Inserted += o.Inserted
	r.Skipped += o.Skipped
	r.Invalid += o.Invalid
}

// LoadError reports a failed batch write. Earlier batches stay written.
type LoadError struct {
	Batch int // zero-based batch ordinal
	Rows  int
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loader: batch %d (%d rows): %v", e.Batch, e.Rows, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader batches records into a Writer.
type Loader struct {
	w         Writer
	batchSize int
	log       *zap.Logger
}

// New creates a Loader. A non-positive batchSize uses DefaultBatchSize.
func New(w Writer, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{
		w:         w,
		batchSize: batchSize,
		log:       zap.L().With(zap.String("component", "loader")),
	}
}

// Load writes records with insert-or-skip semantics. Inserted counts rows the
// store reported as new; the remainder of each batch is Skipped.
func (l *Loader) Load(ctx context.Context, records []model.SalaryRecord) (Result, error) {
	var res Result

	valid := make([]model.SalaryRecord, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			res.Invalid++
			continue
		}
		valid = append(valid, r)
	}
	if res.Invalid > 0 {
		l.log.Warn("rejected invalid records", zap.Int("count", res.Invalid))
	}

	for start, batch := 0, 0; start < len(valid); start, batch = start+l.batchSize, batch+1 {
		if err := ctx.Err(); err != nil {
			return res, &LoadError{Batch: batch, Err: err}
		}
		end := min(start+l.batchSize, len(valid))
		chunk := valid[start:end]

		n, err := l.w.InsertBatch(ctx, chunk)
		if err != nil {
			return res, &LoadError{Batch: batch, Rows: len(chunk), Err: err}
		}
		res.Inserted += int(n)
		res.Skipped += len(chunk) - int(n)
	}
	return res, nil
}
