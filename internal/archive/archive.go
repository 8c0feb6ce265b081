// Package archive exports aged generation history out of the hot table.
// Records older than the retention window are streamed to a zstd-compressed
// JSONL archive and then pruned, keeping the local database small on
// long-lived sites.
package archive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"seopilot/internal/types"

	"github.com/klauspost/compress/zstd"
)

// DefaultBatchSize bounds how many records are held in memory per page.
const DefaultBatchSize = 500

// HistorySource pages and prunes generation records. Implemented by
// db.GenerationRepository.
type HistorySource interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]types.GenerationRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver streams old records to an archive writer and deletes what it
// wrote.
type Archiver struct {
	history   HistorySource
	clock     types.Clock
	logger    *slog.Logger
	retention time.Duration
	batchSize int
}

func NewArchiver(history HistorySource, retention time.Duration, clock types.Clock, logger *slog.Logger) *Archiver {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		history:   history,
		clock:     clock,
		logger:    logger,
		retention: retention,
		batchSize: DefaultBatchSize,
	}
}

// Run archives everything older than the retention window into w as
// zstd-compressed JSONL and prunes the exported rows. It returns the number
// of records written.
//
// Pages are exported and deleted in lockstep: a page is pruned only after
// its records reached the writer, so a crash mid-run loses no history, it
// only leaves some rows for the next run.
func (a *Archiver) Run(ctx context.Context, w io.Writer) (int, error) {
	cutoff := a.clock.Now().Add(-a.retention)

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create archive compressor", err)
	}

	enc := json.NewEncoder(zw)
	total := 0
	pageLimit := a.batchSize

	for {
		recs, err := a.history.ListBefore(ctx, cutoff, pageLimit)
		if err != nil {
			zw.Close()
			return total, err
		}
		if len(recs) == 0 {
			break
		}

		// The timestamp is the only paging key, so a full page must not
		// end mid-way through a group of rows sharing one created_at:
		// pruning past that timestamp would delete siblings the page
		// never saw.
		full := len(recs) == pageLimit
		if full {
			lastTs := recs[len(recs)-1].CreatedAt
			if recs[0].CreatedAt.Equal(lastTs) {
				// The whole page is one group and it may continue past
				// the boundary. Widen until the group fits.
				pageLimit *= 2
				continue
			}
			// Hold the boundary group back for the next page.
			i := len(recs) - 1
			for recs[i-1].CreatedAt.Equal(lastTs) {
				i--
			}
			recs = recs[:i]
		}

		for _, rec := range recs {
			if err := enc.Encode(rec); err != nil {
				zw.Close()
				return total, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode archive record", err)
			}
		}
		total += len(recs)

		// Every row at or before the last exported timestamp is now in
		// the archive, so the prune cannot touch an unexported row.
		pruneCutoff := recs[len(recs)-1].CreatedAt.Add(time.Nanosecond)
		if pruneCutoff.After(cutoff) {
			pruneCutoff = cutoff
		}
		if _, err := a.history.DeleteBefore(ctx, pruneCutoff); err != nil {
			zw.Close()
			return total, err
		}

		if !full {
			break
		}
		pageLimit = a.batchSize
	}

	if err := zw.Close(); err != nil {
		return total, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to finalize archive", err)
	}

	a.logger.InfoContext(ctx, "generation history archived",
		slog.Int("records", total),
		slog.Time("cutoff", cutoff))

	return total, nil
}

// Read decompresses an archive produced by Run back into records, for
// restore tooling and tests.
func Read(r io.Reader) ([]types.GenerationRecord, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to open archive", err)
	}
	defer zr.Close()

	var out []types.GenerationRecord
	dec := json.NewDecoder(zr)
	for {
		var rec types.GenerationRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "corrupt archive record", err)
		}
		out = append(out, rec)
	}

	return out, nil
}
