package archive

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"seopilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHistory is an in-memory generation table ordered by creation time.
type fakeHistory struct {
	recs []types.GenerationRecord
}

func (f *fakeHistory) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]types.GenerationRecord, error) {
	var out []types.GenerationRecord
	for _, rec := range f.recs {
		if rec.CreatedAt.Before(cutoff) {
			out = append(out, rec)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeHistory) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []types.GenerationRecord
	var deleted int64
	for _, rec := range f.recs {
		if rec.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	f.recs = kept
	return deleted, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func record(id string, createdAt time.Time) types.GenerationRecord {
	return types.GenerationRecord{
		ID:          id,
		LocalUserID: "u-1",
		PostID:      "p-" + id,
		Status:      types.GenerationSucceeded,
		CreatedAt:   createdAt,
	}
}

func newTestArchiver(history *fakeHistory, now time.Time, retention time.Duration) *Archiver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewArchiver(history, retention, fixedClock{now: now}, logger)
}

func TestRun_ExportsAndPrunesOldRecords(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{recs: []types.GenerationRecord{
		record("old-1", now.Add(-60*24*time.Hour)),
		record("old-2", now.Add(-40*24*time.Hour)),
		record("recent", now.Add(-time.Hour)),
	}}
	archiver := newTestArchiver(history, now, 30*24*time.Hour)

	var buf bytes.Buffer
	n, err := archiver.Run(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Recent record survived the prune.
	require.Len(t, history.recs, 1)
	assert.Equal(t, "recent", history.recs[0].ID)

	// The archive round-trips.
	restored, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, restored, 2)
	assert.Equal(t, "old-1", restored[0].ID)
	assert.Equal(t, "old-2", restored[1].ID)
}

func TestRun_NothingToArchive(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{recs: []types.GenerationRecord{
		record("recent", now.Add(-time.Hour)),
	}}
	archiver := newTestArchiver(history, now, 30*24*time.Hour)

	var buf bytes.Buffer
	n, err := archiver.Run(context.Background(), &buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, history.recs, 1)

	// An empty archive still reads back cleanly.
	restored, err := Read(&buf)
	require.NoError(t, err)
	assert.Empty(t, restored)
}

func TestRun_PagesLargeBacklogs(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{}
	for i := 0; i < 1203; i++ {
		history.recs = append(history.recs,
			record(time.Duration(i).String(), now.Add(-90*24*time.Hour).Add(time.Duration(i)*time.Minute)))
	}
	archiver := newTestArchiver(history, now, 30*24*time.Hour)

	var buf bytes.Buffer
	n, err := archiver.Run(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 1203, n)
	assert.Empty(t, history.recs)

	restored, err := Read(&buf)
	require.NoError(t, err)
	assert.Len(t, restored, 1203)
}

func TestRun_TieGroupLargerThanPage(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	sharedTs := now.Add(-90 * 24 * time.Hour)

	history := &fakeHistory{}
	for i := 0; i < DefaultBatchSize+1; i++ {
		history.recs = append(history.recs, record(time.Duration(i).String(), sharedTs))
	}
	archiver := newTestArchiver(history, now, 30*24*time.Hour)

	var buf bytes.Buffer
	n, err := archiver.Run(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize+1, n)
	assert.Empty(t, history.recs)

	restored, err := Read(&buf)
	require.NoError(t, err)
	assert.Len(t, restored, DefaultBatchSize+1)
}

func TestRun_TieGroupStraddlingPageBoundary(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	base := now.Add(-90 * 24 * time.Hour)

	// 499 rows at distinct timestamps, then 3 rows sharing one timestamp;
	// the first page of 500 cuts through the shared group.
	history := &fakeHistory{}
	for i := 0; i < DefaultBatchSize-1; i++ {
		history.recs = append(history.recs,
			record(time.Duration(i).String(), base.Add(time.Duration(i)*time.Minute)))
	}
	sharedTs := base.Add(time.Duration(DefaultBatchSize) * time.Minute)
	for i := 0; i < 3; i++ {
		history.recs = append(history.recs, record("tie-"+time.Duration(i).String(), sharedTs))
	}
	archiver := newTestArchiver(history, now, 30*24*time.Hour)

	var buf bytes.Buffer
	n, err := archiver.Run(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize+2, n)
	assert.Empty(t, history.recs)

	restored, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, restored, DefaultBatchSize+2)
	assert.Equal(t, "tie-0s", restored[DefaultBatchSize-1].ID)
}

func TestRead_RejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a zstd stream")))
	require.Error(t, err)
}
