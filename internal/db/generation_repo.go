package db

import (
	"context"
	"time"

	"seopilot/internal/types"
)

// GenerationRepository provides data access for the generation_history table.
// Rows are append-only; the archiver exports and prunes old ranges.
type GenerationRepository struct {
	db DBTX
}

// NewGenerationRepository creates a new GenerationRepository backed by the
// given database connection (pool or transaction).
func NewGenerationRepository(db DBTX) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Record appends one generation attempt to the history.
func (r *GenerationRepository) Record(ctx context.Context, rec *types.GenerationRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO generation_history (id, local_user_id, post_id, status, error_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID,
		rec.LocalUserID,
		rec.PostID,
		rec.Status,
		rec.ErrorCode,
		rec.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record generation", err)
	}
	return nil
}

// ListBefore returns history rows created strictly before the cutoff,
// oldest first. Used by the archiver to build export batches.
func (r *GenerationRepository) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]types.GenerationRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, local_user_id, post_id, status, error_code, created_at
		 FROM generation_history
		 WHERE created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		cutoff,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query generation history", err)
	}
	defer rows.Close()

	var records []types.GenerationRecord
	for rows.Next() {
		var rec types.GenerationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.LocalUserID,
			&rec.PostID,
			&rec.Status,
			&rec.ErrorCode,
			&rec.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan generation row", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating generation rows", err)
	}

	return records, nil
}

// DeleteBefore prunes history rows created strictly before the cutoff.
// Returns the number of rows removed. Called only after a successful export.
func (r *GenerationRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM generation_history WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune generation history", err)
	}
	return tag.RowsAffected(), nil
}
