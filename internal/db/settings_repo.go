package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"seopilot/internal/types"
)

// SettingsRepository provides data access for the single-row site_settings
// table: plan-to-price overrides and the site API key hash.
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a new SettingsRepository backed by the given
// database connection (pool or transaction).
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves the settings record. A missing row is returned as empty
// settings rather than an error; the site simply has not been configured yet.
func (r *SettingsRepository) Get(ctx context.Context) (*types.SiteSettings, error) {
	row := r.db.QueryRow(ctx,
		`SELECT price_id_pro, price_id_agency, site_key_hash, updated_at
		 FROM site_settings
		 WHERE id = 1`,
	)

	var s types.SiteSettings
	err := row.Scan(&s.PriceIDPro, &s.PriceIDAgency, &s.SiteKeyHash, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &types.SiteSettings{}, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load site settings", err)
	}
	return &s, nil
}

// SavePriceIDs upserts the plan-to-price overrides.
func (r *SettingsRepository) SavePriceIDs(ctx context.Context, pro, agency string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO site_settings (id, price_id_pro, price_id_agency, updated_at)
		 VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET price_id_pro = EXCLUDED.price_id_pro,
		     price_id_agency = EXCLUDED.price_id_agency,
		     updated_at = EXCLUDED.updated_at`,
		pro,
		agency,
		time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save price IDs", err)
	}
	return nil
}

// ReplaceSiteKeyHash overwrites the stored site API key hash in a single
// statement. The key is replaced exactly once, never partially: the old hash
// is unusable the moment this commits.
func (r *SettingsRepository) ReplaceSiteKeyHash(ctx context.Context, hash string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO site_settings (id, site_key_hash, updated_at)
		 VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE
		 SET site_key_hash = EXCLUDED.site_key_hash,
		     updated_at = EXCLUDED.updated_at`,
		hash,
		time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to replace site key hash", err)
	}
	return nil
}
