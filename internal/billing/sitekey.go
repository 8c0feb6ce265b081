package billing

import (
	"context"
	"log/slog"

	"seopilot/internal/types"

	"golang.org/x/crypto/bcrypt"
)

// siteKeyHashCost trades hash time for brute-force resistance. Site keys
// are high-entropy, so the default cost is sufficient.
const siteKeyHashCost = bcrypt.DefaultCost

// SiteKeyRotator is the backend operation key rotation depends on.
type SiteKeyRotator interface {
	RegenerateSiteKey(ctx context.Context) (string, error)
}

// SiteKeyStore persists the key hash. Implemented by db.SettingsRepository.
type SiteKeyStore interface {
	Get(ctx context.Context) (*types.SiteSettings, error)
	ReplaceSiteKeyHash(ctx context.Context, hash string) error
}

// KeyService rotates and verifies the site API key. Only the bcrypt hash
// is stored locally; the plaintext key exists once, in the rotation
// response, and is shown to the operator a single time.
type KeyService struct {
	backend SiteKeyRotator
	store   SiteKeyStore
	logger  *slog.Logger
}

func NewKeyService(backend SiteKeyRotator, store SiteKeyStore, logger *slog.Logger) *KeyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyService{backend: backend, store: store, logger: logger}
}

// Rotate asks the backend for a fresh site key, replaces the stored hash,
// and returns the plaintext exactly once. The old key stops verifying the
// moment the new hash lands; there is no overlap window.
func (k *KeyService) Rotate(ctx context.Context) (string, error) {
	key, err := k.backend.RegenerateSiteKey(ctx)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), siteKeyHashCost)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash site key", err)
	}

	if err := k.store.ReplaceSiteKeyHash(ctx, string(hash)); err != nil {
		return "", err
	}

	k.logger.InfoContext(ctx, "site key rotated")
	return key, nil
}

// Verify checks a presented key against the stored hash. A site with no
// key configured rejects everything.
func (k *KeyService) Verify(ctx context.Context, presented string) error {
	settings, err := k.store.Get(ctx)
	if err != nil {
		return err
	}

	if settings.SiteKeyHash == "" || presented == "" {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid site key", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(settings.SiteKeyHash), []byte(presented)); err != nil {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid site key", nil)
	}

	return nil
}
