package billing

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"seopilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockRotator struct {
	mock.Mock
}

func (m *mockRotator) RegenerateSiteKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type mockKeyStore struct {
	mock.Mock
}

func (m *mockKeyStore) Get(ctx context.Context) (*types.SiteSettings, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(*types.SiteSettings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockKeyStore) ReplaceSiteKeyHash(ctx context.Context, hash string) error {
	return m.Called(ctx, hash).Error(0)
}

func newTestKeyService(rotator *mockRotator, store *mockKeyStore) *KeyService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewKeyService(rotator, store, logger)
}

func TestRotate_StoresHashNotPlaintext(t *testing.T) {
	rotator := new(mockRotator)
	store := new(mockKeyStore)
	svc := newTestKeyService(rotator, store)

	rotator.On("RegenerateSiteKey", mock.Anything).Return("sk_live_newkey", nil)

	var storedHash string
	store.On("ReplaceSiteKeyHash", mock.Anything, mock.MatchedBy(func(hash string) bool {
		storedHash = hash
		return hash != "" && hash != "sk_live_newkey"
	})).Return(nil)

	key, err := svc.Rotate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk_live_newkey", key)

	// The stored value verifies against the returned plaintext.
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(key)))
}

func TestRotate_BackendFailureLeavesStoreUntouched(t *testing.T) {
	rotator := new(mockRotator)
	store := new(mockKeyStore)
	svc := newTestKeyService(rotator, store)

	rotator.On("RegenerateSiteKey", mock.Anything).
		Return("", types.NewAppError(types.ErrCodeNetworkError, "backend down", nil))

	_, err := svc.Rotate(context.Background())
	require.Error(t, err)
	store.AssertNotCalled(t, "ReplaceSiteKeyHash", mock.Anything, mock.Anything)
}

func TestVerify_AcceptsMatchingKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sk_live_good"), bcrypt.MinCost)
	require.NoError(t, err)

	rotator := new(mockRotator)
	store := new(mockKeyStore)
	svc := newTestKeyService(rotator, store)

	store.On("Get", mock.Anything).Return(&types.SiteSettings{SiteKeyHash: string(hash)}, nil)

	assert.NoError(t, svc.Verify(context.Background(), "sk_live_good"))
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sk_live_good"), bcrypt.MinCost)
	require.NoError(t, err)

	rotator := new(mockRotator)
	store := new(mockKeyStore)
	svc := newTestKeyService(rotator, store)

	store.On("Get", mock.Anything).Return(&types.SiteSettings{SiteKeyHash: string(hash)}, nil)

	err = svc.Verify(context.Background(), "sk_live_evil")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, types.CodeOf(err))
}

func TestVerify_NoKeyConfiguredRejectsEverything(t *testing.T) {
	rotator := new(mockRotator)
	store := new(mockKeyStore)
	svc := newTestKeyService(rotator, store)

	store.On("Get", mock.Anything).Return(&types.SiteSettings{}, nil)

	err := svc.Verify(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, types.CodeOf(err))
}
