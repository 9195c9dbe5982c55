package playkit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playkit-go/auth"
	"playkit-go/tokenstore"
)

func newTestSDK(t *testing.T, cfg Config) *SDK {
	t.Helper()
	if cfg.GameID == "" {
		cfg.GameID = "g-1"
	}
	if cfg.Store == nil {
		cfg.Store = tokenstore.NewMemoryStore()
	}
	sdk, err := New(cfg)
	require.NoError(t, err)
	return sdk
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{GameID: "g-1", AuthMethod: "bogus"})
	assert.Error(t, err)
}

func TestSDKInitialize(t *testing.T) {
	sdk := newTestSDK(t, Config{DeveloperToken: "dev-tok"})

	ready := 0
	require.NoError(t, sdk.On(TopicReady, func() { ready++ }))
	var states []auth.AuthState
	require.NoError(t, sdk.On(TopicAuthenticated, func(st auth.AuthState) {
		states = append(states, st)
	}))

	assert.False(t, sdk.IsInitialized())
	require.NoError(t, sdk.Initialize(context.Background()))
	assert.True(t, sdk.IsInitialized())
	assert.True(t, sdk.IsAuthenticated())
	assert.Equal(t, "dev-tok", sdk.Token())

	require.Len(t, states, 1)
	assert.Equal(t, "dev-tok", states[0].Token)
	assert.Equal(t, auth.TokenTypeDeveloper, states[0].TokenType)

	// Initialize is idempotent after a success: ready fires once.
	require.NoError(t, sdk.Initialize(context.Background()))
	assert.Equal(t, 1, ready)
	assert.Len(t, states, 1)
}

func TestSDKInitialize_NotAuthenticated(t *testing.T) {
	sdk := newTestSDK(t, Config{})

	err := sdk.Initialize(context.Background())
	assert.True(t, auth.IsCode(err, auth.CodeNotAuthenticated), "got %v", err)
	assert.False(t, sdk.IsInitialized())

	// A failed Initialize is not latched; it can be retried.
	err = sdk.Initialize(context.Background())
	assert.True(t, auth.IsCode(err, auth.CodeNotAuthenticated), "got %v", err)
}

// countingStore counts credential loads so tests can tell how many times the
// resolution ladder actually ran.
type countingStore struct {
	tokenstore.Store
	loads atomic.Int64
}

func (s *countingStore) Load(ctx context.Context, gameID string) (*tokenstore.Record, error) {
	s.loads.Add(1)
	return s.Store.Load(ctx, gameID)
}

func TestSDKInitialize_Concurrent(t *testing.T) {
	store := &countingStore{Store: tokenstore.NewMemoryStore()}
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "g-1", tokenstore.Record{
		Token:     "cached-tok",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	sdk := newTestSDK(t, Config{Store: store})
	ready := 0
	require.NoError(t, sdk.On(TopicReady, func() { ready++ }))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = sdk.Initialize(ctx)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, sdk.IsInitialized())
	assert.Equal(t, "cached-tok", sdk.Token())

	// Initialize is serialized: the ladder ran once and ready fired once.
	assert.Equal(t, int64(1), store.loads.Load())
	assert.Equal(t, 1, ready)
}

func TestSDKLoginAndLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/external/exchange-jwt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"playerToken": "player-tok",
			"expiresIn":   3600,
		})
	}))
	t.Cleanup(srv.Close)

	store := tokenstore.NewMemoryStore()
	sdk := newTestSDK(t, Config{BaseURL: srv.URL, HTTPClient: srv.Client(), Store: store})

	ctx := context.Background()
	token, err := sdk.Login(ctx, "identity-jwt")
	require.NoError(t, err)
	assert.Equal(t, "player-tok", token)
	assert.True(t, sdk.IsAuthenticated())
	assert.False(t, sdk.AuthState().ExpiresAt.IsZero())

	// The credential doubles as an oauth2 token source.
	tok, err := sdk.TokenSource().Token()
	require.NoError(t, err)
	assert.Equal(t, "player-tok", tok.AccessToken)

	require.NoError(t, sdk.Logout(ctx))
	assert.False(t, sdk.IsAuthenticated())
	assert.Empty(t, sdk.Token())
	_, err = sdk.TokenSource().Token()
	assert.Error(t, err)

	// Logout leaves the shared token; ClearAll removes it too.
	shared, err := store.LoadShared(ctx)
	require.NoError(t, err)
	assert.Equal(t, "player-tok", shared)
	require.NoError(t, sdk.ClearAll(ctx))
	shared, err = store.LoadShared(ctx)
	require.NoError(t, err)
	assert.Empty(t, shared)
}

func TestSDKOnOff(t *testing.T) {
	sdk := newTestSDK(t, Config{DeveloperToken: "dev-tok"})

	calls := 0
	fn := func(auth.AuthState) { calls++ }
	require.NoError(t, sdk.On(TopicAuthenticated, fn))
	require.NoError(t, sdk.Off(TopicAuthenticated, fn))

	require.NoError(t, sdk.Initialize(context.Background()))
	assert.Zero(t, calls)
}

func TestSDKAuthManager(t *testing.T) {
	sdk := newTestSDK(t, Config{DeveloperToken: "dev-tok"})
	require.NotNil(t, sdk.AuthManager())
	require.NoError(t, sdk.AuthManager().Initialize(context.Background()))
	assert.Equal(t, "dev-tok", sdk.AuthManager().Token())
}
