package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/client/models"
	"github.com/dmitrijs2005/soundcircle/internal/common"
	"github.com/dmitrijs2005/soundcircle/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	sess *models.Session
}

func (m *memStore) SaveSession(ctx context.Context, sess *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *sess
	m.sess = &copied
	return nil
}

func (m *memStore) LoadSession(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, nil
	}
	copied := *m.sess
	return &copied, nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []models.AuthEvent
}

func (c *capturedEvents) record(ev models.AuthEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capturedEvents) types() []models.AuthEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.AuthEventType, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

func newClientFor(t *testing.T, srvURL string, store *memStore) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), srvURL, store, logging.NewJSON(io.Discard))
	require.NoError(t, err)
	return c
}

func TestLoginStoresSessionAndEmitsSignedIn(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "at1", "refresh_token": "rt1"})
	})
	mux.HandleFunc("GET /auth/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at1", r.Header.Get(common.AccessTokenHeaderName))
		json.NewEncoder(w).Encode(map[string]string{"id": "u1", "email": "a@b.c"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{}
	c := newClientFor(t, srv.URL, store)

	events := &capturedEvents{}
	unsub := c.OnAuthStateChange(events.record)
	defer unsub()

	require.NoError(t, c.Login(context.Background(), "a@b.c", "pw"))

	sess, err := c.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "at1", sess.AccessToken)

	require.Equal(t, []models.AuthEventType{models.SignedIn}, events.types())

	persisted, err := store.LoadSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", persisted.UserID)
}

func TestExpiredAccessTokenIsRefreshedTransparently(t *testing.T) {
	var userCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/user", func(w http.ResponseWriter, r *http.Request) {
		userCalls++
		if r.Header.Get(common.AccessTokenHeaderName) != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": common.TokenExpiredMessage})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "u1", "email": "a@b.c"})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rt-old", req["refresh_token"])
		json.NewEncoder(w).Encode(map[string]string{"access_token": "fresh", "refresh_token": "rt-new"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{sess: &models.Session{UserID: "u1", AccessToken: "stale", RefreshToken: "rt-old"}}
	c := newClientFor(t, srv.URL, store)

	events := &capturedEvents{}
	defer c.OnAuthStateChange(events.record)()

	user, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, 2, userCalls)

	sess, _ := c.GetSession(context.Background())
	assert.Equal(t, "fresh", sess.AccessToken)
	assert.Equal(t, "rt-new", sess.RefreshToken)

	assert.Equal(t, []models.AuthEventType{models.TokenRefreshed}, events.types())
}

func TestInvalidTokenDoesNotRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{sess: &models.Session{UserID: "u1", AccessToken: "bad", RefreshToken: "rt"}}
	c := newClientFor(t, srv.URL, store)

	_, err := c.GetUser(context.Background())
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestSignOutClearsLocalStateEvenOnServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{sess: &models.Session{UserID: "u1", AccessToken: "at", RefreshToken: "rt"}}
	c := newClientFor(t, srv.URL, store)

	events := &capturedEvents{}
	defer c.OnAuthStateChange(events.record)()

	err := c.SignOut(context.Background())
	assert.Error(t, err)

	sess, _ := c.GetSession(context.Background())
	assert.Nil(t, sess)

	persisted, _ := store.LoadSession(context.Background())
	assert.Nil(t, persisted)

	assert.Equal(t, []models.AuthEventType{models.SignedOut}, events.types())
}

func TestWalletByUserIDMapsFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/wallets/u1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"user_id":                "u1",
			"points_balance":         100,
			"earnings_points":        20,
			"locked_earnings_points": 5,
			"next_topup_due_on":      nil,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{sess: &models.Session{UserID: "u1", AccessToken: "at"}}
	c := newClientFor(t, srv.URL, store)

	snap, err := c.WalletByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, snap.PointsBalance)
	assert.Equal(t, int64(100), *snap.PointsBalance)
	assert.Equal(t, int64(20), *snap.EarningsPoints)
	assert.Equal(t, int64(5), *snap.LockedEarningsPoints)
	assert.Nil(t, snap.NextTopupDueOn)
}

func TestSubscribeWalletReceivesPushes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/realtime/wallet", func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		_, _ = w.Write([]byte("event: wallet\ndata: {\"user_id\":\"u1\",\"points_balance\":77}\n\n"))
		flusher.Flush()

		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{sess: &models.Session{UserID: "u1", AccessToken: "at"}}
	c := newClientFor(t, srv.URL, store)

	sub, err := c.SubscribeWallet(context.Background(), "u1")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case update := <-sub.Updates():
		require.NotNil(t, update.PointsBalance)
		assert.Equal(t, int64(77), *update.PointsBalance)
		assert.Nil(t, update.EarningsPoints)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a wallet push")
	}
}

func TestSubscribeWalletCloseStopsStream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/realtime/wallet", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := &memStore{sess: &models.Session{UserID: "u1", AccessToken: "at"}}
	c := newClientFor(t, srv.URL, store)

	sub, err := c.SubscribeWallet(context.Background(), "u1")
	require.NoError(t, err)

	sub.Close()

	select {
	case _, open := <-sub.Updates():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel not closed after Close")
	}
}
