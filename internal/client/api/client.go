// Package api implements the HTTP client for the soundcircle server. It
// satisfies the session package's AuthAPI/DataAPI/RealtimeAPI contracts,
// persists the token pair in the local store, refreshes expired access
// tokens transparently, and emits auth events toward registered listeners.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/client/models"
	"github.com/dmitrijs2005/soundcircle/internal/common"
	"github.com/dmitrijs2005/soundcircle/internal/logging"
	"github.com/dmitrijs2005/soundcircle/internal/netx"
)

// TokenStore is the slice of the local store the client needs.
type TokenStore interface {
	SaveSession(ctx context.Context, sess *models.Session) error
	LoadSession(ctx context.Context) (*models.Session, error)
	Clear(ctx context.Context) error
}

type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
	logger  logging.Logger

	mu        sync.Mutex
	session   *models.Session
	listeners map[int]func(models.AuthEvent)
	nextID    int
}

// NewClient builds a Client for baseURL and loads any cached session from
// the store.
func NewClient(ctx context.Context, baseURL string, store TokenStore, logger logging.Logger) (*Client, error) {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		store:     store,
		logger:    logger.With("module", "api_client"),
		listeners: make(map[int]func(models.AuthEvent)),
	}

	sess, err := store.LoadSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading cached session: %w", err)
	}
	c.session = sess

	return c, nil
}

// OnAuthStateChange registers fn for subsequent auth transitions.
func (c *Client) OnAuthStateChange(fn func(models.AuthEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Client) emit(ev models.AuthEvent) {
	c.mu.Lock()
	fns := make([]func(models.AuthEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// GetSession returns a copy of the cached session without any server call.
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	sess := *c.session
	return &sess, nil
}

func (c *Client) currentSession() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	sess := *c.session
	return &sess
}

func (c *Client) setSession(ctx context.Context, sess *models.Session) {
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	if sess == nil {
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Warn(ctx, "error clearing local store", "error", err)
		}
		return
	}
	if err := c.store.SaveSession(ctx, sess); err != nil {
		c.logger.Warn(ctx, "error persisting session", "error", err)
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates an account; it does not sign the user in.
func (c *Client) Register(ctx context.Context, email, username, password string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/register",
		registerRequest{Email: email, Username: username, Password: password}, nil, false)
}

// Login authenticates, persists the token pair and validated subject, and
// emits a SignedIn event.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var pair tokenPairResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login",
		loginRequest{Email: email, Password: password}, &pair, false)
	if err != nil {
		return err
	}

	sess := &models.Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
	c.setSession(ctx, sess)

	user, err := c.GetUser(ctx)
	if err != nil {
		c.setSession(ctx, nil)
		return err
	}
	sess.UserID = user.ID
	c.setSession(ctx, sess)

	c.emit(models.AuthEvent{Type: models.SignedIn, Session: sess})
	return nil
}

// GetUser revalidates the session server-side.
func (c *Client) GetUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, http.MethodGet, "/auth/user", nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the session server-side, clears the local cache, and emits
// a SignedOut event. Local state is cleared even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil, true)
	if err != nil {
		c.logger.Warn(ctx, "remote sign-out failed", "error", err)
	}

	c.setSession(ctx, nil)
	c.emit(models.AuthEvent{Type: models.SignedOut})
	return err
}

func (c *Client) ProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/api/profiles/"+id, nil, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	AvatarKey   string `json:"avatar_key"`
}

func (c *Client) UpdateProfile(ctx context.Context, id, displayName, avatarKey string) (*models.Profile, error) {
	var profile models.Profile
	err := c.doJSON(ctx, http.MethodPut, "/api/profiles/"+id,
		updateProfileRequest{DisplayName: displayName, AvatarKey: avatarKey}, &profile, true)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

type walletResponse struct {
	UserID               string  `json:"user_id"`
	PointsBalance        int64   `json:"points_balance"`
	EarningsPoints       int64   `json:"earnings_points"`
	LockedEarningsPoints int64   `json:"locked_earnings_points"`
	NextTopupDueOn       *string `json:"next_topup_due_on"`
}

func (c *Client) WalletByUserID(ctx context.Context, userID string) (*models.WalletSnapshot, error) {
	var resp walletResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/wallets/"+userID, nil, &resp, true); err != nil {
		return nil, err
	}
	return &models.WalletSnapshot{
		PointsBalance:        &resp.PointsBalance,
		EarningsPoints:       &resp.EarningsPoints,
		LockedEarningsPoints: &resp.LockedEarningsPoints,
		NextTopupDueOn:       resp.NextTopupDueOn,
	}, nil
}

type adjustPointsRequest struct {
	Delta int64 `json:"delta"`
}

// AdjustPoints spends or earns points on the caller's own wallet.
func (c *Client) AdjustPoints(ctx context.Context, delta int64) error {
	sess := c.currentSession()
	if sess == nil {
		return common.ErrorUnauthorized
	}
	return c.doJSON(ctx, http.MethodPost, "/api/wallets/"+sess.UserID+"/adjust",
		adjustPointsRequest{Delta: delta}, nil, true)
}

type presignUploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// UploadAvatar requests a presigned PUT URL, uploads the image bytes
// straight to object storage, and points the profile at the new key.
func (c *Client) UploadAvatar(ctx context.Context, data []byte) (string, error) {
	sess := c.currentSession()
	if sess == nil {
		return "", common.ErrorUnauthorized
	}

	var presign presignUploadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/avatars/presign-upload", nil, &presign, true); err != nil {
		return "", err
	}

	if err := netx.UploadToPresignedURL(ctx, c.http, presign.URL, data); err != nil {
		return "", fmt.Errorf("error uploading avatar: %w", err)
	}

	return presign.Key, nil
}

// doJSON performs one API call, optionally authorized. On a 401 caused by an
// expired access token it refreshes the pair once and retries.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, authorized bool) error {
	resp, err := c.do(ctx, method, path, in, authorized)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && authorized {
		expired := strings.Contains(readBody(resp), common.TokenExpiredMessage)
		if !expired {
			return common.ErrorUnauthorized
		}
		if err := c.refresh(ctx); err != nil {
			return common.ErrorUnauthorized
		}
		resp, err = c.do(ctx, method, path, in, authorized)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode >= 400 {
		return mapError(resp)
	}

	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, authorized bool) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		sess := c.currentSession()
		if sess == nil {
			return nil, common.ErrorUnauthorized
		}
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+sess.AccessToken)
	}

	return c.http.Do(req)
}

// refresh rotates the token pair and emits TokenRefreshed.
func (c *Client) refresh(ctx context.Context) error {
	sess := c.currentSession()
	if sess == nil || sess.RefreshToken == "" {
		return common.ErrorUnauthorized
	}

	resp, err := c.do(ctx, http.MethodPost, "/auth/refresh",
		refreshRequest{RefreshToken: sess.RefreshToken}, false)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return mapError(resp)
	}

	var pair tokenPairResponse
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return fmt.Errorf("error decoding refresh response: %w", err)
	}

	refreshed := &models.Session{
		UserID:       sess.UserID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
	c.setSession(ctx, refreshed)
	c.emit(models.AuthEvent{Type: models.TokenRefreshed, Session: refreshed})
	return nil
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	return string(b)
}

func mapError(resp *http.Response) error {
	body := readBody(resp)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusUnauthorized:
		if strings.Contains(body, common.ErrRefreshTokenExpired.Error()) {
			return common.ErrRefreshTokenExpired
		}
		return common.ErrorUnauthorized
	case http.StatusConflict:
		return common.ErrorConflict
	case http.StatusUnprocessableEntity:
		if strings.Contains(body, common.ErrInsufficientPoints.Error()) {
			return common.ErrInsufficientPoints
		}
	}

	var er struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &er); err == nil && er.Error != "" {
		return errors.New(er.Error)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}
