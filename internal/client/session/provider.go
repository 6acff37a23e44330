package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/client/models"
	"github.com/dmitrijs2005/soundcircle/internal/logging"
	"github.com/sethvargo/go-retry"
)

const (
	defaultBootstrapTimeout      = 3 * time.Second
	defaultProfileAttemptTimeout = 10 * time.Second
	defaultSignOutTimeout        = 2 * time.Second
	defaultRetryBase             = time.Second

	// profile fetch: initial attempt plus this many retries
	profileFetchRetries = 2
)

// Snapshot is a point-in-time copy of the provider state. Consumers read
// snapshots; all mutation happens inside the provider.
type Snapshot struct {
	User         *models.User
	Profile      *models.Profile
	Wallet       models.WalletSnapshot
	WalletLoaded bool
	Loading      bool
	ProfileErr   bool
}

type Option func(*Provider)

// WithReloadHook registers a callback invoked after sign-out completes, when
// the embedding application must discard any state derived from the old
// session.
func WithReloadHook(fn func()) Option {
	return func(p *Provider) { p.reloadHook = fn }
}

// WithTimeouts overrides the bootstrap-validation, per-profile-attempt, and
// sign-out timeouts.
func WithTimeouts(bootstrap, profileAttempt, signOut time.Duration) Option {
	return func(p *Provider) {
		p.bootstrapTimeout = bootstrap
		p.profileAttemptTimeout = profileAttempt
		p.signOutTimeout = signOut
	}
}

// WithRetryBase overrides the linear-backoff unit for profile fetches.
func WithRetryBase(d time.Duration) Option {
	return func(p *Provider) { p.retryBase = d }
}

// Provider is the single source of truth for the signed-in user, their
// profile, and their wallet balances. It revalidates cached sessions on
// start, reconciles auth events pushed by the API client, and merges
// realtime wallet updates.
//
// Failures never propagate to consumers; they surface as state flags plus
// log diagnostics.
type Provider struct {
	auth     AuthAPI
	data     DataAPI
	realtime RealtimeAPI
	logger   logging.Logger

	bootstrapTimeout      time.Duration
	profileAttemptTimeout time.Duration
	signOutTimeout        time.Duration
	retryBase             time.Duration
	reloadHook            func()

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.Mutex
	user         *models.User
	profile      *models.Profile
	wallet       models.WalletSnapshot
	walletLoaded bool
	loading      bool
	profileErr   bool

	// generation is bumped on every identity change; async results carry the
	// generation they started under and are discarded on mismatch.
	generation  int
	reconciling bool

	waiters    map[int]chan bool
	nextWaiter int

	walletSub   Subscription
	unsubscribe func()
	closed      bool
}

func New(auth AuthAPI, data DataAPI, realtime RealtimeAPI, logger logging.Logger, opts ...Option) *Provider {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Provider{
		auth:                  auth,
		data:                  data,
		realtime:              realtime,
		logger:                logger.With("module", "session_provider"),
		bootstrapTimeout:      defaultBootstrapTimeout,
		profileAttemptTimeout: defaultProfileAttemptTimeout,
		signOutTimeout:        defaultSignOutTimeout,
		retryBase:             defaultRetryBase,
		rootCtx:               ctx,
		cancel:                cancel,
		loading:               true,
		waiters:               make(map[int]chan bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start subscribes to auth events and kicks off the session bootstrap. It
// returns once the cached session has been resolved (validated or rejected);
// profile and wallet loading continue in the background.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	p.unsubscribe = p.auth.OnAuthStateChange(p.handleAuthEvent)
	p.mu.Unlock()

	sess, err := p.auth.GetSession(ctx)
	if err != nil {
		p.logger.Warn(ctx, "error reading cached session", "error", err)
	}
	if err != nil || sess == nil {
		p.clearState()
		return
	}

	// the cache can be stale after revocation; only a server round-trip
	// decides whether this session still counts
	vctx, cancel := context.WithTimeout(ctx, p.bootstrapTimeout)
	user, err := p.auth.GetUser(vctx)
	cancel()
	if err != nil {
		p.logger.Warn(ctx, "cached session failed revalidation, treating as signed out", "error", err)
		p.clearState()
		return
	}

	gen := p.adoptIdentity(user)
	p.spawn(func() { p.finishReconciliation(user, gen) })
}

// Close tears the provider down: deregisters the auth listener, closes any
// open wallet subscription, resolves pending waiters false, and waits for
// background work to finish.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.generation++
	unsub := p.unsubscribe
	sub := p.walletSub
	p.walletSub = nil
	p.resolveWaitersLocked(false)
	p.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if sub != nil {
		sub.Close()
	}
	p.cancel()
	p.wg.Wait()
}

// --- consumer-facing state ---

func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		User:         p.user,
		Profile:      p.profile,
		Wallet:       p.wallet,
		WalletLoaded: p.walletLoaded,
		Loading:      p.loading,
		ProfileErr:   p.profileErr,
	}
}

func (p *Provider) User() *models.User { return p.Snapshot().User }

func (p *Provider) Profile() *models.Profile { return p.Snapshot().Profile }

func (p *Provider) Wallet() models.WalletSnapshot { return p.Snapshot().Wallet }

func (p *Provider) Loading() bool { return p.Snapshot().Loading }

func (p *Provider) ProfileErr() bool { return p.Snapshot().ProfileErr }

// --- auth event reconciliation ---

func (p *Provider) handleAuthEvent(ev models.AuthEvent) {
	ctx := p.rootCtx

	switch ev.Type {
	case models.SignedOut:
		p.logger.Info(ctx, "signed out, clearing session state")
		p.clearState()

	case models.SignedIn:
		// a real sign-in must never be dropped: it bypasses the
		// reconciliation guard and preempts any in-flight fetch
		p.spawn(func() { p.reconcileSignIn() })

	case models.TokenRefreshed:
		p.mu.Lock()
		if p.reconciling {
			p.mu.Unlock()
			p.logger.Warn(ctx, "skipping auth event, reconciliation already in progress", "event", string(ev.Type))
			return
		}
		user := p.user
		subjectChanged := ev.Session != nil && ev.Session.UserID != "" &&
			(user == nil || user.ID != ev.Session.UserID)
		p.mu.Unlock()

		if subjectChanged {
			p.spawn(func() { p.reconcileSignIn() })
			return
		}
		if user == nil {
			return
		}
		p.spawn(func() { p.refetchProfile(user) })
	}
}

// reconcileSignIn revalidates the new session, adopts the identity, and
// loads profile plus wallet for it.
func (p *Provider) reconcileSignIn() {
	vctx, cancel := context.WithTimeout(p.rootCtx, p.bootstrapTimeout)
	user, err := p.auth.GetUser(vctx)
	cancel()
	if err != nil {
		p.logger.Warn(p.rootCtx, "sign-in validation failed, treating as signed out", "error", err)
		p.clearState()
		return
	}

	gen := p.adoptIdentity(user)
	p.finishReconciliation(user, gen)
}

// adoptIdentity installs user as the active identity and returns the new
// generation. Any previous wallet subscription is closed so pushes for the
// old identity can never apply.
func (p *Provider) adoptIdentity(user *models.User) int {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.user = user
	p.profile = nil
	p.profileErr = false
	p.loading = true
	p.wallet = models.WalletSnapshot{}
	p.walletLoaded = false
	p.reconciling = true
	sub := p.walletSub
	p.walletSub = nil
	p.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	return gen
}

// finishReconciliation fetches the profile (with retry) and then the wallet
// for user, applying results only while gen is still current.
func (p *Provider) finishReconciliation(user *models.User, gen int) {
	profile := p.fetchProfileWithRetry(p.rootCtx, user.ID)

	p.mu.Lock()
	if gen != p.generation || p.closed {
		p.mu.Unlock()
		return
	}
	p.profile = profile
	p.profileErr = profile == nil
	p.loading = false
	p.reconciling = false
	p.resolveWaitersLocked(profile != nil)
	p.mu.Unlock()

	if profile == nil {
		p.logger.Warn(p.rootCtx, "profile unavailable, staying signed in with degraded state", "user_id", user.ID)
	}

	p.startWalletListener(user.ID, gen)
}

// refetchProfile re-runs the profile fetch for the current identity without
// changing it (TOKEN_REFRESHED handling).
func (p *Provider) refetchProfile(user *models.User) {
	p.mu.Lock()
	if p.reconciling {
		p.mu.Unlock()
		return
	}
	p.reconciling = true
	gen := p.generation
	p.mu.Unlock()

	profile := p.fetchProfileWithRetry(p.rootCtx, user.ID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return
	}
	p.reconciling = false
	p.loading = false
	if profile != nil {
		p.profile = profile
		p.profileErr = false
	} else {
		p.profileErr = true
	}
}

// fetchProfileWithRetry tries up to three times with linear backoff
// (attempt × retryBase) and a per-attempt timeout. It returns nil once
// retries are exhausted; the caller flags the error instead of signing the
// user out.
func (p *Provider) fetchProfileWithRetry(ctx context.Context, userID string) *models.Profile {
	var profile *models.Profile

	attempt := 0
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * p.retryBase, false
	})

	err := retry.Do(ctx, retry.WithMaxRetries(profileFetchRetries, backoff), func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, p.profileAttemptTimeout)
		defer cancel()

		res, err := p.data.ProfileByID(actx, userID)
		if err != nil {
			return retry.RetryableError(err)
		}
		profile = res
		return nil
	})
	if err != nil {
		p.logger.Warn(ctx, "profile fetch failed after retries", "user_id", userID, "error", err)
		return nil
	}
	return profile
}

// --- wallet realtime ---

func (p *Provider) startWalletListener(userID string, gen int) {
	sctx, cancel := context.WithTimeout(p.rootCtx, p.profileAttemptTimeout)
	snap, err := p.data.WalletByUserID(sctx, userID)
	cancel()
	if err != nil {
		// a missing wallet row just means a first-time user
		p.logger.Warn(p.rootCtx, "wallet snapshot unavailable", "user_id", userID, "error", err)
	}

	p.mu.Lock()
	if gen != p.generation || p.closed {
		p.mu.Unlock()
		return
	}
	if snap != nil {
		p.wallet = *snap
		p.walletLoaded = true
	}
	p.mu.Unlock()

	sub, err := p.realtime.SubscribeWallet(p.rootCtx, userID)
	if err != nil {
		p.logger.Warn(p.rootCtx, "error opening wallet subscription", "user_id", userID, "error", err)
		return
	}

	p.mu.Lock()
	if gen != p.generation || p.closed {
		p.mu.Unlock()
		sub.Close()
		return
	}
	p.walletSub = sub
	p.mu.Unlock()

	p.spawn(func() {
		for {
			select {
			case update, open := <-sub.Updates():
				if !open {
					return
				}
				p.applyWalletUpdate(update, gen)
			case <-p.rootCtx.Done():
				return
			}
		}
	})
}

// applyWalletUpdate merges only the fields present in the push; omitted
// fields keep their current values. All fields of one payload apply
// together.
func (p *Provider) applyWalletUpdate(update models.WalletUpdate, gen int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return
	}

	if update.PointsBalance != nil {
		p.wallet.PointsBalance = update.PointsBalance
	}
	if update.EarningsPoints != nil {
		p.wallet.EarningsPoints = update.EarningsPoints
	}
	if update.LockedEarningsPoints != nil {
		p.wallet.LockedEarningsPoints = update.LockedEarningsPoints
	}
	if update.NextTopupDueOn != nil {
		p.wallet.NextTopupDueOn = update.NextTopupDueOn
	}
	p.walletLoaded = true
}

// --- exposed mutators ---

// SignOut clears local state before the network round-trip, so the UI
// reflects signed-out immediately, then revokes the session server-side
// under a timeout. The reload hook runs regardless of outcome: the user's
// intent to leave is always honored locally.
func (p *Provider) SignOut(ctx context.Context) {
	p.clearState()

	sctx, cancel := context.WithTimeout(ctx, p.signOutTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.auth.SignOut(sctx) }()

	select {
	case err := <-done:
		if err != nil {
			p.logger.Warn(ctx, "remote sign-out failed", "error", err)
		}
	case <-sctx.Done():
		p.logger.Warn(ctx, "remote sign-out timed out")
	}

	if p.reloadHook != nil {
		p.reloadHook()
	}
}

// RefreshProfile refetches the current identity's profile. With no session
// present it is a no-op.
func (p *Provider) RefreshProfile(ctx context.Context) {
	p.mu.Lock()
	user := p.user
	p.mu.Unlock()
	if user == nil {
		return
	}
	p.refetchProfile(user)
}

// RefreshWalletBalance refetches the wallet snapshot for the current
// identity. With no session present it is a no-op.
func (p *Provider) RefreshWalletBalance(ctx context.Context) {
	p.mu.Lock()
	user := p.user
	gen := p.generation
	p.mu.Unlock()
	if user == nil {
		return
	}

	sctx, cancel := context.WithTimeout(ctx, p.profileAttemptTimeout)
	defer cancel()
	snap, err := p.data.WalletByUserID(sctx, user.ID)
	if err != nil {
		p.logger.Warn(ctx, "error refreshing wallet", "user_id", user.ID, "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return
	}
	p.wallet = *snap
	p.walletLoaded = true
}

// WaitForAuthStateChange blocks until the next auth transition settles and
// reports whether it ended in a full sign-in (user and profile both
// present). With no transition pending it returns false after timeout.
func (p *Provider) WaitForAuthStateChange(timeout time.Duration) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	id := p.nextWaiter
	p.nextWaiter++
	ch := make(chan bool, 1)
	p.waiters[id] = ch
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v
	case <-timer.C:
		p.mu.Lock()
		delete(p.waiters, id)
		p.mu.Unlock()
		// a resolution may have raced the timer
		select {
		case v := <-ch:
			return v
		default:
			return false
		}
	}
}

// --- internals ---

// clearState resets everything to the anonymous state and resolves pending
// waiters false. The generation bump makes any in-flight fetch result stale.
func (p *Provider) clearState() {
	p.mu.Lock()
	p.generation++
	p.user = nil
	p.profile = nil
	p.profileErr = false
	p.loading = false
	p.wallet = models.WalletSnapshot{}
	p.walletLoaded = false
	p.reconciling = false
	sub := p.walletSub
	p.walletSub = nil
	p.resolveWaitersLocked(false)
	p.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

func (p *Provider) resolveWaitersLocked(v bool) {
	for id, ch := range p.waiters {
		ch <- v
		delete(p.waiters, id)
	}
}

func (p *Provider) spawn(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		fn()
	}()
}
