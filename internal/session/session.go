// Package session is the reactive façade over the identity store and the
// API client: login, refresh and logout, plus change notification for UIs.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/nichepulse/nichepulse-go/internal/api"
	apperrors "github.com/nichepulse/nichepulse-go/internal/errors"
	"github.com/nichepulse/nichepulse-go/internal/identity"
	"github.com/nichepulse/nichepulse-go/internal/logging"
)

// State is the derived authentication state.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

// Remote endpoint paths, relative to the API base URL.
const (
	pathOAuthBegin  = "/auth/oauth/begin"
	pathExchange    = "/auth/exchange"
	pathEmailSend   = "/auth/email/send"
	pathEmailVerify = "/auth/email/verify"
	pathCurrentUser = "/auth/me"
)

const defaultOAuthTimeout = 15 * time.Second

// Listener observes session changes. Fired only when the state or the user
// record actually changed.
type Listener func(state State, user *identity.User)

// Config configures the session manager.
type Config struct {
	Store  *identity.Store
	Client *api.Client
	Logger *logging.Logger
	// OAuthTimeout bounds the third-party login redirect call.
	OAuthTimeout time.Duration
}

// Manager coordinates the identity store and the API client behind the
// operations the UI consumes.
type Manager struct {
	store  *identity.Store
	client *api.Client
	logger *logging.Logger

	oauthTimeout time.Duration

	mu        sync.Mutex
	state     State
	lastUser  *identity.User
	listeners []Listener
	started   bool
}

// New creates a session manager. The derived state starts from whatever the
// store already holds.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	oauthTimeout := cfg.OAuthTimeout
	if oauthTimeout == 0 {
		oauthTimeout = defaultOAuthTimeout
	}

	m := &Manager{
		store:        cfg.Store,
		client:       cfg.Client,
		logger:       logger,
		oauthTimeout: oauthTimeout,
		state:        StateAnonymous,
	}
	if _, ok := cfg.Store.Get(); ok {
		m.state = StateAuthenticated
		m.lastUser = cfg.Store.User()
	}
	return m
}

// OnChange registers a listener for session changes.
func (m *Manager) OnChange(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// State returns the current derived state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports whether a complete identity is present.
func (m *Manager) IsAuthenticated() bool {
	_, ok := m.store.Get()
	return ok
}

// User returns the cached user record, or nil when anonymous.
func (m *Manager) User() *identity.User {
	return m.store.User()
}

// Start performs the one-time eager refresh when a token survived from a
// previous run. It is a no-op on subsequent calls and honors ctx
// cancellation, so a consumer that goes away early can abandon it.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	if m.store.Token() == "" {
		return
	}
	if err := m.Refresh(ctx, false); err != nil {
		if ctx.Err() != nil {
			return
		}
		// Silent background refresh: log and move on. An authorization
		// failure has already cleared local identity by this point.
		m.logger.WithContext(ctx).WithError(err).Warn("initial session refresh failed")
	}
}

// BeginOAuth asks the remote service for the third-party login redirect URL.
// This is the one call with a fixed short deadline.
func (m *Manager) BeginOAuth(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.oauthTimeout)
	defer cancel()

	resp, err := api.Do[struct {
		URL string `json:"url"`
	}](ctx, m.client, http.MethodPost, pathOAuthBegin, nil)
	if err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", apperrors.InvalidResponse("login redirect response is missing the URL")
	}
	return resp.URL, nil
}

// loginPayload is what both login endpoints must return.
type loginPayload struct {
	Token string         `json:"token"`
	User  *identity.User `json:"user"`
}

// LoginWithCode exchanges a one-time code for a session.
func (m *Manager) LoginWithCode(ctx context.Context, code string) error {
	return m.login(ctx, pathExchange, map[string]string{"code": code})
}

// SendVerificationCode asks the remote service to email a verification code.
// It never mutates identity; resending is a manual user action, not a retry.
func (m *Manager) SendVerificationCode(ctx context.Context, email string) error {
	_, err := m.client.Do(ctx, http.MethodPost, pathEmailSend, map[string]string{"email": email})
	return err
}

// LoginWithEmail completes the two-step email flow with the emailed code.
func (m *Manager) LoginWithEmail(ctx context.Context, email, code string) error {
	return m.login(ctx, pathEmailVerify, map[string]string{"email": email, "code": code})
}

func (m *Manager) login(ctx context.Context, path string, body interface{}) error {
	m.setState(StateAuthenticating)

	payload, err := api.Do[loginPayload](ctx, m.client, http.MethodPost, path, body)
	if err != nil {
		m.reconcile()
		return err
	}
	if payload.Token == "" || payload.User == nil {
		m.reconcile()
		return apperrors.InvalidResponse("login response is missing token or user")
	}

	if err := m.store.Set(payload.Token, payload.User); err != nil {
		m.reconcile()
		return err
	}
	m.reconcile()
	return nil
}

// Refresh re-fetches the current user. It is a no-op without a token.
// Overwrites and notifications only happen when the record actually changed,
// so back-to-back refreshes with an unchanged remote state produce at most
// one observable update. A 401 clears identity locally even if the
// interceptor path was bypassed.
func (m *Manager) Refresh(ctx context.Context, force bool) error {
	if m.store.Token() == "" {
		return nil
	}

	user, err := api.Do[*identity.User](ctx, m.client, http.MethodGet, pathCurrentUser, nil)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			// The interceptor normally clears on 401; mirror it here for
			// clients wired without one.
			if clearErr := m.store.Clear(); clearErr != nil {
				m.logger.WithError(clearErr).Warn("failed to clear identity after 401")
			}
			m.reconcile()
			return err
		}
		if !force {
			m.logger.WithContext(ctx).WithError(err).Warn("session refresh failed")
		}
		return err
	}
	if user == nil || user.ID == "" {
		return apperrors.InvalidResponse("current-user response is missing the user")
	}

	if !user.Equal(m.store.User()) {
		if err := m.store.SetUser(user); err != nil {
			return err
		}
	}
	m.reconcile()
	return nil
}

// Logout clears identity unconditionally. It is a local-only operation; the
// remote service's token lifetime handles server-side expiry.
func (m *Manager) Logout() error {
	err := m.store.Clear()
	m.reconcile()
	return err
}

// HandleUnauthorized is the interceptor hook: the store has already been
// cleared, so only the derived state and listeners need reconciling.
func (m *Manager) HandleUnauthorized() {
	m.reconcile()
}

// HandleUserUpdate is the interceptor hook for opportunistic user updates
// discovered on unrelated calls.
func (m *Manager) HandleUserUpdate(*identity.User) {
	m.reconcile()
}

// reconcile derives the state from the store and notifies listeners when
// something observable changed.
func (m *Manager) reconcile() {
	m.mu.Lock()

	state := StateAnonymous
	var user *identity.User
	if creds, ok := m.store.Get(); ok {
		state = StateAuthenticated
		user = creds.User
	}

	changed := state != m.state || !user.Equal(m.lastUser)
	m.state = state
	m.lastUser = user
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(state, user)
	}
}

// setState forces a transient state (authenticating) and notifies.
func (m *Manager) setState(state State) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	user := m.lastUser
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(state, user)
	}
}
