package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"vessel-tracker/src/helpers"
	"vessel-tracker/src/logger"
	"vessel-tracker/src/models"
)

// -----------------------------------------------------------------------------
// Manager owns the single bearer credential for the downstream store. Login is
// single-flight: concurrent callers of EnsureSession while unauthenticated
// observe the same in-flight attempt and share its outcome. Credential expiry
// is handled by PerformAuthorizedRequest with exactly one re-authenticated
// retry, never a loop.
// -----------------------------------------------------------------------------

type Manager struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	HttpClient *http.Client

	mu       sync.Mutex
	token    string
	pending  chan struct{}
	loginErr error
}

// -----------------------------------------------------------------------------

func NewManager(cfg *models.MConfig, log *logger.Logger) *Manager {
	return &Manager{
		Config: cfg,
		Logger: log,
		HttpClient: &http.Client{
			Timeout: time.Duration(cfg.Network.RequestTimeout) * time.Second,
		},
	}
}

// -----------------------------------------------------------------------------

// HasToken reports whether a credential is currently cached. The dedup policy
// uses this to skip the duplicate check (fail open) when auth state is unknown.
func (m *Manager) HasToken() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

// -----------------------------------------------------------------------------

// Invalidate drops the cached credential. Called on any 401/403 response.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}

// -----------------------------------------------------------------------------

// EnsureSession returns the cached credential, or the result of the login
// already in flight, or performs a fresh login. At most one login request is
// ever outstanding process-wide.
func (m *Manager) EnsureSession(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.token != "" {
		token := m.token
		m.mu.Unlock()
		return token, nil
	}

	if m.pending != nil {
		pending := m.pending
		m.mu.Unlock()

		select {
		case <-pending:
		case <-ctx.Done():
			return "", ctx.Err()
		}

		m.mu.Lock()
		token, err := m.token, m.loginErr
		m.mu.Unlock()
		if token != "" {
			return token, nil
		}
		if err == nil {
			err = &helpers.TrackerError{Message: "session invalidated during login"}
		}
		return "", err
	}

	pending := make(chan struct{})
	m.pending = pending
	m.mu.Unlock()

	token, err := m.login(ctx)

	m.mu.Lock()
	m.token = token
	m.loginErr = err
	m.pending = nil
	m.mu.Unlock()
	close(pending)

	return token, err
}

// -----------------------------------------------------------------------------

// login performs the actual credential exchange. Fails fast without a network
// call when no credentials are configured.
func (m *Manager) login(ctx context.Context) (string, error) {
	if m.Config.Store.Email == "" || m.Config.Store.Password == "" {
		m.Logger.WarningOnce("store-credentials", "Store credentials not configured; downstream persistence disabled")
		return "", &helpers.ConfigurationError{TrackerError: helpers.TrackerError{Message: "store credentials not configured"}}
	}

	payload, err := json.Marshal(map[string]string{
		"email":    m.Config.Store.Email,
		"password": m.Config.Store.Password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Config.Store.Host+"/login", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.HttpClient.Do(req)
	if err != nil {
		return "", &helpers.NetworkError{TrackerError: helpers.TrackerError{Message: "login request failed", Cause: err}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &helpers.NetworkError{TrackerError: helpers.TrackerError{Message: "failed to read login response", Cause: err}}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", helpers.NewAuthenticationError("login rejected", resp.StatusCode, string(body))
	}

	// The store has shipped both field names across versions.
	var parsed struct {
		Token string `json:"token"`
		JWT   string `json:"jwt"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", helpers.NewAuthenticationError("malformed login response", resp.StatusCode, string(body))
	}

	token := parsed.Token
	if token == "" {
		token = parsed.JWT
	}
	if token == "" {
		return "", helpers.NewAuthenticationError("login response missing token", resp.StatusCode, string(body))
	}

	m.Logger.Info("Authenticated against store %s", m.Config.Store.Host)
	return token, nil
}

// -----------------------------------------------------------------------------

// PerformAuthorizedRequest executes one bearer-authenticated request built by
// factory. A 401/403 response invalidates the credential and triggers exactly
// one re-authenticated retry; any further status, including a second 401/403,
// is returned to the caller as-is. At most two underlying calls are made.
func (m *Manager) PerformAuthorizedRequest(ctx context.Context, factory func() (*http.Request, error)) (*http.Response, error) {
	token, err := m.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := m.doAuthorized(factory, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	m.Logger.Info("Store rejected credential (status %d); re-authenticating", resp.StatusCode)
	m.Invalidate()

	token, err = m.EnsureSession(ctx)
	if err != nil || token == "" {
		return nil, &helpers.AuthenticationError{
			TrackerError: helpers.TrackerError{Message: "missing token after re-authentication", Cause: err},
		}
	}

	return m.doAuthorized(factory, token)
}

// -----------------------------------------------------------------------------

func (m *Manager) doAuthorized(factory func() (*http.Request, error), token string) (*http.Response, error) {
	req, err := factory()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.HttpClient.Do(req)
	if err != nil {
		return nil, &helpers.NetworkError{TrackerError: helpers.TrackerError{Message: "store request failed", Cause: err}}
	}
	return resp, nil
}
