package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"golang.org/x/time/rate"

	"github.com/calimero-network/calimero-go/pkg/id"
)

// AuthMode is the authentication scheme a node requires, as discovered by
// DetectAuthMode.
type AuthMode int

const (
	// AuthModeUnknown means the probe could not reach the node.
	AuthModeUnknown AuthMode = iota
	// AuthModeNone means the node accepts unauthenticated requests.
	AuthModeNone
	// AuthModeBearerJWT means the node requires a bearer JWT.
	AuthModeBearerJWT
	// AuthModeNodeSigned means the node requires ed25519-signed requests.
	AuthModeNodeSigned
)

func (m AuthMode) String() string {
	switch m {
	case AuthModeNone:
		return "none"
	case AuthModeBearerJWT:
		return "bearer-jwt"
	case AuthModeNodeSigned:
		return "node-signed"
	default:
		return "unknown"
	}
}

// credentialKind tags which credential variant is active on a Connection.
type credentialKind int

const (
	credentialNone credentialKind = iota
	credentialBearer
	credentialKeyPair
)

// refreshMargin is how close to expiry a bearer token may get before it is
// refreshed. Generous enough to absorb clock skew between client and node.
const refreshMargin = 60 * time.Second

// Connection holds the target node API address and the current credential.
// A Connection is safe for concurrent use; the credential is the only
// mutable state and is guarded internally.
type Connection struct {
	apiURL     *url.URL
	nodeName   string
	httpClient *http.Client
	limiter    *rate.Limiter

	// credential state — guarded by mu
	mu           sync.Mutex
	kind         credentialKind
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time // zero = manual token, never auto-refreshed
	signKey      ed25519.PrivateKey
	inflight     *refreshCall
}

// refreshCall is one in-flight token refresh shared by every caller that
// observed the expired token while it was running.
type refreshCall struct {
	done chan struct{}
	err  error
}

// ConnectionOption configures a Connection.
type ConnectionOption func(*Connection) error

// WithNodeName attaches a logical node name to the connection. Purely
// informational; surfaced by NodeName and in CLI output.
func WithNodeName(name string) ConnectionOption {
	return func(c *Connection) error {
		c.nodeName = name
		return nil
	}
}

// WithAuthToken attaches a pre-obtained bearer token to every request. The
// token is treated as long-lived and is never auto-refreshed.
func WithAuthToken(token string) ConnectionOption {
	return func(c *Connection) error {
		c.kind = credentialBearer
		c.accessToken = token
		c.tokenExpiry = time.Time{}
		return nil
	}
}

// WithAuthTokens attaches a bearer access/refresh token pair. The access
// token's expiry is read from its JWT exp claim (unverified — the node is
// the authority on validity) and the token is refreshed automatically when
// it approaches expiry.
func WithAuthTokens(accessToken, refreshToken string) ConnectionOption {
	return func(c *Connection) error {
		c.kind = credentialBearer
		c.accessToken = accessToken
		c.refreshToken = refreshToken
		c.tokenExpiry = tokenExpiry(accessToken)
		return nil
	}
}

// WithKeyPair configures ed25519 node-signed authentication. Every request
// carries X-Timestamp, X-Public-Key and X-Signature headers instead of a
// bearer token.
func WithKeyPair(key ed25519.PrivateKey) ConnectionOption {
	return func(c *Connection) error {
		if len(key) != ed25519.PrivateKeySize {
			return &ValidationError{Kind: "signing key", Value: "", Reason: "not an ed25519 private key"}
		}
		c.kind = credentialKeyPair
		c.signKey = key
		return nil
	}
}

// WithHTTPClient sets a custom http.Client, e.g. for TLS configuration.
func WithHTTPClient(hc *http.Client) ConnectionOption {
	return func(c *Connection) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout (default 30s). Callers needing
// finer control pass a context with a deadline instead.
func WithTimeout(d time.Duration) ConnectionOption {
	return func(c *Connection) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithRateLimit caps outbound requests at r per second with the given
// burst. Useful against shared or metered nodes.
func WithRateLimit(r rate.Limit, burst int) ConnectionOption {
	return func(c *Connection) error {
		c.limiter = rate.NewLimiter(r, burst)
		return nil
	}
}

// NewConnection creates a Connection to the node API at apiURL. The URL
// must be absolute with an http or https scheme; anything else fails with a
// ValidationError and no network I/O.
func NewConnection(apiURL string, opts ...ConnectionOption) (*Connection, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, &ValidationError{Kind: "API URL", Value: apiURL, Reason: err.Error()}
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, &ValidationError{Kind: "API URL", Value: apiURL, Reason: "must be an absolute URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ValidationError{Kind: "API URL", Value: apiURL, Reason: "scheme must be http or https"}
	}

	c := &Connection{
		apiURL:     u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// APIURL returns the node API base URL.
func (c *Connection) APIURL() string { return c.apiURL.String() }

// NodeName returns the logical node name, or "" when unset.
func (c *Connection) NodeName() string { return c.nodeName }

// SetAuthTokens replaces the stored bearer token pair, e.g. after an
// out-of-band login. It is the only mutation a Connection supports after
// construction.
func (c *Connection) SetAuthTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind = credentialBearer
	c.accessToken = accessToken
	c.refreshToken = refreshToken
	c.tokenExpiry = tokenExpiry(accessToken)
}

// DetectAuthMode probes the node's health endpoint to determine which
// authentication scheme it requires. A transport failure yields
// AuthModeUnknown rather than an error: this probe exists for graceful
// degradation, not hard failure.
func (c *Connection) DetectAuthMode(ctx context.Context) AuthMode {
	probeURL := c.apiURL.JoinPath("admin-api", "health").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return AuthModeUnknown
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AuthModeUnknown
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<12))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if resp.Header.Get("WWW-Authenticate") == "Signature" {
			return AuthModeNodeSigned
		}
		return AuthModeBearerJWT
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return AuthModeNone
	default:
		// Any other status means the endpoint exists but is guarded.
		return AuthModeBearerJWT
	}
}

// RefreshCredential re-authenticates a bearer token that has expired or is
// within the refresh margin. It is a no-op for manual tokens, key pairs,
// and tokens that are still fresh. Refreshing is single-flight: concurrent
// callers observing an expired token trigger exactly one network refresh
// and all reuse its result. The lock is not held across the network call.
func (c *Connection) RefreshCredential(ctx context.Context) error {
	_, err := c.ensureFresh(ctx)
	return err
}

// ensureFresh refreshes the bearer token if needed and returns the current
// token (or "" when no bearer credential is set). Called by the dispatcher
// before attaching auth headers.
func (c *Connection) ensureFresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.kind != credentialBearer {
		c.mu.Unlock()
		return "", nil
	}
	// Zero expiry marks a manually supplied token; the caller owns its
	// lifecycle.
	if c.tokenExpiry.IsZero() || time.Now().Before(c.tokenExpiry.Add(-refreshMargin)) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	if c.refreshToken == "" {
		c.mu.Unlock()
		return "", &HTTPError{Status: http.StatusUnauthorized, Message: "bearer token expired and no refresh token available"}
	}

	if call := c.inflight; call != nil {
		// Another caller is already refreshing; reuse its result.
		c.mu.Unlock()
		select {
		case <-call.done:
		case <-ctx.Done():
			return "", &TransportError{
				Op:      "POST auth/refresh",
				Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
				Err:     ctx.Err(),
			}
		}
		if call.err != nil {
			return "", call.err
		}
		c.mu.Lock()
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	access, refresh, err := c.requestRefresh(ctx)

	c.mu.Lock()
	c.inflight = nil
	if err == nil {
		c.accessToken = access
		c.refreshToken = refresh
		c.tokenExpiry = tokenExpiry(access)
	}
	call.err = err
	c.mu.Unlock()
	close(call.done)

	if err != nil {
		return "", err
	}
	return access, nil
}

// requestRefresh exchanges the current token pair at the node's refresh
// endpoint. The node accepts camelCase fields and may answer in either
// spelling.
func (c *Connection) requestRefresh(ctx context.Context) (access, refresh string, err error) {
	body, err := json.Marshal(map[string]string{
		"accessToken":  c.accessToken,
		"refreshToken": c.refreshToken,
	})
	if err != nil {
		return "", "", fmt.Errorf("marshal refresh request: %w", err)
	}

	refreshURL := c.apiURL.JoinPath("auth", "refresh").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", &TransportError{Op: "POST auth/refresh", Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", "", &TransportError{Op: "POST auth/refresh", Err: err}
	}
	if resp.StatusCode >= 300 {
		return "", "", &HTTPError{Status: resp.StatusCode, Message: errorMessage(respBody)}
	}

	data, err := envelopeData(respBody)
	if err != nil {
		return "", "", err
	}
	fields, err := objectFields(data)
	if err != nil {
		return "", "", err
	}
	access, err = stringField(fields, "access_token", "access_token", "accessToken")
	if err != nil {
		return "", "", err
	}
	refresh, _ = optionalStringField(fields, "refresh_token", "refreshToken")
	return access, refresh, nil
}

// tokenExpiry extracts the exp claim from a JWT without verifying its
// signature. Returns the zero time when the token is not a parseable JWT or
// carries no expiry, which disables auto-refresh for it.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// attachAuth adds the active credential to req. Bearer tokens were already
// freshened by the dispatcher; key pairs sign timestamp, method and path so
// a captured signature cannot be replayed against another endpoint.
func (c *Connection) attachAuth(req *http.Request, token string) {
	c.mu.Lock()
	kind := c.kind
	key := c.signKey
	c.mu.Unlock()

	switch kind {
	case credentialBearer:
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case credentialKeyPair:
		ts := fmt.Sprintf("%d", time.Now().Unix())
		payload := ts + "\n" + req.Method + "\n" + req.URL.Path
		sig := ed25519.Sign(key, []byte(payload))
		req.Header.Set("X-Timestamp", ts)
		req.Header.Set("X-Public-Key", base58.Encode(key.Public().(ed25519.PublicKey)))
		req.Header.Set("X-Signature", base58.Encode(sig))
	}
}

// PublicKey returns the base58 public key for node-signed connections, or
// "" for other credential kinds.
func (c *Connection) PublicKey() id.PublicKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind != credentialKeyPair {
		return ""
	}
	return id.PublicKey(base58.Encode(c.signKey.Public().(ed25519.PublicKey)))
}
