package anonapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const (
	// ExpiryBuffer is subtracted from the declared token lifetime so a token
	// reported as valid is never expired by the time it reaches the backend.
	ExpiryBuffer = 50 * time.Millisecond

	tokenRequestTimeout = 30 * time.Second
)

// Token is replaced as a whole on every refresh.
type Token struct {
	Type        string
	AccessToken string
	ExpiresAt   time.Time
}

// Header returns the Authorization header value.
func (t *Token) Header() string {
	return t.Type + " " + t.AccessToken
}

// ExpiryClaim returns the unverified exp claim of the access token, if it is a JWT.
func (t *Token) ExpiryClaim() (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

type tokenResponse struct {
	AccessToken      *string `json:"access_token"`
	ExpiresIn        *int64  `json:"expires_in"`
	RefreshExpiresIn int64   `json:"refresh_expires_in"`
	RefreshToken     string  `json:"refresh_token"`
	TokenType        *string `json:"token_type"`
}

// TokenManager hands out valid bearer tokens for the anonymous API.
//
// The backend ignores the refresh_token grant, so every refresh is a fresh
// client_credentials request.
type TokenManager struct {
	httpClient *http.Client
	creds      Credentials
	clock      clockwork.Clock
	token      atomic.Pointer[Token]
	refreshes  atomic.Int64
}

func NewTokenManager(creds Credentials) *TokenManager {
	return &TokenManager{
		httpClient: &http.Client{Timeout: tokenRequestTimeout},
		creds:      creds,
		clock:      clockwork.NewRealClock(),
	}
}

func (m *TokenManager) SetClock(clock clockwork.Clock) {
	m.clock = clock
}

func (m *TokenManager) SetTransport(rt http.RoundTripper) {
	m.httpClient.Transport = rt
}

// Token returns the current token, or nil before the first refresh.
func (m *TokenManager) Token() *Token {
	return m.token.Load()
}

// RefreshCount returns the number of successful refreshes so far.
func (m *TokenManager) RefreshCount() int64 {
	return m.refreshes.Load()
}

// ForceRefresh requests a new token regardless of the current one.
func (m *TokenManager) ForceRefresh() error {
	form := url.Values{}
	form.Set("scope", "")
	form.Set("client_id", m.creds.ClientID)
	form.Set("client_secret", m.creds.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequest(http.MethodPost, m.creds.IdentityURL, strings.NewReader(form.Encode()))
	if err != nil {
		return NewAuthError(0, "creating token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", m.creds.UserAgent)

	requestedAt := m.clock.Now()
	res, err := m.httpClient.Do(req)
	if err != nil {
		return NewAuthError(0, "requesting token", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(res.Body)
		return NewAuthError(res.StatusCode, fmt.Sprintf("token request failed: %s", string(body)), nil)
	}

	var response tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return NewAuthError(0, "decoding token response", err)
	}
	if err := response.validate(); err != nil {
		return NewAuthError(0, "malformed token response", err)
	}

	token := &Token{
		Type:        *response.TokenType,
		AccessToken: *response.AccessToken,
		ExpiresAt:   requestedAt.Add(time.Duration(*response.ExpiresIn)*time.Second - ExpiryBuffer),
	}
	if exp, ok := token.ExpiryClaim(); ok {
		log.Debugf("token exp claim %s, declared expiry %s", exp.Format(time.RFC3339), token.ExpiresAt.Format(time.RFC3339))
		if exp.Before(token.ExpiresAt) {
			log.Warnf("token exp claim is %s earlier than declared expires_in", token.ExpiresAt.Sub(exp))
		}
	}

	m.token.Store(token)
	m.refreshes.Add(1)
	log.Debugf("token refreshed, expires in %ds", *response.ExpiresIn)
	return nil
}

// ValidToken returns the Authorization header value for a token that has not
// expired, refreshing first when needed.
func (m *TokenManager) ValidToken() (string, error) {
	token := m.token.Load()
	if token == nil || !m.clock.Now().Before(token.ExpiresAt) {
		if err := m.ForceRefresh(); err != nil {
			return "", err
		}
		token = m.token.Load()
	}
	return token.Header(), nil
}

func (r *tokenResponse) validate() error {
	var missing []string
	if r.AccessToken == nil || *r.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if r.TokenType == nil || *r.TokenType == "" {
		missing = append(missing, "token_type")
	}
	if r.ExpiresIn == nil {
		missing = append(missing, "expires_in")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}
