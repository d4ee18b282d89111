package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/aircater/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Session holds the access/refresh token pair for the API. Token expiry is
// checked locally from the JWT claims so most requests avoid a doomed
// round trip; a 401 still triggers one refresh-and-retry in the client.
type Session struct {
	mu           sync.Mutex
	refreshURL   string
	http         *http.Client
	accessToken  string
	refreshToken string
}

func NewSession(refreshURL string, httpClient *http.Client, accessToken, refreshToken string) *Session {
	return &Session{
		refreshURL:   refreshURL,
		http:         httpClient,
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

// Token returns a usable access token, refreshing proactively when the
// current one expires within the next 30 seconds.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && !expiringSoon(s.accessToken, 30*time.Second) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Refresh forces a token refresh (used after a 401).
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return common.ErrorUnauthorized
	}

	body, err := json.Marshal(map[string]string{"refresh_token": s.refreshToken})
	if err != nil {
		return fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.refreshURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w: %w", common.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh failed with status %d: %w", resp.StatusCode, common.ErrorUnauthorized)
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}

	s.accessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		s.refreshToken = tokens.RefreshToken
	}
	return nil
}

// expiringSoon parses the token without verifying the signature (the server
// verifies; we only need the exp claim) and reports whether it expires
// within margin.
func expiringSoon(token string, margin time.Duration) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		// opaque token, let the server decide
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < margin
}
