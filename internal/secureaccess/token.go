package secureaccess

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	defaultTokenTTL = time.Hour
	// Обновляем токен заранее, чтобы он не истек посреди пагинации
	tokenRefreshMargin = time.Minute
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenSource выдает Bearer-токен API и держит его до истечения срока.
type TokenSource struct {
	mu         sync.Mutex
	httpClient *http.Client
	url        string
	key        string
	secret     string
	logger     *zap.Logger
	now        func() time.Time

	token     string
	expiresAt time.Time
}

func NewTokenSource(httpClient *http.Client, url, key, secret string, logger *zap.Logger) *TokenSource {
	return &TokenSource{
		httpClient: httpClient,
		url:        url,
		key:        key,
		secret:     secret,
		logger:     logger.Named("token"),
		now:        time.Now,
	}
}

// Token возвращает действующий токен, при необходимости запрашивая новый.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(tokenRefreshMargin).Before(s.expiresAt) {
		return s.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	req.SetBasicAuth(s.key, s.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Endpoint: endpointToken, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &decodeError{Endpoint: endpointToken, Err: err}
	}
	if tr.AccessToken == "" {
		return "", &decodeError{Endpoint: endpointToken, Err: fmt.Errorf("empty access_token")}
	}

	s.token = tr.AccessToken
	s.expiresAt = s.expiry(tr)
	s.logger.Debug("acquired access token", zap.Time("expires_at", s.expiresAt))
	return s.token, nil
}

// Invalidate сбрасывает токен (после 401 от API).
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// expiry берет срок из claim exp, если токен — JWT; иначе из expires_in.
func (s *TokenSource) expiry(tr tokenResponse) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	if tr.ExpiresIn > 0 {
		return s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return s.now().Add(defaultTokenTTL)
}
