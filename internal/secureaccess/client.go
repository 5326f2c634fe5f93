package secureaccess

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/infra"
)

const (
	pathToken              = "/auth/v2/token"
	pathIdentities         = "/reports/v2/identities"
	pathUserSummaries      = "/admin/v2/ztna/userSummaries"
	pathZTNAActivity       = "/reports/v2/activity/ztna"
	pathVPNUserConnections = "/admin/v2/vpn/userConnections"
	pathPrivateResources   = "/policies/v2/privateResources"
)

// Имена эндпоинтов для метрик и логов
const (
	endpointToken            = "token"
	endpointIdentities       = "identities"
	endpointUserSummaries    = "user_summaries"
	endpointZTNAActivity     = "ztna_activity"
	endpointVPNConnections   = "vpn_user_connections"
	endpointPrivateResources = "private_resources"
)

// Client — клиент REST API Cisco Secure Access.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenSource
	rel        *reliability
	cfg        infra.SecureAccessConfig
	metrics    *infra.Metrics
	logger     *zap.Logger
}

func NewClient(cfg infra.SecureAccessConfig, metrics *infra.Metrics, logger *zap.Logger) *Client {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	logger = logger.Named("secure-access")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // включается только явно в конфиге
	}
	httpClient := &http.Client{Transport: transport}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     NewTokenSource(httpClient, baseURL+pathToken, cfg.APIKey, cfg.APISecret, logger),
		rel:        newReliability(cfg, metrics, logger),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// Identities возвращает пользователей каталога (directory_user), одной страницей.
func (c *Client) Identities(ctx context.Context) ([]Identity, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.cfg.IdentityLimit))
	q.Set("offset", "0")
	q.Set("identitytypes", "directory_user")

	var resp struct {
		Data []Identity `json:"data"`
	}
	if err := c.getJSON(ctx, endpointIdentities, pathIdentities, q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UserSummaries запрашивает сводки ZTNA пачками по UserSummaryChunk идентификаторов.
func (c *Client) UserSummaries(ctx context.Context, ids []int64) ([]UserSummary, error) {
	chunk := c.cfg.UserSummaryChunk
	out := make([]UserSummary, 0, len(ids))

	for start := 0; start < len(ids); start += chunk {
		end := min(start+chunk, len(ids))

		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.FormatInt(id, 10))
		}

		var resp struct {
			Users []UserSummary `json:"users"`
		}
		// Запятые оставляем как есть: API ждет userIds=1,2,3
		query := "userIds=" + strings.Join(parts, ",")
		if err := c.getJSON(ctx, endpointUserSummaries, pathUserSummaries, query, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Users...)

		c.logger.Debug("user summaries chunk processed",
			zap.Int("done", end),
			zap.Int("total", len(ids)))
	}
	return out, nil
}

// VPNUserConnections собирает все подключения Machine Tunnel и total из ответа API.
func (c *Client) VPNUserConnections(ctx context.Context) ([]VPNConnection, int, error) {
	size := c.cfg.VPNPageSize
	var (
		all   []VPNConnection
		total int
	)

	for offset := 0; ; offset += size {
		var resp struct {
			Data  []VPNConnection `json:"data"`
			Total int             `json:"total"`
		}
		if err := c.getJSON(ctx, endpointVPNConnections, pathVPNUserConnections, pageQuery(size, offset), &resp); err != nil {
			return nil, 0, err
		}
		total = resp.Total

		if len(resp.Data) == 0 {
			break
		}
		all = append(all, resp.Data...)
		if len(resp.Data) < size {
			break
		}
	}
	return all, total, nil
}

// PrivateResources возвращает отсортированный список уникальных имен частных ресурсов.
func (c *Client) PrivateResources(ctx context.Context) ([]string, error) {
	size := c.cfg.ResourcePageSize
	seen := make(map[string]struct{})

	for offset := 0; ; {
		var resp struct {
			Items []PrivateResource `json:"items"`
			Total int               `json:"total"`
		}
		if err := c.getJSON(ctx, endpointPrivateResources, pathPrivateResources, pageQuery(size, offset), &resp); err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			break
		}
		for _, item := range resp.Items {
			seen[item.Name] = struct{}{}
		}

		offset += size
		if offset >= resp.Total {
			break
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ZTNAActivity возвращает одну страницу активности ZTNA за [from, to].
func (c *Client) ZTNAActivity(ctx context.Context, from, to time.Time, limit, offset int) ([]ZTNAEvent, error) {
	q := url.Values{}
	q.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("to", strconv.FormatInt(to.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp struct {
		Data []ZTNAEvent `json:"data"`
	}
	if err := c.getJSON(ctx, endpointZTNAActivity, pathZTNAActivity, q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func pageQuery(limit, offset int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q.Encode()
}

// getJSON выполняет GET с повторами и разбирает JSON-ответ в out.
func (c *Client) getJSON(ctx context.Context, endpoint, path, rawQuery string, out any) error {
	if !c.cfg.HasCredentials() {
		return ErrMissingCredentials
	}

	target := c.baseURL + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	return c.rel.do(ctx, endpoint, func(ctx context.Context) error {
		attemptCtx := ctx
		if c.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
			defer cancel()
		}

		err := c.fetch(attemptCtx, endpoint, target, out)
		if err != nil {
			c.metrics.UpstreamErrors.WithLabelValues(endpoint, errorKind(err)).Inc()
		}
		return err
	})
}

func (c *Client) fetch(ctx context.Context, endpoint, target string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if traceID := infra.TraceID(ctx); traceID != "" {
		req.Header.Set("X-Request-ID", traceID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.UpstreamDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("secure access %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.UpstreamDuration.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		// Токен отозван или истек раньше срока — следующая попытка возьмет новый
		c.tokens.Invalidate()
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode},
		}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{Endpoint: endpoint, Err: err}
	}
	return nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func errorKind(err error) string {
	var (
		tErr *ThrottleError
		sErr *StatusError
		dErr *decodeError
		nErr net.Error
	)
	switch {
	case errors.As(err, &tErr):
		return "throttled"
	case errors.As(err, &sErr):
		return "status_" + strconv.Itoa(sErr.StatusCode)
	case errors.As(err, &dErr):
		return "decode"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &nErr):
		return "network"
	default:
		return "other"
	}
}
