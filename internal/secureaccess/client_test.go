package secureaccess

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/infra"
)

func testConfig(baseURL string) infra.SecureAccessConfig {
	return infra.SecureAccessConfig{
		BaseURL:          baseURL,
		APIKey:           "key",
		APISecret:        "secret",
		RequestTimeout:   5 * time.Second,
		MaxRetries:       3,
		RetryDelay:       time.Millisecond,
		IdentityLimit:    2000,
		UserSummaryChunk: 100,
		VPNPageSize:      500,
		ResourcePageSize: 100,
		ZTNAPageSize:     5000,
		ZTNAMaxOffset:    15000,
	}
}

// fakeAPI — минимальная имитация Secure Access: выдает токен и отдает маршруты из routes.
type fakeAPI struct {
	t           *testing.T
	tokenCalls  atomic.Int32
	routes      map[string]http.HandlerFunc
	validTokens map[string]bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{t: t, routes: map[string]http.HandlerFunc{}, validTokens: map[string]bool{}}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == pathToken {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := f.tokenCalls.Add(1)
		token := "token-" + strconv.Itoa(int(n))
		f.validTokens[token] = true
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": token, "expires_in": 3600})
		return
	}

	token := r.Header.Get("Authorization")
	if len(token) < 7 || !f.validTokens[token[7:]] {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	h, ok := f.routes[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h(w, r)
}

func newTestClient(t *testing.T, api http.Handler, mutate func(*infra.SecureAccessConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg, infra.NewMetrics(nil), zap.NewNop())
}

func TestClient_TokenReusedAcrossRequests(t *testing.T) {
	api := newFakeAPI(t)
	api.routes[pathIdentities] = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "directory_user", r.URL.Query().Get("identitytypes"))
		assert.Equal(t, "2000", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data":[{"id":1,"label":"Ana Perez (A1234567@corp.mx)"}]}`)
	}
	c := newTestClient(t, api, nil)

	for i := 0; i < 2; i++ {
		ids, err := c.Identities(t.Context())
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, int64(1), ids[0].ID)
	}
	assert.Equal(t, int32(1), api.tokenCalls.Load())
}

func TestClient_UserSummariesChunked(t *testing.T) {
	api := newFakeAPI(t)
	var queries []string
	api.routes[pathUserSummaries] = func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		fmt.Fprint(w, `{"users":[{"userId":"7","deviceCertificateCounts":{"active":2,"expired":1,"revoked":0}}]}`)
	}
	c := newTestClient(t, api, func(cfg *infra.SecureAccessConfig) { cfg.UserSummaryChunk = 2 })

	sums, err := c.UserSummaries(t.Context(), []int64{1, 2, 3, 4, 5})
	require.NoError(t, err)

	assert.Equal(t, []string{"userIds=1,2", "userIds=3,4", "userIds=5"}, queries)
	require.Len(t, sums, 3)
	assert.Equal(t, FlexID(7), sums[0].UserID)
	assert.Equal(t, 2, sums[0].DeviceCertificateCounts.Active)
}

func TestClient_VPNUserConnectionsStopsOnShortPage(t *testing.T) {
	api := newFakeAPI(t)
	var offsets []string
	api.routes[pathVPNUserConnections] = func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)
		switch offset {
		case "0":
			fmt.Fprint(w, `{"total":3,"data":[{"deviceName":"A"},{"deviceName":"B"}]}`)
		default:
			fmt.Fprint(w, `{"total":3,"data":[{"deviceName":"C"}]}`)
		}
	}
	c := newTestClient(t, api, func(cfg *infra.SecureAccessConfig) { cfg.VPNPageSize = 2 })

	conns, total, err := c.VPNUserConnections(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, conns, 3)
	assert.Equal(t, []string{"0", "2"}, offsets)
}

func TestClient_PrivateResourcesDistinctAndBoundedByTotal(t *testing.T) {
	api := newFakeAPI(t)
	calls := 0
	api.routes[pathPrivateResources] = func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("offset") == "0" {
			fmt.Fprint(w, `{"total":3,"items":[{"name":"wiki"},{"name":"erp"}]}`)
			return
		}
		fmt.Fprint(w, `{"total":3,"items":[{"name":"wiki"}]}`)
	}
	c := newTestClient(t, api, func(cfg *infra.SecureAccessConfig) { cfg.ResourcePageSize = 2 })

	names, err := c.PrivateResources(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"erp", "wiki"}, names)
	assert.Equal(t, 2, calls)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	api := newFakeAPI(t)
	var calls atomic.Int32
	api.routes[pathIdentities] = func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	}
	c := newTestClient(t, api, nil)

	_, err := c.Identities(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	api := newFakeAPI(t)
	var calls atomic.Int32
	api.routes[pathIdentities] = func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}
	c := newTestClient(t, api, nil)

	_, err := c.Identities(t.Context())
	var sErr *StatusError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, http.StatusInternalServerError, sErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryNotFound(t *testing.T) {
	api := newFakeAPI(t)
	var calls atomic.Int32
	api.routes[pathIdentities] = func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}
	c := newTestClient(t, api, nil)

	_, err := c.Identities(t.Context())
	var sErr *StatusError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, http.StatusNotFound, sErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RefreshesTokenAfterUnauthorized(t *testing.T) {
	api := newFakeAPI(t)
	api.routes[pathIdentities] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}
	c := newTestClient(t, api, nil)

	_, err := c.Identities(t.Context())
	require.NoError(t, err)

	// API забыл токен — клиент должен взять новый
	api.validTokens = map[string]bool{}
	_, err = c.Identities(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.tokenCalls.Load())
}

func TestClient_BadCredentialsNotRetried(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, func(cfg *infra.SecureAccessConfig) { cfg.APISecret = "wrong" })

	_, err := c.Identities(t.Context())
	var sErr *StatusError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, endpointToken, sErr.Endpoint)
	assert.Equal(t, int32(0), api.tokenCalls.Load())
}

func TestClient_MissingCredentials(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(t, api, func(cfg *infra.SecureAccessConfig) { cfg.APIKey = "" })

	_, err := c.Identities(t.Context())
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestClient_ThrottleHonoursRetryAfter(t *testing.T) {
	api := newFakeAPI(t)
	var calls atomic.Int32
	api.routes[pathZTNAActivity] = func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		assert.Equal(t, "5000", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"data":[{"timestamp":1700000000000,"allapplications":[{"type":"PRIVATE","label":"erp"}]}]}`)
	}
	c := newTestClient(t, api, nil)

	start := time.Now()
	events, err := c.ZTNAActivity(t.Context(), time.UnixMilli(0), time.UnixMilli(1), 5000, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(errors.New("connection reset")))
	assert.True(t, retryable(&StatusError{Endpoint: endpointIdentities, StatusCode: 503}))
	assert.True(t, retryable(&StatusError{Endpoint: endpointIdentities, StatusCode: 401}))
	assert.True(t, retryable(&ThrottleError{Cause: errors.New("429")}))
	assert.True(t, retryable(&ThrottleError{Cause: &StatusError{Endpoint: endpointZTNAActivity, StatusCode: 429}}))
	assert.False(t, retryable(&StatusError{Endpoint: endpointIdentities, StatusCode: 400}))
	assert.False(t, retryable(&StatusError{Endpoint: endpointToken, StatusCode: 401}))
	assert.False(t, retryable(&decodeError{Endpoint: endpointIdentities, Err: errors.New("eof")}))
	assert.False(t, retryable(ErrMissingCredentials))
}
