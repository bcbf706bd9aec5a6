package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcarena/internal/engine"
	"btcarena/internal/infra"
	"btcarena/internal/storage"
)

type testEnv struct {
	router   http.Handler
	ticker   *httptest.Server
	cooldown *infra.Cooldown
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithCooldown(t, 0)
}

func newTestEnvWithCooldown(t *testing.T, cooldownInterval time.Duration) *testEnv {
	t.Helper()

	ticker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"50000.00"}`)
	}))
	t.Cleanup(ticker.Close)

	oracle := infra.NewPriceOracle(ticker.URL, "BTCUSDT", 30*time.Second)
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	eng, err := engine.New(engine.DefaultConfig(), store, oracle, nil)
	require.NoError(t, err)

	cooldown := infra.NewCooldown(cooldownInterval)
	news := infra.NewNewsAggregator(nil, 20)
	h := NewHandler(eng, oracle, news, cooldown)

	return &testEnv{router: h.Router(), ticker: ticker, cooldown: cooldown}
}

func (env *testEnv) do(t *testing.T, method, path, account string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if account != "" {
		req.Header.Set("X-Account-ID", account)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestRegisterAndPortfolio(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "alice", body["nickname"])
	assert.Equal(t, "100000", body["usd"])

	rec = env.do(t, http.MethodGet, "/portfolio", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "100000", body["usd"])
	assert.Equal(t, "50000", body["price"])
	assert.Equal(t, "0", body["pnl"])
}

func TestRegisterRequiresAccountHeader(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/register", "", map[string]string{"nickname": "alice"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterDuplicateNicknameConflict(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "Alice"})
	rec := env.do(t, http.MethodPost, "/register", "u2", map[string]string{"nickname": "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBuySellFlow(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "alice"})

	rec := env.do(t, http.MethodPost, "/buy", "u1", map[string]any{"amount": "1000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	trade := decode(t, rec)
	assert.Equal(t, "BUY", trade["side"])
	assert.Equal(t, "0.01998", trade["btc"])

	rec = env.do(t, http.MethodPost, "/sell", "u1", map[string]any{"percent": 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	trade = decode(t, rec)
	assert.Equal(t, "SELL", trade["side"])
}

func TestBuyValidation(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "alice"})

	// Both sizing fields.
	rec := env.do(t, http.MethodPost, "/buy", "u1", map[string]any{"amount": "10", "percent": 50})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Neither.
	rec = env.do(t, http.MethodPost, "/buy", "u1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Garbage amount.
	rec = env.do(t, http.MethodPost, "/buy", "u1", map[string]any{"amount": "-3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// More than the balance.
	rec = env.do(t, http.MethodPost, "/buy", "u1", map[string]any{"amount": "100001"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUnregisteredAccountIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/portfolio", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/buy", "ghost", map[string]any{"amount": "100"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "alice"})

	rec := env.do(t, http.MethodPost, "/orders", "u1", map[string]any{
		"kind": "LIMIT_BUY", "trigger_price": "40000", "amount": "500",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decode(t, rec)
	orderID, _ := placed["id"].(string)
	require.NotEmpty(t, orderID)

	rec = env.do(t, http.MethodGet, "/orders", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["orders"], 1)

	rec = env.do(t, http.MethodDelete, "/orders/"+orderID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["cancelled"])

	// Cancelling again is a soft miss, not an error.
	rec = env.do(t, http.MethodDelete, "/orders/"+orderID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["cancelled"])
}

func TestPlaceOrderRejectsBadKind(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "alice"})

	rec := env.do(t, http.MethodPost, "/orders", "u1", map[string]any{
		"kind": "YOLO", "trigger_price": "40000", "amount": "500",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaderboardPublic(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "alice"})
	env.do(t, http.MethodPost, "/register", "u2", map[string]string{"nickname": "bob"})

	// No account header needed.
	rec := env.do(t, http.MethodGet, "/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["standings"], 2)
	assert.NotContains(t, body, "winner")
}

func TestClaimBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "alice"})

	rec := env.do(t, http.MethodPost, "/claim", "u1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCurrentPrice(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/price", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "50000", decode(t, rec)["price"])
}

func TestResetAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "alice"})
	env.do(t, http.MethodPost, "/buy", "u1", map[string]any{"amount": "1000"})

	rec := env.do(t, http.MethodPost, "/reset", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/portfolio", "u1", nil)
	assert.Equal(t, "100000", decode(t, rec)["usd"])

	rec = env.do(t, http.MethodDelete, "/account", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/portfolio", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCooldownRefusesRapidCommands(t *testing.T) {
	env := newTestEnvWithCooldown(t, time.Minute)
	env.do(t, http.MethodPost, "/register", "u1", map[string]string{"nickname": "alice"})

	rec := env.do(t, http.MethodPost, "/buy", "u1", map[string]any{"amount": "100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/buy", "u1", map[string]any{"amount": "100"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are exempt from the cooldown.
	rec = env.do(t, http.MethodGet, "/portfolio", "u1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
