package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estate-backend/internal/config"
	"estate-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_router_test"

func setupApp(t *testing.T) *fiber.App {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	app, _, rdb, err := CreateApp(&config.Config{
		Env:            "test",
		DatabaseURL:    "sqlite::memory:",
		RedisURL:       "redis://" + mr.Addr(),
		PaymentToken:   "USDC",
		LedgerAdminKey: "admin",
		RecordCacheTTL: time.Minute,

		StripeWebhookSecret: testWebhookSecret,
		TopUpCurrency:       "usd",
	})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return app
}

type client struct {
	t      *testing.T
	app    *fiber.App
	cookie string
}

func (c *client) call(method, path string, body interface{}, headers ...string) (int, map[string]interface{}) {
	c.t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	for _, sc := range resp.Header.Values("Set-Cookie") {
		if strings.HasPrefix(sc, middleware.SessionCookieName+"=") {
			c.cookie = strings.SplitN(sc, ";", 2)[0]
		}
	}
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// login registers a user, logs in and returns a client carrying the session
// cookie together with the user's ledger identity.
func login(t *testing.T, app *fiber.App, email string) (*client, string) {
	c := &client{t: t, app: app}
	code, _ := c.call(http.MethodPost, "/api/v1/accounts/register", map[string]string{"email": email, "password": "passw0rd!"})
	require.Equal(t, fiber.StatusCreated, code)
	code, out := c.call(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": "passw0rd!"})
	require.Equal(t, fiber.StatusOK, code)
	require.NotEmpty(t, c.cookie)
	user := out["data"].(map[string]interface{})["user"].(map[string]interface{})
	return c, user["identity"].(string)
}

func TestHealth(t *testing.T) {
	app := setupApp(t)
	c := &client{t: t, app: app}
	code, out := c.call(http.MethodGet, "/health/json", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "ok", out["status"])
}

func TestAssetsRequireSession(t *testing.T) {
	app := setupApp(t)
	c := &client{t: t, app: app}
	code, _ := c.call(http.MethodGet, "/api/v1/assets", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestSettlementEndToEnd(t *testing.T) {
	app := setupApp(t)
	owner, _ := login(t, app, "owner@example.com")
	buyer, buyerID := login(t, app, "buyer@example.com")

	code, out := owner.call(http.MethodPost, "/api/v1/assets", map[string]interface{}{
		"metadata_hash":   strings.Repeat("a1", 32),
		"metadata_uri":    "ipfs://villa",
		"total_tokens":    1000,
		"price_per_token": 10,
	})
	require.Equal(t, fiber.StatusCreated, code)
	assetID := out["data"].(map[string]interface{})["asset_id"].(string)
	base := "/api/v1/assets/" + assetID

	code, _ = buyer.call(http.MethodPost, "/api/v1/ledger/faucet", map[string]interface{}{"identity": buyerID, "amount": 1000})
	assert.Equal(t, fiber.StatusForbidden, code)
	code, _ = buyer.call(http.MethodPost, "/api/v1/ledger/faucet",
		map[string]interface{}{"identity": buyerID, "amount": 1000}, middleware.AdminKeyHeader, "admin")
	require.Equal(t, fiber.StatusOK, code)

	code, _ = buyer.call(http.MethodPost, base+"/buy", map[string]uint64{"amount": 100})
	require.Equal(t, fiber.StatusOK, code)

	code, _ = buyer.call(http.MethodPost, base+"/deposit-yield", map[string]uint64{"amount": 1000})
	require.Equal(t, fiber.StatusBadRequest, code, "buyer spent everything on shares")

	code, out = owner.call(http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, fiber.StatusOK, code)
	ownerID := out["data"].(map[string]interface{})["user"].(map[string]interface{})["identity"].(string)

	// The owner received exactly 1000 for the shares sold.
	code, _ = owner.call(http.MethodPost, base+"/deposit-yield", map[string]uint64{"amount": 1000})
	require.Equal(t, fiber.StatusOK, code)

	code, _ = owner.call(http.MethodPost, "/api/v1/ledger/faucet",
		map[string]interface{}{"identity": ownerID, "amount": 1_000_000}, middleware.AdminKeyHeader, "admin")
	require.Equal(t, fiber.StatusOK, code)
	code, _ = owner.call(http.MethodPost, base+"/deposit-yield", map[string]uint64{"amount": 1_000_000})
	require.Equal(t, fiber.StatusOK, code)

	code, out = buyer.call(http.MethodGet, base+"/pending-yield", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(100_100), out["data"].(map[string]interface{})["pending"])

	code, out = buyer.call(http.MethodPost, base+"/claim-yield", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(100_100), out["data"].(map[string]interface{})["amount"])

	code, _ = buyer.call(http.MethodPost, base+"/claim-yield", nil)
	assert.Equal(t, fiber.StatusConflict, code)

	code, out = buyer.call(http.MethodGet, "/api/v1/accounts/balances", nil)
	require.Equal(t, fiber.StatusOK, code)
	bals := out["data"].(map[string]interface{})["balances"].([]interface{})
	got := map[string]float64{}
	for _, b := range bals {
		m := b.(map[string]interface{})
		got[m["token"].(string)] = m["balance"].(float64)
	}
	assert.Equal(t, float64(100_100), got["USDC"])
	assert.Equal(t, float64(100), got["share:"+assetID])

	code, _ = buyer.call(http.MethodDelete, "/api/v1/auth/logout", nil)
	require.Equal(t, fiber.StatusOK, code)
	code, _ = buyer.call(http.MethodGet, "/api/v1/accounts/balances", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestStripeTopUpCreditsLedger(t *testing.T) {
	app := setupApp(t)
	buyer, buyerID := login(t, app, "buyer@example.com")

	// No Stripe secret key is configured, so no PaymentIntent can be opened.
	code, _ := buyer.call(http.MethodPost, "/api/v1/accounts/top-up", map[string]int64{"amount": 2500})
	assert.Equal(t, fiber.StatusNotImplemented, code)

	body, err := json.Marshal(map[string]interface{}{
		"id":   "evt_router_1",
		"type": "payment_intent.succeeded",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":              "pi_router_1",
				"object":          "payment_intent",
				"amount_received": 2500,
				"currency":        "usd",
				"status":          "succeeded",
				"metadata":        map[string]string{"identity": buyerID, "payment_token": "USDC"},
			},
		},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: testWebhookSecret})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	code, out := buyer.call(http.MethodGet, "/api/v1/accounts/balances", nil)
	require.Equal(t, fiber.StatusOK, code)
	bals := out["data"].(map[string]interface{})["balances"].([]interface{})
	got := map[string]float64{}
	for _, b := range bals {
		m := b.(map[string]interface{})
		got[m["token"].(string)] = m["balance"].(float64)
	}
	assert.Equal(t, float64(2500), got["USDC"])
}
