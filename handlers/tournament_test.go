package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tournament-factory/escrow"
	"tournament-factory/factory"
	"tournament-factory/services"
	"tournament-factory/utils"
)

var start = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := utils.OpenDatabase("sqlite", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, services.Migrate(db))

	ledger := services.NewLedgerService(db, nil)
	ledger.Now = func() time.Time { return start }
	require.NoError(t, ledger.Open(services.DeployArgs{
		Owner: "owner",
		Config: factory.Config{
			DisplayName:         "Test Warrior",
			Symbol:              "WRR",
			DefaultEntryFee:     escrow.MustParseAmount("1"),
			VerificationEnabled: true,
		},
	}))

	app := fiber.New()
	SetupTournamentRoutes(app, services.NewTournamentService(ledger), services.NewFactoryService(ledger))
	return app
}

func call(t *testing.T, app *fiber.App, method, path, user, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestGetOwner(t *testing.T) {
	app := newApp(t)
	status, body := call(t, app, http.MethodGet, "/owner", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "owner", body["owner"])
}

func TestMutationsRequireCaller(t *testing.T) {
	app := newApp(t)
	status, body := call(t, app, http.MethodPost, "/factory/pause", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body["error"], "X-User-ID")
}

func TestCreateTournamentFlow(t *testing.T) {
	app := newApp(t)
	deadline := start.Add(2 * time.Hour).Unix()

	status, body := call(t, app, http.MethodPost, "/tournaments", "mallory",
		`{"deadline":`+jsonInt(deadline)+`,"max_participants":4}`)
	assert.Equal(t, http.StatusForbidden, status, body)

	status, _ = call(t, app, http.MethodPut, "/factory/verified/carol", "owner", `{"verified":true}`)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, app, http.MethodPost, "/tournaments", "carol",
		`{"deadline":`+jsonInt(deadline)+`,"max_participants":4}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1, body["tournament_id"])
	events := body["events"].([]any)
	require.Len(t, events, 1)
	created := events[0].(map[string]any)
	assert.Equal(t, factory.EventNewTournamentCreated, created["type"])
	assert.Equal(t, "1", created["attributes"].(map[string]any)["entry_fee"])

	status, body = call(t, app, http.MethodPost, "/tournaments/1/register", "dave", "")
	assert.Equal(t, http.StatusPaymentRequired, status, body)

	status, _ = call(t, app, http.MethodPost, "/wallets/dave/deposit", "owner", `{"amount":"2.5"}`)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, app, http.MethodPost, "/tournaments/1/register", "dave", "")
	require.Equal(t, http.StatusOK, status, body)

	status, body = call(t, app, http.MethodGet, "/wallets/me", "dave", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1.5", body["balance"])

	status, body = call(t, app, http.MethodGet, "/tournaments/1", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "registering", body["state"])
	assert.Equal(t, []any{"dave"}, body["participants"])

	status, body = call(t, app, http.MethodPost, "/tournaments/1/lock", "dave", "")
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = call(t, app, http.MethodPost, "/tournaments/1/cancel", "dave", "")
	assert.Equal(t, http.StatusForbidden, status, body)

	status, body = call(t, app, http.MethodPost, "/tournaments/1/cancel", "carol", "")
	require.Equal(t, http.StatusOK, status, body)

	status, body = call(t, app, http.MethodGet, "/wallets/dave", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2.5", body["balance"])

	status, body = call(t, app, http.MethodGet, "/events?name=NewTournamentHasStarted", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["events"], 1)

	status, body = call(t, app, http.MethodGet, "/tournaments/1/events", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["events"], 3)
}

func TestWithdrawUsesCallerBalance(t *testing.T) {
	app := newApp(t)

	status, _ := call(t, app, http.MethodPost, "/wallets/erin/deposit", "owner", `{"amount":1}`)
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, app, http.MethodPost, "/wallets/me/withdraw", "erin", `{"amount":"2"}`)
	assert.Equal(t, http.StatusPaymentRequired, status, body)

	status, body = call(t, app, http.MethodPost, "/wallets/me/withdraw", "erin", `{"amount":"0.4"}`)
	require.Equal(t, http.StatusOK, status, body)

	status, body = call(t, app, http.MethodGet, "/wallets/erin", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0.6", body["balance"])

	status, _ = call(t, app, http.MethodPost, "/wallets/me/withdraw", "erin", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPauseBlocksCreation(t *testing.T) {
	app := newApp(t)

	status, _ := call(t, app, http.MethodPost, "/factory/pause", "mallory", "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodPost, "/factory/pause", "owner", "")
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, app, http.MethodPost, "/tournaments", "owner",
		`{"deadline":`+jsonInt(start.Add(time.Hour).Unix())+`,"max_participants":2}`)
	assert.Equal(t, http.StatusConflict, status, body)

	status, body = call(t, app, http.MethodGet, "/factory", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["paused"])
}

func TestUnknownTournament(t *testing.T) {
	app := newApp(t)

	status, _ := call(t, app, http.MethodGet, "/tournaments/9", "", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, http.MethodGet, "/tournaments/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
