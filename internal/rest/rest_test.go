package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkchan/bigtwo/internal/app"
	"github.com/mkchan/bigtwo/internal/bot"
	"github.com/mkchan/bigtwo/internal/room"
	"github.com/mkchan/bigtwo/internal/session"
)

type testAPI struct {
	srv *httptest.Server
	app *app.App
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zerolog.Nop()
	a, err := app.New(app.Config{}, quartz.NewReal(), rand.New(rand.NewSource(1)), logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	api := New(a.Sessions, a.Rooms, a, a.Bots, a.Stats, a.IDs, nil, logger)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, app: a}
}

// do performs a request, optionally authenticated, and decodes the
// JSON response into out when out is non-nil.
func (ta *testAPI) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ta.srv.URL+path, reqBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ta.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ta *testAPI) newSession(t *testing.T) session.Credentials {
	t.Helper()
	var creds session.Credentials
	status := ta.do(t, http.MethodPost, "/session", "", nil, &creds)
	require.Equal(t, http.StatusCreated, status)
	return creds
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ta := newTestAPI(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/health", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateAndValidateSession(t *testing.T) {
	t.Parallel()
	ta := newTestAPI(t)

	creds := ta.newSession(t)
	assert.NotEmpty(t, creds.Token)
	assert.NotEmpty(t, creds.Username)
	assert.Equal(t, creds.SessionID, creds.PlayerID)

	var body map[string]any
	assert.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/session/validate", creds.Token, nil, &body))
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, creds.Username, body["username"])

	assert.Equal(t, http.StatusUnauthorized, ta.do(t, http.MethodGet, "/session/validate", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, ta.do(t, http.MethodGet, "/session/validate", "garbage", nil, nil))
}

func TestLegacySessionHeader(t *testing.T) {
	t.Parallel()
	ta := newTestAPI(t)
	creds := ta.newSession(t)

	req, err := http.NewRequest(http.MethodGet, ta.srv.URL+"/session/validate", nil)
	require.NoError(t, err)
	req.Header.Set("X-Session-ID", creds.Token)
	resp, err := ta.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomLifecycle(t *testing.T) {
	t.Parallel()
	ta := newTestAPI(t)
	host := ta.newSession(t)

	assert.Equal(t, http.StatusUnauthorized, ta.do(t, http.MethodPost, "/room", "", nil, nil))

	var created roomResponse
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/room", host.Token, nil, &created))
	assert.Equal(t, host.PlayerID, created.Host)
	assert.Equal(t, []string{host.PlayerID}, created.Players)
	assert.Equal(t, host.Username, created.Names[host.PlayerID])

	var list []roomSummary
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/rooms", "", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, 1, list[0].PlayerCount)
	assert.Equal(t, room.StatusWaiting, list[0].Status)

	var fetched roomResponse
	assert.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/room/"+created.ID, "", nil, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	assert.Equal(t, http.StatusNotFound, ta.do(t, http.MethodGet, "/room/does-not-exist", "", nil, nil))

	guest := ta.newSession(t)
	assert.Equal(t, http.StatusForbidden, ta.do(t, http.MethodDelete, "/room/"+created.ID, guest.Token, nil, nil))
	assert.Equal(t, http.StatusNoContent, ta.do(t, http.MethodDelete, "/room/"+created.ID, host.Token, nil, nil))
	assert.Equal(t, http.StatusNotFound, ta.do(t, http.MethodGet, "/room/"+created.ID, "", nil, nil))
}

func TestJoinRules(t *testing.T) {
	t.Parallel()
	ta := newTestAPI(t)
	host := ta.newSession(t)

	var created roomResponse
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/room", host.Token, nil, &created))

	assert.Equal(t, http.StatusConflict, ta.do(t, http.MethodPost, "/room/"+created.ID+"/join", host.Token, nil, nil),
		"host already holds a seat")

	for i := 0; i < 3; i++ {
		guest := ta.newSession(t)
		var joined map[string]roomResponse
		assert.Equal(t, http.StatusOK, ta.do(t, http.MethodPost, "/room/"+created.ID+"/join", guest.Token, nil, &joined))
		assert.Len(t, joined["room"].Players, i+2)
	}

	fifth := ta.newSession(t)
	assert.Equal(t, http.StatusConflict, ta.do(t, http.MethodPost, "/room/"+created.ID+"/join", fifth.Token, nil, nil))
	assert.Equal(t, http.StatusNotFound, ta.do(t, http.MethodPost, "/room/missing/join", fifth.Token, nil, nil))
}

func TestBotEndpoints(t *testing.T) {
	t.Parallel()
	ta := newTestAPI(t)
	host := ta.newSession(t)
	guest := ta.newSession(t)

	var created roomResponse
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/room", host.Token, nil, &created))

	assert.Equal(t, http.StatusForbidden,
		ta.do(t, http.MethodPost, "/room/"+created.ID+"/bot/add", guest.Token, nil, nil))

	var bots []bot.Bot
	for i := 0; i < bot.MaxBotsPerRoom; i++ {
		var b bot.Bot
		status := ta.do(t, http.MethodPost, "/room/"+created.ID+"/bot/add",
			host.Token, map[string]string{"difficulty": "easy"}, &b)
		require.Equal(t, http.StatusCreated, status)
		assert.NotEmpty(t, b.ID)
		bots = append(bots, b)
	}

	assert.Equal(t, http.StatusConflict,
		ta.do(t, http.MethodPost, "/room/"+created.ID+"/bot/add", host.Token, nil, nil))

	assert.Equal(t, http.StatusNoContent,
		ta.do(t, http.MethodDelete, "/room/"+created.ID+"/bot/"+bots[0].ID, host.Token, nil, nil))
	assert.Equal(t, http.StatusNotFound,
		ta.do(t, http.MethodDelete, "/room/"+created.ID+"/bot/"+bots[0].ID, host.Token, nil, nil))
}

func TestRoomStatsEmpty(t *testing.T) {
	t.Parallel()
	ta := newTestAPI(t)
	host := ta.newSession(t)

	var created roomResponse
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/room", host.Token, nil, &created))

	var body map[string]any
	assert.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/room/"+created.ID+"/stats", "", nil, &body))
	assert.EqualValues(t, 0, body["games_played"])

	assert.Equal(t, http.StatusNotFound, ta.do(t, http.MethodGet, "/room/missing/stats", "", nil, nil))
}
