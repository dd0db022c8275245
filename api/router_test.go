package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qianlnk/werewolf-session/models"
	"github.com/qianlnk/werewolf-session/services"
	"github.com/qianlnk/werewolf-session/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	st := store.NewMemoryStore()
	sockets := services.NewWebSocketManager(time.Second, 0)
	games := services.NewGameManager(st, services.WithNotifier(sockets), services.WithMessenger(sockets))
	return NewRouter(games, sockets)
}

func do(t *testing.T, r http.Handler, method, path, participant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if participant != "" {
		req.Header.Set(headerParticipantID, participant)
		req.Header.Set(headerParticipantName, "name-"+participant)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestMissingIdentity(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/sessions", "", gin.H{"name": "village"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/sessions", "nora", gin.H{"name": "village", "capacity": 6})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[services.SessionView](t, w)
	assert.Equal(t, "nora", created.NarratorID)
	assert.Equal(t, 6, created.Capacity)
	require.NotEmpty(t, created.JoinCode)
	base := "/api/sessions/" + created.ID

	w = do(t, r, http.MethodPost, base+"/start", "nora", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_players", decode[errorBody](t, w).Code)

	for i := 1; i <= 5; i++ {
		w = do(t, r, http.MethodPost, "/api/sessions/join", fmt.Sprintf("p%d", i), gin.H{"code": created.JoinCode})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodPost, base+"/join", "p6", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "full", decode[errorBody](t, w).Code)

	w = do(t, r, http.MethodPost, base+"/start", "p1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, base+"/start", "nora", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	started := decode[services.SessionView](t, w)
	assert.Equal(t, models.StatusInProgress, started.Status)
	assert.Equal(t, models.PhaseNightSleep, started.Phase)

	w = do(t, r, http.MethodPost, base+"/phase", "nora", gin.H{"phase": "waiting"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_phase", decode[errorBody](t, w).Code)

	w = do(t, r, http.MethodPost, base+"/advance", "nora", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PhaseNightWolves, decode[services.SessionView](t, w).Phase)

	w = do(t, r, http.MethodPost, base+"/night-kill", "nora", gin.H{"target": "nora"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_target", decode[errorBody](t, w).Code)

	w = do(t, r, http.MethodPost, base+"/night-kill", "nora", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, base+"/factions", "p1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, r, http.MethodGet, base+"/factions", "nora", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.FactionCounts{Werewolves: 1, Villagers: 4}, decode[services.FactionCounts](t, w))

	w = do(t, r, http.MethodPost, base+"/messages", "p1", gin.H{"text": "who is it?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decode[models.Message](t, w)
	assert.EqualValues(t, 1, msg.Order)
	assert.Equal(t, models.ChannelGeneral, msg.Channel)

	w = do(t, r, http.MethodGet, base, "p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[services.SessionView](t, w)
	assert.Nil(t, view.Factions)

	w = do(t, r, http.MethodPost, base+"/end", "nora", gin.H{"winner": "villagers"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ended := decode[services.SessionView](t, w)
	assert.Equal(t, models.StatusFinished, ended.Status)
	assert.Equal(t, models.FactionVillagers, ended.Winner)

	w = do(t, r, http.MethodPost, base+"/leave", "nora", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"deleted": true}, decode[map[string]bool](t, w))

	w = do(t, r, http.MethodGet, base, "nora", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, w).Code)
}

func TestWitchActionValidation(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/sessions", "nora", gin.H{"name": "village"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[services.SessionView](t, w).ID

	w = do(t, r, http.MethodPost, "/api/sessions/"+id+"/witch", "nora", gin.H{"action": "brew", "target": "p1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/sessions/"+id+"/witch", "nora", gin.H{"action": "save", "target": "p1"})
	assert.Equal(t, http.StatusConflict, w.Code, "session has not started")
}

func TestWebSocketEndpointRejectsStrangers(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/sessions", "nora", gin.H{"name": "village"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[services.SessionView](t, w).ID

	w = do(t, r, http.MethodGet, "/ws", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodGet, "/ws?session="+id+"&participant=mallory", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, r, http.MethodGet, "/ws?session=missing&participant=nora", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodOptions, "/api/sessions", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestEndSessionBody(t *testing.T) {
	newSession := func(t *testing.T, r http.Handler) string {
		w := do(t, r, http.MethodPost, "/api/sessions", "nora", gin.H{"name": "village"})
		require.Equal(t, http.StatusCreated, w.Code)
		return decode[services.SessionView](t, w).ID
	}

	t.Run("chunked body is read", func(t *testing.T) {
		r := newTestRouter(t)
		id := newSession(t, r)

		// 长度未知的请求体，ContentLength 为 -1
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/end",
			io.MultiReader(strings.NewReader(`{"winner":"lovers"}`)))
		require.EqualValues(t, -1, req.ContentLength)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(headerParticipantID, "nora")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, models.FactionLovers, decode[services.SessionView](t, w).Winner)
	})

	t.Run("empty body ends without a winner", func(t *testing.T) {
		r := newTestRouter(t)
		id := newSession(t, r)

		w := do(t, r, http.MethodPost, "/api/sessions/"+id+"/end", "nora", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		ended := decode[services.SessionView](t, w)
		assert.Equal(t, models.NoFaction, ended.Winner)
		assert.Equal(t, models.PhaseEnded, ended.Phase)
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		r := newTestRouter(t)
		id := newSession(t, r)

		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/end",
			io.MultiReader(strings.NewReader(`{"winner":`)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(headerParticipantID, "nora")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
