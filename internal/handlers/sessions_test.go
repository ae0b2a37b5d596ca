package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyweave/gamemaster/pkg/engine"
	"github.com/storyweave/gamemaster/pkg/llm"
	"github.com/storyweave/gamemaster/pkg/storage"
	"github.com/storyweave/gamemaster/pkg/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func demoTemplate() *story.Template {
	return &story.Template{
		Name:       "demo",
		Background: "A quiet mountain village.",
		Profile:    "Ren, a young herbalist.",
		StartTime:  time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC),
	}
}

func newTestHandler(t *testing.T, responses ...string) (*SessionHandler, *llm.MockGenerator, *storage.MockStore) {
	t.Helper()
	gen := llm.NewMockGenerator(responses...)
	store := storage.NewMockStore()
	store.AddStory(demoTemplate())
	return NewSessionHandler(gen, store, "", testLogger()), gen, store
}

func createSession(t *testing.T, h *SessionHandler, body string) SessionResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func postCommand(h *SessionHandler, id uuid.UUID, input string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(CommandRequest{Input: input})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id.String()+"/commands", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateSession(t *testing.T) {
	t.Run("named story", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		resp := createSession(t, h, `{"story":"demo"}`)

		assert.NotEqual(t, uuid.Nil, resp.ID)
		assert.Equal(t, "demo", resp.Status.Story)
		assert.Equal(t, engine.PhaseNotStarted, resp.Status.Phase)
		assert.Equal(t, engine.StartingEnergy, resp.Status.Energy)
	})

	t.Run("empty body uses first story", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "demo", resp.Status.Story)
	})

	t.Run("unknown story", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString(`{"story":"missing"}`))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestCommands(t *testing.T) {
	t.Run("start command", func(t *testing.T) {
		h, _, _ := newTestHandler(t, "The sun rose over the village.")
		sess := createSession(t, h, `{"story":"demo"}`)

		w := postCommand(h, sess.ID, "/start")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp CommandResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "The sun rose over the village.", resp.Output)
		assert.Equal(t, engine.PhaseRunning, resp.Status.Phase)
	})

	t.Run("chat before start is guided", func(t *testing.T) {
		h, gen, _ := newTestHandler(t)
		sess := createSession(t, h, `{"story":"demo"}`)

		w := postCommand(h, sess.ID, "hello")
		require.Equal(t, http.StatusOK, w.Code)

		var resp CommandResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Output, "not started")
		assert.Zero(t, gen.CallCount())
	})

	t.Run("unknown session", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		w := postCommand(h, uuid.New(), "/start")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty input", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		sess := createSession(t, h, `{"story":"demo"}`)
		w := postCommand(h, sess.ID, "   ")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		sess := createSession(t, h, `{"story":"demo"}`)

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sess.ID.String()+"/commands", bytes.NewBufferString("{broken"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("save conflict maps to 409", func(t *testing.T) {
		h, _, _ := newTestHandler(t, "The sun rose over the village.")
		sess := createSession(t, h, `{"story":"demo"}`)

		require.Equal(t, http.StatusOK, postCommand(h, sess.ID, "/start").Code)
		require.Equal(t, http.StatusOK, postCommand(h, sess.ID, "/save outpost").Code)

		w := postCommand(h, sess.ID, "/save outpost")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("generation failure maps to 502", func(t *testing.T) {
		h, gen, _ := newTestHandler(t)
		sess := createSession(t, h, `{"story":"demo"}`)
		gen.Err = &llm.GenerationError{Attempts: 3, Err: errors.New("backend down")}

		w := postCommand(h, sess.ID, "/start")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestSessionStatusAndDelete(t *testing.T) {
	h, _, _ := newTestHandler(t)
	sess := createSession(t, h, `{"story":"demo"}`)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sess.ID.String(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, sess.ID, resp.ID)
	assert.Equal(t, engine.PhaseNotStarted, resp.Status.Phase)

	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+sess.ID.String(), nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sess.ID.String(), nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidSessionID(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/not-a-uuid", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
