package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyweave/gamemaster/pkg/storage"
)

func TestStoryHandler(t *testing.T) {
	t.Run("lists stories", func(t *testing.T) {
		store := storage.NewMockStore()
		store.AddStory(demoTemplate())
		h := NewStoryHandler(store, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/v1/stories", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp StoriesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"demo"}, resp.Stories)
	})

	t.Run("empty store", func(t *testing.T) {
		h := NewStoryHandler(storage.NewMockStore(), testLogger())

		req := httptest.NewRequest(http.MethodGet, "/v1/stories", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp StoriesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Stories)
	})

	t.Run("method not allowed", func(t *testing.T) {
		h := NewStoryHandler(storage.NewMockStore(), testLogger())
		req := httptest.NewRequest(http.MethodPost, "/v1/stories", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
