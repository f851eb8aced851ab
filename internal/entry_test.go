package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notesight/internal/indexsync"
	"github.com/starford/notesight/internal/noteservice"
	"github.com/starford/notesight/internal/search"
	"github.com/starford/notesight/internal/testutil"
)

// rawErrorEngine fails the existence check with a message full of bytes that
// need escaping in JSON.
type rawErrorEngine struct {
	search.Engine
}

func (rawErrorEngine) IndexExists(context.Context) (bool, error) {
	return false, errors.New("status 500: \x00\a \"quoted\" <html>\n")
}

func readyResponse(t *testing.T, engine search.Engine, bootstrap bool) (*httptest.ResponseRecorder, healthStatus) {
	t.Helper()
	db := testutil.TestStore(t)
	syncer := indexsync.New(engine, db)
	if bootstrap {
		require.NoError(t, syncer.EnsureIndexReady(context.Background()))
	}
	svc := noteservice.NewService(db, syncer)

	w := httptest.NewRecorder()
	readyHandler(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var body healthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body must be valid JSON: %q", w.Body.String())
	return w, body
}

func TestReadyHandler_OK(t *testing.T) {
	w, body := readyResponse(t, testutil.TestEngine(t), true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, healthStatus{Status: "ok"}, body)
}

func TestReadyHandler_MissingIndex(t *testing.T) {
	w, body := readyResponse(t, testutil.TestEngine(t), false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", body.Status)
	assert.NotEmpty(t, body.Reason)
}

func TestReadyHandler_EscapesEngineError(t *testing.T) {
	w, body := readyResponse(t, rawErrorEngine{Engine: testutil.TestEngine(t)}, false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, body.Reason, "\x00\a \"quoted\" <html>\n")
}
