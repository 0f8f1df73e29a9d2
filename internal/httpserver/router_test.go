package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nestling/internal/history"
	"nestling/internal/models"
	"nestling/internal/store"
)

func newTestServer(t *testing.T) (http.Handler, *history.ViewModel) {
	t.Helper()
	now := time.Now()
	ml := 120.0
	mem := store.NewMemory(
		models.Event{ID: "f1", SubjectID: "baby", Type: models.EventFeed, StartTime: now.Add(-time.Hour), Amount: &ml, Unit: "ml"},
		models.Event{ID: "d1", SubjectID: "baby", Type: models.EventDiaper, Subtype: "wet", StartTime: now.Add(-2 * time.Hour)},
	)
	vm := history.New(mem, "baby", history.Options{Location: time.UTC, UndoWindow: time.Minute})
	t.Cleanup(vm.Close)
	require.NoError(t, vm.SelectRange(context.Background(), models.Range24h))
	return NewRouter(vm, Options{MetricsEnabled: true, Logger: zap.NewNop()}), vm
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSnapshotEndpoint(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/history/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap history.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.RangeSummary.TotalFeeds)
	assert.Equal(t, 1, snap.RangeSummary.TotalDiapers)
}

func TestFilterEndpoint(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPut, "/history/filter", `{"filter":"diapers"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap history.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Days, 1)
	require.Len(t, snap.Days[0].Events, 1)
	assert.Equal(t, "d1", snap.Days[0].Events[0].ID)

	rec = do(t, h, http.MethodPut, "/history/filter", `{"filter":"naps"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRangeEndpointRejectsUnknownRange(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/history/range", `{"range":"90d"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/history/range", `{"range":"7d"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteAndUndoEndpoints(t *testing.T) {
	h, vm := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/undo", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodDelete, "/events/f1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, vm.Snapshot().CanUndo)

	rec = do(t, h, http.MethodDelete, "/events/f1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/undo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var restored models.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restored))
	assert.Equal(t, models.EventFeed, restored.Type)
	assert.Equal(t, 1, vm.Snapshot().RangeSummary.TotalFeeds)
}

func TestDuplicateEndpoint(t *testing.T) {
	h, vm := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/events/d1/duplicate", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, vm.Snapshot().RangeSummary.TotalDiapers)
}

func TestMonthEndpoints(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/history/months/1999-01", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodGet, "/history/months/not-a-month", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundIsJSON(t *testing.T) {
	h, _ := newTestServer(t)
	for _, path := range []string{"/history/months/1999-01", "/history/months/1999-01/counts"} {
		rec := do(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "month not cached", body.Error)
		assert.NotEmpty(t, body.RequestID)
	}

	rec := do(t, h, http.MethodPost, "/events/missing/duplicate", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "event not loaded", body.Error)
}

func TestPreloadEndpoint(t *testing.T) {
	h, vm := newTestServer(t)
	require.False(t, vm.Snapshot().PreloadEnabled)

	rec := do(t, h, http.MethodPut, "/history/preload", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap history.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.PreloadEnabled)

	rec = do(t, h, http.MethodPut, "/history/preload", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, vm.Snapshot().PreloadEnabled)

	rec = do(t, h, http.MethodPut, "/history/preload", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, vm.Snapshot().PreloadEnabled)
}

func TestSnapshotBeforeFirstLoad(t *testing.T) {
	vm := history.New(store.NewMemory(), "baby", history.Options{Location: time.UTC})
	t.Cleanup(vm.Close)
	h := NewRouter(vm, Options{})

	rec := do(t, h, http.MethodGet, "/history/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"days":[]`)
	assert.NotContains(t, rec.Body.String(), `"days":null`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewError(models.FetchFailed, "load", nil), http.StatusBadGateway},
		{models.NewError(models.DeleteFailed, "delete", nil), http.StatusBadGateway},
		{models.NewError(models.RestoreFailed, "undo", nil), http.StatusBadGateway},
		{models.NewError(models.UndoExpired, "undo", nil), http.StatusGone},
		{models.NewError(models.NothingToUndo, "undo", nil), http.StatusConflict},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestMetricsAndHealth(t *testing.T) {
	h, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nestling_http_requests_total")
}
