package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisisdesk/alertdeck/server/backend"
	"github.com/crisisdesk/alertdeck/server/hub"
	"github.com/crisisdesk/alertdeck/server/view"
)

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func seedAlerts(app *App) {
	app.store.Ingest(backend.Alert{ID: "a", Message: "Smoke in the warehouse", UrgencyScore: 35,
		MatchedResources: []backend.Resource{{Name: "Engine 4", Type: "fire"}}})
	app.store.Ingest(backend.Alert{ID: "b", Message: "Lost cat", UrgencyScore: 10})
	app.store.Ingest(backend.Alert{ID: "c", Message: "Road blocked", UrgencyScore: 20,
		MatchedResources: []backend.Resource{{Name: "Tow 2"}, {Name: "Patrol 9"}}})
}

func TestAPI_Alerts(t *testing.T) {
	app := newTestApp(t, testConfiguration(backend.DefaultURL))
	handler := app.routes()

	t.Run("empty store returns an empty list", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/alerts", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	seedAlerts(app)

	t.Run("store order is newest first", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/alerts", "")
		require.Equal(t, http.StatusOK, rec.Code)

		alerts := decodeBody[[]backend.Alert](t, rec)
		require.Len(t, alerts, 3)
		assert.Equal(t, []string{"c", "b", "a"}, []string{alerts[0].ID, alerts[1].ID, alerts[2].ID})
	})

	t.Run("filters by tier", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/alerts?tier=medium", "")
		require.Equal(t, http.StatusOK, rec.Code)

		alerts := decodeBody[[]backend.Alert](t, rec)
		require.Len(t, alerts, 1)
		assert.Equal(t, "c", alerts[0].ID)
	})

	t.Run("unknown tier is rejected", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/alerts?tier=severe", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("by urgency", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/alerts/by-urgency", "")
		require.Equal(t, http.StatusOK, rec.Code)

		alerts := decodeBody[[]backend.Alert](t, rec)
		require.Len(t, alerts, 3)
		assert.Equal(t, []string{"a", "c", "b"}, []string{alerts[0].ID, alerts[1].ID, alerts[2].ID})
	})

	t.Run("single alert", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/alerts/b", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Lost cat", decodeBody[backend.Alert](t, rec).Message)

		rec = doRequest(t, handler, http.MethodGet, "/api/alerts/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, view.Stats{Critical: 1, Medium: 1, Low: 1, Total: 3}, decodeBody[view.Stats](t, rec))
	})

	t.Run("allocations", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/api/allocations", "")
		require.Equal(t, http.StatusOK, rec.Code)

		allocations := decodeBody[[]view.Allocation](t, rec)
		require.Len(t, allocations, 3)
		assert.Equal(t, "Tow 2", allocations[0].Resource.Name)
		assert.Equal(t, "Patrol 9", allocations[1].Resource.Name)
		assert.Equal(t, "Engine 4", allocations[2].Resource.Name)
		assert.Equal(t, backend.TierCritical, allocations[2].Tier)
	})

	t.Run("clear", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodDelete, "/api/alerts", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = doRequest(t, handler, http.MethodGet, "/api/stats", "")
		assert.Equal(t, view.Stats{}, decodeBody[view.Stats](t, rec))
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodPost, "/api/stats", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestAPI_Analyze(t *testing.T) {
	t.Run("stores and returns the result", func(t *testing.T) {
		fake := newFakeBackend(t, http.StatusOK, `{"urgency_score": 33, "needs": ["rescue"]}`)
		app := newTestApp(t, testConfiguration(fake.server.URL))

		rec := doRequest(t, app.routes(), http.MethodPost, "/api/analyze", `{"text": "Two hikers stranded"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		alert := decodeBody[backend.Alert](t, rec)
		assert.NotEmpty(t, alert.ID)
		assert.Equal(t, "Two hikers stranded", alert.Message)
		assert.Equal(t, 1, app.store.Len())
	})

	t.Run("empty text is a bad request", func(t *testing.T) {
		fake := newFakeBackend(t, http.StatusOK, `{"urgency_score": 33}`)
		app := newTestApp(t, testConfiguration(fake.server.URL))

		rec := doRequest(t, app.routes(), http.MethodPost, "/api/analyze", `{"text": ""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doRequest(t, app.routes(), http.MethodPost, "/api/analyze", `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, int32(0), fake.analyzed.Load())
	})

	t.Run("backend failure is a bad gateway with the backend message", func(t *testing.T) {
		fake := newFakeBackend(t, http.StatusServiceUnavailable, `{"detail": "Model is still loading"}`)
		app := newTestApp(t, testConfiguration(fake.server.URL))

		rec := doRequest(t, app.routes(), http.MethodPost, "/api/analyze", `{"text": "help"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, decodeBody[errorResponse](t, rec).Error, "Model is still loading")
		assert.Equal(t, 0, app.store.Len())
	})
}

func TestAPI_Resources(t *testing.T) {
	t.Run("proxies the registry", func(t *testing.T) {
		fake := newFakeBackend(t, http.StatusOK, `{}`)
		app := newTestApp(t, testConfiguration(fake.server.URL))

		rec := doRequest(t, app.routes(), http.MethodGet, "/api/resources", "")
		require.Equal(t, http.StatusOK, rec.Code)

		resources := decodeBody[[]backend.Resource](t, rec)
		require.Len(t, resources, 1)
		assert.Equal(t, backend.Resource{Name: "Ambulance 7", Type: "medical", ETA: "12", Status: "available"}, resources[0])
	})

	t.Run("unreachable backend", func(t *testing.T) {
		app := newTestApp(t, testConfiguration("http://127.0.0.1:1"))

		rec := doRequest(t, app.routes(), http.MethodGet, "/api/resources", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, decodeBody[errorResponse](t, rec).Error, "backend unreachable")
	})
}

func TestAPI_Config(t *testing.T) {
	app := newTestApp(t, testConfiguration("http://analysis.local:8000"))
	handler := app.routes()

	rec := doRequest(t, handler, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://analysis.local:8000", decodeBody[configResponse](t, rec).BackendURL)

	t.Run("invalid url keeps the current one", func(t *testing.T) {
		for _, body := range []string{`{"backendUrl": ""}`, `{"backendUrl": "ftp://files.local"}`, `{"backendUrl": "not a url"}`} {
			rec := doRequest(t, handler, http.MethodPut, "/api/config", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		assert.Equal(t, "http://analysis.local:8000", app.endpoint.URL())
	})

	t.Run("valid url is applied", func(t *testing.T) {
		changes := make(chan string, 1)
		app.endpoint.OnChange(func(baseURL string) { changes <- baseURL })

		rec := doRequest(t, handler, http.MethodPut, "/api/config", `{"backendUrl": "https://analysis.example.org/"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://analysis.example.org", decodeBody[configResponse](t, rec).BackendURL)

		assert.Equal(t, "https://analysis.example.org", <-changes)
		assert.Equal(t, "https://analysis.example.org", app.getConfiguration().BackendURL)
		assert.Equal(t, "https://analysis.example.org/analyze", app.endpoint.AnalyzeURL())
	})
}

func TestAPI_StatusAndHealth(t *testing.T) {
	app := newTestApp(t, testConfiguration(backend.DefaultURL))
	handler := app.routes()

	rec := doRequest(t, handler, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[backend.Status](t, rec)
	assert.Equal(t, backend.StateIdle, status.State)
	assert.False(t, status.Connected)

	rec = doRequest(t, handler, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "connected": false}`, rec.Body.String())

	rec = doRequest(t, handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alertdeck_stream_connected")
}

func TestAPI_CORS(t *testing.T) {
	config := testConfiguration(backend.DefaultURL)
	config.AllowedOrigins = []string{"http://dashboard.local"}
	app := newTestApp(t, config)
	handler := app.routes()

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func readLiveMessage(t *testing.T, conn *websocket.Conn) hub.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg hub.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestAPI_LiveFeed(t *testing.T) {
	config := testConfiguration(backend.DefaultURL)
	config.AllowedOrigins = []string{"http://dashboard.local"}
	app := newTestApp(t, config)
	app.store.Ingest(backend.Alert{ID: "first", Message: "Gas leak", UrgencyScore: 31})

	server := httptest.NewServer(app.routes())
	defer server.Close()

	liveURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/live"

	t.Run("rejects a disallowed origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.local"}}
		_, resp, err := websocket.DefaultDialer.Dial(liveURL, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("snapshot then changes", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://dashboard.local"}}
		conn, _, err := websocket.DefaultDialer.Dial(liveURL, header)
		require.NoError(t, err)
		defer conn.Close()

		msg := readLiveMessage(t, conn)
		require.Equal(t, hub.TypeSnapshot, msg.Type)
		data, err := json.Marshal(msg.Data)
		require.NoError(t, err)
		var snapshot hub.Snapshot
		require.NoError(t, json.Unmarshal(data, &snapshot))
		require.Len(t, snapshot.Alerts, 1)
		assert.Equal(t, "first", snapshot.Alerts[0].ID)
		assert.Equal(t, 1, snapshot.Stats.Critical)

		rec := doRequest(t, app.routes(), http.MethodDelete, "/api/alerts", "")
		require.Equal(t, http.StatusNoContent, rec.Code)

		msg = readLiveMessage(t, conn)
		assert.Equal(t, hub.TypeCleared, msg.Type)

		app.store.Ingest(backend.Alert{ID: "second", Message: "Power line down", UrgencyScore: 16})

		msg = readLiveMessage(t, conn)
		require.Equal(t, hub.TypeAlert, msg.Type)
		data, err = json.Marshal(msg.Data)
		require.NoError(t, err)
		var update hub.AlertUpdate
		require.NoError(t, json.Unmarshal(data, &update))
		assert.Equal(t, "second", update.Alert.ID)
		assert.Equal(t, 1, update.Stats.Medium)
	})
}
