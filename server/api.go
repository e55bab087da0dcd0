package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crisisdesk/alertdeck/server/backend"
	"github.com/crisisdesk/alertdeck/server/backend/analyzer"
	"github.com/crisisdesk/alertdeck/server/view"
)

// maxRequestBody caps JSON request bodies
const maxRequestBody = 64 << 10

type analyzeRequest struct {
	Text string `json:"text"`
}

type configRequest struct {
	BackendURL string `json:"backendUrl"`
}

type configResponse struct {
	BackendURL string `json:"backendUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// routes builds the dashboard API. Every route is served under CORS.
func (a *App) routes() http.Handler {
	router := mux.NewRouter()
	router.Use(a.logRequests)

	router.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/alerts", a.handleGetAlerts).Methods(http.MethodGet)
	apiRouter.HandleFunc("/alerts", a.handleClearAlerts).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/alerts/by-urgency", a.handleAlertsByUrgency).Methods(http.MethodGet)
	apiRouter.HandleFunc("/alerts/{id}", a.handleGetAlert).Methods(http.MethodGet)
	apiRouter.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)
	apiRouter.HandleFunc("/allocations", a.handleAllocations).Methods(http.MethodGet)
	apiRouter.HandleFunc("/analyze", a.handleAnalyze).Methods(http.MethodPost)
	apiRouter.HandleFunc("/resources", a.handleResources).Methods(http.MethodGet)
	apiRouter.HandleFunc("/status", a.handleStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/config", a.handleGetConfig).Methods(http.MethodGet)
	apiRouter.HandleFunc("/config", a.handlePutConfig).Methods(http.MethodPut)
	apiRouter.Handle("/live", a.hub).Methods(http.MethodGet)

	return a.cors.Handler(router)
}

// logRequests logs each request at debug level. It does not wrap the
// ResponseWriter so the live feed can still hijack the connection.
func (a *App) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.logger.Debugw("API request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": a.status.Connected(),
	})
}

// handleGetAlerts returns alerts in store order, optionally filtered with ?tier=
func (a *App) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := a.store.Read()

	if name := r.URL.Query().Get("tier"); name != "" {
		tier, ok := backend.ParseTier(name)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown tier "+name)
			return
		}
		alerts = view.FilterTier(alerts, tier)
	}

	writeJSON(w, http.StatusOK, alerts)
}

func (a *App) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	alert, ok := a.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

func (a *App) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	a.store.Clear()
	a.logger.Infow("Alerts cleared", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleAlertsByUrgency(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, view.ByUrgency(a.store.Read()))
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.Stats())
}

func (a *App) handleAllocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, view.Allocations(a.store.Read()))
}

func (a *App) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := a.Submit(r.Context(), req.Text)
	if err != nil {
		var requestErr *analyzer.RequestError
		switch {
		case errors.Is(err, ErrEmptyText):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrStopping):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, &requestErr):
			writeError(w, http.StatusBadGateway, requestErr.Error())
		default:
			// The client went away; nobody reads the response
			writeError(w, http.StatusServiceUnavailable, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

func (a *App) handleResources(w http.ResponseWriter, r *http.Request) {
	resources, err := a.client.Resources(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resources)
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.status.Status())
}

func (a *App) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{BackendURL: a.endpoint.URL()})
}

// handlePutConfig changes the backend URL. An invalid URL is rejected and the
// current one kept.
func (a *App) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := a.endpoint.Set(req.BackendURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	config := a.getConfiguration().Clone()
	config.BackendURL = a.endpoint.URL()
	a.setConfiguration(config)

	writeJSON(w, http.StatusOK, configResponse{BackendURL: config.BackendURL})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
