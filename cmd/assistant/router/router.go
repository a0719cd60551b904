// Package router configures HTTP routes for the assistant's JSON API.
//
// Routes configured:
//   - POST /v1/chat/submit             - Submit a prompt, returns a request id
//   - GET  /v1/chat/status/{requestId} - Poll task progress
//   - GET  /v1/chat/result/{requestId} - Retrieve the finished result
//   - POST /v1/chat/cancel/{requestId} - Cancel a running task
//   - POST /v1/data/fetch              - Cache-aware data fetch
//   - POST /v1/charts/generate         - Stateless chart generation
//   - GET  /healthz                    - Health check endpoint (returns 200 OK)
//   - GET  /metrics                    - Prometheus metrics endpoint
//
// Task lookup errors map to distinct status codes: 404 for unknown ids,
// 409 for results requested before completion, 410 for canceled tasks, and
// 504 for tasks that exceeded their processing deadline.
package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pivotlabs/chatlens/pkg/charts"
	"github.com/pivotlabs/chatlens/pkg/chat"
	"github.com/pivotlabs/chatlens/pkg/dataquery"
	"github.com/pivotlabs/chatlens/pkg/dataset"
	"github.com/pivotlabs/chatlens/pkg/httpx"
)

// SetupRoutes configures HTTP endpoints for the assistant.
func SetupRoutes(manager *chat.Manager, fetcher *dataquery.Fetcher, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", httpx.HealthHandler())
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/chat/submit", handleSubmit(manager, logger))
	mux.HandleFunc("GET /v1/chat/status/{requestId}", handleStatus(manager, logger))
	mux.HandleFunc("GET /v1/chat/result/{requestId}", handleResult(manager, logger))
	mux.HandleFunc("POST /v1/chat/cancel/{requestId}", handleCancel(manager, logger))

	mux.HandleFunc("POST /v1/data/fetch", handleDataFetch(fetcher, logger))
	mux.HandleFunc("POST /v1/charts/generate", handleChartGenerate(logger))

	return mux
}

type submitRequest struct {
	Prompt string `json:"prompt"`
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

type submitResponse struct {
	RequestID string `json:"requestId"`
}

func handleSubmit(manager *chat.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		id, err := manager.Submit(req.Prompt, req.ChatID, req.UserID)
		if err != nil {
			writeTaskError(w, logger, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusAccepted, submitResponse{RequestID: id}); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

type statusResponse struct {
	Status  chat.Status `json:"status"`
	Message string      `json:"message"`
}

func handleStatus(manager *chat.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("requestId")

		status, message, err := manager.Poll(id)
		if err != nil {
			writeTaskError(w, logger, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, statusResponse{Status: status, Message: message}); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handleResult(manager *chat.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("requestId")

		result, err := manager.Result(id)
		if err != nil {
			writeTaskError(w, logger, err)
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, result); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handleCancel(manager *chat.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("requestId")

		if err := manager.Cancel(id); err != nil {
			writeTaskError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

func handleDataFetch(fetcher *dataquery.Fetcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dataquery.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Source == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "source is required")
			return
		}

		data, err := fetcher.Fetch(r.Context(), req)
		if err != nil {
			logger.Error("data fetch failed", "source", req.Source, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, data); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

type chartRequest struct {
	Type   charts.Kind     `json:"type"`
	Data   dataset.Dataset `json:"data"`
	Config charts.Config   `json:"config"`
}

type chartResponse struct {
	Spec charts.Spec `json:"spec"`
}

func handleChartGenerate(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		spec := charts.Generate(req.Type, req.Data, req.Config)

		if err := httpx.WriteJSON(w, http.StatusOK, chartResponse{Spec: spec}); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func writeTaskError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, chat.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, chat.ErrNotReady):
		httpx.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, chat.ErrCanceled):
		httpx.WriteError(w, http.StatusGone, err)
	case errors.Is(err, chat.ErrTimeout):
		httpx.WriteError(w, http.StatusGatewayTimeout, err)
	default:
		logger.Error("unexpected task error", "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
