// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wearly/tryon-embed/internal/metrics"
	"github.com/wearly/tryon-embed/internal/provider"
	"github.com/wearly/tryon-embed/internal/transport/middleware"
)

type submitRequest struct {
	HumanImage string `json:"humanImage"`
	ClothImage string `json:"clothImage"`
}

type Deps struct {
	Jobs             JobSubmitter
	Status           JobStatusFetcher
	ProxyClient      *http.Client
	EmbedScript      []byte
	Logger           *slog.Logger
	SubmitRatePerMin int
	Version          string
	Commit           string
	BuildDate        string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	proxyClient := deps.ProxyClient
	if proxyClient == nil {
		proxyClient = &http.Client{Timeout: 30 * time.Second}
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- TRY-ON JOBS ----------------

	r.Route("/api/tryon", func(api chi.Router) {
		api.With(middleware.SubmitRateLimit(deps.SubmitRatePerMin, logger)).
			Post("/", func(w http.ResponseWriter, r *http.Request) {
				reqBody, err := decodeSubmitRequest(r)
				if err != nil {
					metrics.IncSubmission(metrics.OutcomeRejected)
					writeJSON(w, http.StatusBadRequest, map[string]string{
						"error": "invalid request body",
					})
					return
				}
				if reqBody.HumanImage == "" || reqBody.ClothImage == "" {
					metrics.IncSubmission(metrics.OutcomeRejected)
					writeJSON(w, http.StatusBadRequest, map[string]string{
						"error": "Both person and garment images are required",
					})
					return
				}

				start := time.Now()
				taskID, err := deps.Jobs.Submit(r.Context(), reqBody.HumanImage, reqBody.ClothImage)
				metrics.ObserveProviderRequestDuration(time.Since(start))
				if err != nil {
					var apiErr *provider.APIError
					if errors.As(err, &apiErr) {
						metrics.IncSubmission(metrics.OutcomeRejected)
						logger.Error("provider rejected submission",
							"code", apiErr.Code, "message", apiErr.Message)
						writeJSON(w, http.StatusInternalServerError, map[string]string{
							"error": fmt.Sprintf("API error: %d", apiErr.Code),
						})
						return
					}

					metrics.IncSubmission(metrics.OutcomeError)
					logger.Error("submission failed", "error", err)
					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"error": "Failed to submit try-on job",
					})
					return
				}

				metrics.IncSubmission(metrics.OutcomeAccepted)
				logger.Info("try-on job submitted", "task_id", taskID)
				writeJSON(w, http.StatusOK, map[string]string{"taskId": taskID})
			})

		api.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			taskID := strings.TrimSpace(r.URL.Query().Get("taskId"))
			if taskID == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": "taskId is required",
				})
				return
			}

			raw, err := deps.Status.Status(r.Context(), taskID)
			if err != nil {
				metrics.IncStatusCheck(metrics.OutcomeError)
				logger.Error("status check failed", "task_id", taskID, "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error": "Failed to check job status",
				})
				return
			}

			metrics.IncStatusCheck(metrics.OutcomeOK)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(raw)
		})
	})

	// ---------------- IMAGE PROXY ----------------

	r.Options("/api/proxy-image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/api/proxy-image", func(w http.ResponseWriter, r *http.Request) {
		imageURL := strings.TrimSpace(r.URL.Query().Get("url"))
		if imageURL == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "url is required",
			})
			return
		}

		proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, imageURL, nil)
		if err != nil {
			metrics.IncProxyRequest(metrics.OutcomeError)
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid image url",
			})
			return
		}

		resp, err := proxyClient.Do(proxyReq)
		if err != nil {
			metrics.IncProxyRequest(metrics.OutcomeError)
			logger.Error("image fetch failed", "url", imageURL, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error": "Failed to fetch image",
			})
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			metrics.IncProxyRequest(metrics.OutcomeError)
			logger.Warn("image fetch returned non-200",
				"url", imageURL, "status", resp.StatusCode)
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error": "Failed to fetch image",
			})
			return
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, resp.Body); err != nil {
			metrics.IncProxyRequest(metrics.OutcomeError)
			logger.Warn("image stream interrupted", "url", imageURL, "error", err)
			return
		}
		metrics.IncProxyRequest(metrics.OutcomeOK)
	})

	// ---------------- EMBED SCRIPT ----------------

	r.Get("/embed.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(deps.EmbedScript)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeSubmitRequest(r *http.Request) (submitRequest, error) {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return submitRequest{}, nil
	}

	var req submitRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return submitRequest{}, nil
		}
		return submitRequest{}, err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return submitRequest{}, errors.New("request body must contain exactly one JSON object")
	}

	req.HumanImage = strings.TrimSpace(req.HumanImage)
	req.ClothImage = strings.TrimSpace(req.ClothImage)
	return req, nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
