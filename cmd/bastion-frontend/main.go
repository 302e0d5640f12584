// Command bastion-frontend is the demo consumer service. Every request it
// serves calls the backend over HTTP through a resilience executor composed
// from its configuration: retry with a fixed delay, a named bulkhead shared
// by all handlers, a per-attempt time limit, and a fallback message.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortresslabs/bastion/pkg/common/config"
	"github.com/fortresslabs/bastion/pkg/common/logging"
	"github.com/fortresslabs/bastion/pkg/resilience"
)

var (
	configPath = flag.String("config", "", "Path to JSON configuration file")
	listenAddr = flag.String("listen", "", "Listen address (overrides configuration)")
	backendURL = flag.String("backend", "", "Backend base URL (overrides configuration)")
)

// APIResponse is the JSON envelope for every endpoint.
type APIResponse struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Fallback bool        `json:"fallback,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type server struct {
	cfg    *config.Config
	logger *logging.Logger
	client *http.Client
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Println("configuration error:", err)
		return
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddress = *listenAddr
	}
	if *backendURL != "" {
		cfg.Backend.BaseURL = *backendURL
	}

	if err := logging.InitGlobalFromSettings(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.File); err != nil {
		fmt.Println("invalid logging settings:", err)
		return
	}
	logger := logging.GetGlobalLogger().WithComponent("frontend")

	s := &server{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{},
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/message", s.handleMessage).Methods("GET")
	router.HandleFunc("/api/slow", s.handleSlow).Methods("GET")
	router.HandleFunc("/api/flaky", s.handleFlaky).Methods("GET")
	router.HandleFunc("/api/pool", s.handlePoolStats).Methods("GET")

	logger.Info("frontend listening", map[string]interface{}{
		"address": cfg.Server.ListenAddress,
		"backend": cfg.Backend.BaseURL,
	})
	if err := http.ListenAndServe(cfg.Server.ListenAddress, router); err != nil {
		logger.Errorf("server stopped: %v", err)
	}
}

// getAsString performs a plain HTTP GET and returns the response body as a
// string, failing on any non-2xx status.
func (s *server) getAsString(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("backend returned status %d: %s", resp.StatusCode, body)
	}
	return string(body), nil
}

// callBackend wraps a backend GET in the configured resilience policy.
func (s *server) callBackend(ctx context.Context, path string) (string, bool, error) {
	policy := s.cfg.Policy
	url := s.cfg.Backend.BaseURL + path

	usedFallback := false
	value, err := resilience.New[string](func(ctx context.Context) (string, error) {
		return s.getAsString(ctx, url)
	}).
		WithRetry(policy.RetryAttempts, policy.RetryDelay()).
		WithBulkhead(policy.PoolID, policy.MaxConcurrent, policy.MaxQueue, policy.MaxWait()).
		WithTimeLimit(policy.TimeLimit()).
		WithFallback(func(err error) (string, error) {
			s.logger.WithField("url", url).WithField("error", err.Error()).Warn("falling back")
			usedFallback = true
			return policy.FallbackMessage, nil
		}).
		Run(ctx)

	return value, usedFallback, err
}

func (s *server) handleMessage(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, "/message")
}

func (s *server) handleSlow(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, "/slow?"+r.URL.RawQuery)
}

func (s *server) handleFlaky(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, "/flaky?"+r.URL.RawQuery)
}

func (s *server) proxy(w http.ResponseWriter, r *http.Request, path string) {
	started := time.Now()
	value, usedFallback, err := s.callBackend(r.Context(), path)
	if err != nil {
		s.writeJSON(w, http.StatusBadGateway, APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	s.logger.Debug("backend call settled", map[string]interface{}{
		"path":     path,
		"elapsed":  time.Since(started).String(),
		"fallback": usedFallback,
	})
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success:  true,
		Data:     value,
		Fallback: usedFallback,
	})
}

// handlePoolStats exposes a snapshot of the shared bulkhead pool.
func (s *server) handlePoolStats(w http.ResponseWriter, r *http.Request) {
	entry, err := resilience.DefaultRegistry().Get(s.cfg.Policy.PoolID)
	if err != nil {
		// No call has gone through yet, so the pool does not exist.
		s.writeJSON(w, http.StatusNotFound, APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	stats := entry.Pool.Stats()
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"pool_id":        entry.ID,
			"max_concurrent": stats.MaxConcurrent,
			"running":        stats.Running,
			"queued":         stats.Queued,
			"completed":      stats.Completed,
		},
	})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Errorf("failed to encode response: %v", err)
	}
}
