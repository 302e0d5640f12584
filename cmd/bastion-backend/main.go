// Command bastion-backend is the demo upstream service: a small HTTP server
// whose endpoints can be made slow or flaky on demand, giving the frontend's
// resilience policies something real to absorb.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortresslabs/bastion/pkg/common/logging"
)

var (
	listenAddr = flag.String("listen", ":8081", "Address to listen on")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

// APIResponse is the JSON envelope for every endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type server struct {
	logger *logging.Logger
}

func main() {
	flag.Parse()

	if err := logging.InitGlobalFromSettings(*logLevel, "text", "console", ""); err != nil {
		fmt.Println("invalid logging settings:", err)
		return
	}
	logger := logging.GetGlobalLogger().WithComponent("backend")

	s := &server{logger: logger}

	router := mux.NewRouter()
	router.HandleFunc("/message", s.handleMessage).Methods("GET")
	router.HandleFunc("/slow", s.handleSlow).Methods("GET")
	router.HandleFunc("/flaky", s.handleFlaky).Methods("GET")
	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	logger.Info("backend listening", map[string]interface{}{"address": *listenAddr})
	if err := http.ListenAndServe(*listenAddr, router); err != nil {
		logger.Errorf("server stopped: %v", err)
	}
}

func (s *server) handleMessage(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    "hello from the backend",
	})
}

// handleSlow sleeps for the requested delay (default one second) before
// answering, for exercising time limits downstream.
func (s *server) handleSlow(w http.ResponseWriter, r *http.Request) {
	delay := time.Second
	if raw := r.URL.Query().Get("delay_ms"); raw != "" {
		millis, err := strconv.Atoi(raw)
		if err != nil || millis < 0 {
			s.writeJSON(w, http.StatusBadRequest, APIResponse{
				Success: false,
				Error:   fmt.Sprintf("invalid delay_ms: %q", raw),
			})
			return
		}
		delay = time.Duration(millis) * time.Millisecond
	}

	s.logger.Debug("slow request", map[string]interface{}{"delay": delay.String()})

	select {
	case <-time.After(delay):
	case <-r.Context().Done():
		// Client gave up; nothing useful left to send.
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    fmt.Sprintf("slept %v", delay),
	})
}

// handleFlaky fails with the requested probability (default one half).
func (s *server) handleFlaky(w http.ResponseWriter, r *http.Request) {
	rate := 0.5
	if raw := r.URL.Query().Get("rate"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			s.writeJSON(w, http.StatusBadRequest, APIResponse{
				Success: false,
				Error:   fmt.Sprintf("invalid rate: %q", raw),
			})
			return
		}
		rate = parsed
	}

	if rand.Float64() < rate {
		s.logger.Debug("flaky request failing on purpose")
		s.writeJSON(w, http.StatusInternalServerError, APIResponse{
			Success: false,
			Error:   "simulated upstream failure",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    "got lucky",
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: "ok"})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Errorf("failed to encode response: %v", err)
	}
}
