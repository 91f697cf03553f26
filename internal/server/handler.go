package server

import (
	"encoding/json"
	"net/http"

	"github.com/iptsd-go/iptsd/daemon"
	"github.com/iptsd-go/iptsd/internal/config"
)

// statusResponse is the JSON response for GET /status.
type statusResponse struct {
	State    string       `json:"state"`
	Version  string       `json:"version"`
	Pipeline daemon.Stats `json:"pipeline"`
}

// handleStatus returns the device state and the live pipeline counters
// the ingest loop publishes once per frame.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, statusResponse{
		State:    s.deviceMgr.State().String(),
		Version:  s.version,
		Pipeline: s.deviceMgr.Stats(),
	})
}

// configResponse wraps the configuration values, with an error message on
// rejected updates.
type configResponse struct {
	Values *config.Values `json:"values,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// handleConfig returns the global configuration values on GET and
// replaces them on POST. Updated values are validated before they are
// applied and persisted; an invalid enum key rejects the whole update.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		values := s.cfg.Snapshot()
		writeJSON(w, configResponse{Values: &values})

	case http.MethodPost:
		values := s.cfg.Snapshot()
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, configResponse{Error: "invalid JSON"})
			return
		}

		if _, err := values.Runtime(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, configResponse{Error: err.Error()})
			return
		}

		s.cfg.Update(values)
		if err := s.cfg.Save(); err != nil {
			s.Log.Warn().Err(err).Msg("config save failed")
			writeJSON(w, configResponse{Error: "applied but not persisted: " + err.Error()})
			return
		}

		writeJSON(w, configResponse{Values: &values})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
