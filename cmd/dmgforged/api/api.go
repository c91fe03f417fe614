// Package api holds the daemon's HTTP handlers.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/dmgforge/dmgforge/cmd/dmgforged/config"
	"github.com/dmgforge/dmgforge/lib/builds"
)

// ApiService carries the dependencies the HTTP handlers need.
type ApiService struct {
	Config       *config.Config
	BuildManager builds.Manager
}

// New creates a new ApiService
func New(cfg *config.Config, buildManager builds.Manager) *ApiService {
	return &ApiService{
		Config:       cfg,
		BuildManager: buildManager,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
