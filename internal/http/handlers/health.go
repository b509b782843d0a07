package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthCheck reports liveness for load balancers and uptime probes.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
