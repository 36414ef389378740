package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Version is the wire version served by the health endpoint.
const Version = "1.0.0"

type healthResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health. It requires no credential so
// integrators can probe availability before provisioning a key.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Success:   true,
		Status:    "operational",
		Timestamp: time.Now().UnixMilli(),
		Version:   Version,
	})
}
