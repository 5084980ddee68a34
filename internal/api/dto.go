package api

import (
	"github.com/starford/ferry/internal/models"
	"github.com/starford/ferry/internal/routing"
)

// RouteResponse is the payload of GET /route.
type RouteResponse struct {
	Key     routing.Key     `json:"key"`
	Outcome *models.Outcome `json:"outcome,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ScanResponse is the payload of POST /scan.
type ScanResponse struct {
	Status string `json:"status"`
}
