package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// alertThreshold is the usage percentage above which an alert flag is set.
const alertThreshold = 80

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("GET /prometheus", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	mux.HandleFunc("GET /api/info", s.handleAPIInfo)
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

type healthResponse struct {
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
	Uptime            string `json:"uptime"`
	RequestsProcessed int64  `json:"requests_processed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:            "healthy",
		Timestamp:         s.now().Format(time.RFC3339Nano),
		Uptime:            formatUptime(s.uptime()),
		RequestsProcessed: s.requests.Load(),
	})
}

type statusResponse struct {
	Application applicationStatus `json:"application"`
	System      systemStatus      `json:"system"`
	Environment environmentStatus `json:"environment"`
}

type applicationStatus struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	Status            string `json:"status"`
	StartTime         string `json:"start_time"`
	Uptime            string `json:"uptime"`
	RequestsProcessed int64  `json:"requests_processed"`
}

type systemStatus struct {
	Hostname          string  `json:"hostname"`
	Platform          string  `json:"platform"`
	GoVersion         string  `json:"go_version"`
	CPUCount          int     `json:"cpu_count"`
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryTotalGB     float64 `json:"memory_total_gb"`
	MemoryAvailableGB float64 `json:"memory_available_gb"`
	MemoryPercent     float64 `json:"memory_percent"`
	DiskTotalGB       float64 `json:"disk_total_gb"`
	DiskFreeGB        float64 `json:"disk_free_gb"`
	DiskPercent       float64 `json:"disk_percent"`
}

type environmentStatus struct {
	InstanceType string `json:"instance_type"`
	Region       string `json:"region"`
	ClusterName  string `json:"cluster_name"`
	PodName      string `json:"pod_name"`
	Namespace    string `json:"namespace"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sampler.Sample(r.Context())
	if err != nil {
		s.logger.Error("sampling host", "error", err)
		s.internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Application: applicationStatus{
			Name:              AppName,
			Version:           Version,
			Status:            "running",
			StartTime:         s.start.Format(time.RFC3339Nano),
			Uptime:            formatUptime(s.uptime()),
			RequestsProcessed: s.requests.Load(),
		},
		System: systemStatus{
			Hostname:          s.hostname,
			Platform:          snap.Platform,
			GoVersion:         runtime.Version(),
			CPUCount:          snap.CPUCount,
			CPUPercent:        round2(snap.CPUPercent),
			MemoryTotalGB:     toGiB(snap.MemoryTotal),
			MemoryAvailableGB: toGiB(snap.MemoryAvailable),
			MemoryPercent:     round2(snap.MemoryPercent),
			DiskTotalGB:       toGiB(snap.DiskTotal),
			DiskFreeGB:        toGiB(snap.DiskFree),
			DiskPercent:       round2(snap.DiskPercent()),
		},
		Environment: environmentStatus{
			InstanceType: s.cfg.InstanceType,
			Region:       s.cfg.Region,
			ClusterName:  s.cfg.ClusterName,
			PodName:      s.cfg.PodName,
			Namespace:    s.cfg.Namespace,
		},
	})
}

type metricsResponse struct {
	Metrics usageMetrics `json:"metrics"`
	Alerts  usageAlerts  `json:"alerts"`
}

type usageMetrics struct {
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
	MemoryAvailableMB  float64 `json:"memory_available_mb"`
	DiskUsagePercent   float64 `json:"disk_usage_percent"`
	DiskFreeMB         float64 `json:"disk_free_mb"`
	RequestsTotal      int64   `json:"requests_total"`
	RequestsPerMinute  float64 `json:"requests_per_minute"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

type usageAlerts struct {
	CPUHigh    bool `json:"cpu_high"`
	MemoryHigh bool `json:"memory_high"`
	DiskHigh   bool `json:"disk_high"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sampler.Sample(r.Context())
	if err != nil {
		s.logger.Error("sampling host", "error", err)
		s.internalError(w)
		return
	}

	uptime := s.uptime()
	requests := s.requests.Load()
	var perMinute float64
	if minutes := uptime.Minutes(); minutes > 0 {
		perMinute = float64(requests) / minutes
	}

	writeJSON(w, http.StatusOK, metricsResponse{
		Metrics: usageMetrics{
			CPUUsagePercent:    round2(snap.CPUPercent),
			MemoryUsagePercent: round2(snap.MemoryPercent),
			MemoryAvailableMB:  toMiB(snap.MemoryAvailable),
			DiskUsagePercent:   round2(snap.DiskPercent()),
			DiskFreeMB:         toMiB(snap.DiskFree),
			RequestsTotal:      requests,
			RequestsPerMinute:  round2(perMinute),
			UptimeSeconds:      uptime.Seconds(),
		},
		Alerts: usageAlerts{
			CPUHigh:    snap.CPUPercent > alertThreshold,
			MemoryHigh: snap.MemoryPercent > alertThreshold,
			DiskHigh:   snap.DiskPercent() > alertThreshold,
		},
	})
}

type apiInfoResponse struct {
	API        apiDescription `json:"api"`
	Deployment deploymentInfo `json:"deployment"`
}

type apiDescription struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
}

type deploymentInfo struct {
	Containerized bool   `json:"containerized"`
	Orchestrator  string `json:"orchestrator"`
	InstanceType  string `json:"instance_type"`
	CostOptimized bool   `json:"cost_optimized"`
	AutoScaling   bool   `json:"auto_scaling"`
}

var endpointDescriptions = map[string]string{
	"GET /":           "Main application page",
	"GET /health":     "Health check endpoint",
	"GET /status":     "Detailed application status",
	"GET /metrics":    "System metrics (JSON)",
	"GET /prometheus": "Prometheus metrics (text/plain)",
	"GET /api/info":   "API information (this endpoint)",
}

func (s *Server) handleAPIInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, apiInfoResponse{
		API: apiDescription{
			Name:        APIName,
			Version:     Version,
			Description: "Lightweight Go API for DevOps pipeline demonstration",
			Endpoints:   endpointDescriptions,
		},
		Deployment: deploymentInfo{
			Containerized: true,
			Orchestrator:  "Kubernetes (EKS)",
			InstanceType:  s.cfg.InstanceType,
			CostOptimized: true,
			AutoScaling:   true,
		},
	})
}

type errorResponse struct {
	Error              string   `json:"error"`
	Message            string   `json:"message"`
	AvailableEndpoints []string `json:"available_endpoints,omitempty"`
	Timestamp          string   `json:"timestamp,omitempty"`
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error:              "Not Found",
		Message:            "The requested endpoint does not exist",
		AvailableEndpoints: Endpoints,
	})
}

func (s *Server) internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:     "Internal Server Error",
		Message:   "An unexpected error occurred",
		Timestamp: s.now().Format(time.RFC3339Nano),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
