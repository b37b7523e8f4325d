package server

import (
	"html/template"
	"net/http"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>EKS CloudForge - DevOps Pipeline Demo</title>
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px;
               background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; min-height: 100vh; }
        .container { background: rgba(255, 255, 255, 0.1); border-radius: 15px; padding: 30px; }
        h1 { text-align: center; margin-bottom: 30px; font-size: 2.5em; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 20px; margin-bottom: 30px; }
        .card { background: rgba(255, 255, 255, 0.2); border-radius: 10px; padding: 20px; text-align: center; }
        .card h3 { margin: 0 0 10px 0; }
        .card p { margin: 0; font-weight: bold; }
        .endpoints li { background: rgba(255, 255, 255, 0.1); margin: 10px 0; padding: 15px; border-radius: 8px;
                        font-family: 'Courier New', monospace; list-style: none; }
        .footer { font-size: 0.9em; text-align: center; margin-top: 20px; opacity: 0.8; }
    </style>
</head>
<body>
<div class="container">
    <h1>EKS CloudForge</h1>
    <p style="text-align: center;">Complete DevOps Pipeline Demo - Running on {{ .InstanceType }} Instances</p>

    <div class="grid">
        <div class="card"><h3>Status</h3><p style="color: #4ade80;">Healthy</p></div>
        <div class="card"><h3>Instance Type</h3><p>{{ .InstanceType }}</p></div>
        <div class="card"><h3>Requests</h3><p>{{ .Requests }}</p></div>
        <div class="card"><h3>Uptime</h3><p>{{ .Uptime }}</p></div>
    </div>

    <h2>Technology Stack</h2>
    <div class="grid">
        <div class="card"><h3>AWS EKS</h3><p>Kubernetes Cluster</p></div>
        <div class="card"><h3>Pulumi</h3><p>Infrastructure as Code</p></div>
        <div class="card"><h3>Docker</h3><p>Containerization</p></div>
        <div class="card"><h3>Prometheus</h3><p>Monitoring</p></div>
        <div class="card"><h3>Go</h3><p>Application Runtime</p></div>
    </div>

    <h2>Available Endpoints</h2>
    <ul class="endpoints">
        <li><strong>GET /</strong> - This page (main application)</li>
        <li><strong>GET /health</strong> - Health check endpoint</li>
        <li><strong>GET /status</strong> - Detailed application status</li>
        <li><strong>GET /metrics</strong> - System metrics and resource usage</li>
        <li><strong>GET /prometheus</strong> - Prometheus metrics (for monitoring)</li>
        <li><strong>GET /api/info</strong> - API information</li>
    </ul>

    <div class="footer">
        <p>Started: {{ .StartTime }}</p>
        <p>Host: {{ .Hostname }}</p>
    </div>
</div>
</body>
</html>
`))

type indexData struct {
	InstanceType string
	Requests     int64
	Uptime       string
	StartTime    string
	Hostname     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(w, indexData{
		InstanceType: s.cfg.InstanceType,
		Requests:     s.requests.Load(),
		Uptime:       formatUptime(s.uptime()),
		StartTime:    s.start.Format("2006-01-02 15:04:05"),
		Hostname:     s.hostname,
	})
	if err != nil {
		s.logger.Error("rendering index", "error", err)
	}
}
