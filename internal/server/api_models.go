package server

import "github.com/raysh454/darklens/internal/auditor"

// TargetRequest names the page to audit or capture. Both the camelCase key
// used by the web frontend and the snake_case key used by the services are
// accepted.
type TargetRequest struct {
	TargetURL      string `json:"targetUrl,omitempty" example:"https://example.com"`
	TargetURLSnake string `json:"target_url,omitempty" example:"https://example.com"`
}

func (t TargetRequest) target() string {
	if t.TargetURL != "" {
		return t.TargetURL
	}
	return t.TargetURLSnake
}

// ScoreRequest carries detections produced elsewhere to be scored.
type ScoreRequest struct {
	TargetURL  string                 `json:"target_url" example:"example.com"`
	Detections []auditor.RawDetection `json:"detections"`
}

// TestScraperResponse reports where a fresh screenshot can be viewed.
type TestScraperResponse struct {
	Success  bool   `json:"success" example:"true"`
	ImageURL string `json:"imageUrl" example:"http://localhost:5000/exports/site_audit_1a2b3c4d.png"`
}

// CaptureResponse mirrors the capture service contract.
type CaptureResponse struct {
	Status   string `json:"status" example:"success"`
	FilePath string `json:"file_path" example:"/var/lib/darklens/exports/site_audit_1a2b3c4d.png"`
	URL      string `json:"url" example:"https://example.com"`
}

// DiscoverResponse lists the same-site pages found from a root.
type DiscoverResponse struct {
	Root  string   `json:"root" example:"https://example.com"`
	Pages []string `json:"pages"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string `json:"status" example:"Backend is running."`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
