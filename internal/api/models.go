package api

import "github.com/phrazzld/docstream/internal/domain"

// analyzeForm is the non-file part of an analysis request.
type analyzeForm struct {
	URL string `validate:"omitempty,http_url,max=2048"`
}

// TaskResponse is the body of GET /task/{taskID}.
type TaskResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Error    string `json:"error,omitempty"`
}

// CancelResponse is the body of POST /cancel/{taskID}.
type CancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ServiceStatusResponse reports whether the parse service credentials are present.
type ServiceStatusResponse struct {
	Configured         bool   `json:"configured"`
	APIBase            string `json:"api_base,omitempty"`
	Message            string `json:"message"`
	KeyPreview         string `json:"key_preview,omitempty"`
	AnalyzerConfigured bool   `json:"analyzer_configured"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	ParserConfigured bool   `json:"parser_configured"`
	ActiveTasks      int    `json:"active_tasks"`
}

// ImageAnalysisResponse is the body of POST /analyze-image/{imageID}.
type ImageAnalysisResponse struct {
	Success  bool                 `json:"success"`
	ImageID  string               `json:"imageId"`
	Filename string               `json:"filename,omitempty"`
	Analysis domain.ImageAnalysis `json:"analysis"`
}
