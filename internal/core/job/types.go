package job

import (
	"desktour/internal/core/match"
	"desktour/internal/platform/eino"
)

// Job is the internal storage shape for an async analysis.
type Job struct {
	JobID   string    `json:"job_id"`
	Type    Type      `json:"type"`
	Status  Status    `json:"status"`
	Results JobResult `json:"results,omitempty"`
}

type Type string

const (
	TypeAnalyze Type = "analyze"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type JobResult struct {
	AnalyzeResult *AnalyzeResult `json:"analyze_result,omitempty"`
}

// AnalyzeResult is the outcome of one source-analysis pipeline run.
type AnalyzeResult struct {
	SourceURL  string                 `json:"source_url"`
	Products   []match.MatchedProduct `json:"products,omitempty"`
	Matched    int                    `json:"matched"`
	Total      int                    `json:"total"`
	TokenUsage *eino.TokenUsage       `json:"token_usage,omitempty"`
	Error      string                 `json:"error,omitempty"`
}
