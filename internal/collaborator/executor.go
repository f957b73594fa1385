package collaborator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// SandboxExecutor runs candidate code through the external sandbox service.
// It never returns a Go error: every failure mode comes back as an
// ExecutionResult with Status "error" so a broken sandbox cannot fail a
// session operation.
type SandboxExecutor struct {
	client *resty.Client
	log    zerolog.Logger
}

// NewSandboxExecutor creates a sandbox client against baseURL.
func NewSandboxExecutor(baseURL string, timeout time.Duration, log zerolog.Logger) *SandboxExecutor {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &SandboxExecutor{
		client: client,
		log:    log.With().Str("component", "sandbox_executor").Logger(),
	}
}

type executeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Execute submits code for execution and returns the sandbox verdict.
func (e *SandboxExecutor) Execute(ctx context.Context, code, language string) model.ExecutionResult {
	started := time.Now()
	var result model.ExecutionResult

	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(executeRequest{Code: code, Language: language}).
		SetResult(&result).
		Post("/execute")
	if err != nil {
		e.log.Warn().Err(err).Str("language", language).Msg("Sandbox unreachable")
		return model.ExecutionResult{
			Status:          "error",
			Error:           fmt.Sprintf("execution service unavailable: %v", err),
			ExecutionTimeMs: time.Since(started).Milliseconds(),
		}
	}
	if resp.IsError() {
		e.log.Warn().Int("status", resp.StatusCode()).Msg("Sandbox rejected execution")
		return model.ExecutionResult{
			Status:          "error",
			Error:           fmt.Sprintf("execution service returned %d", resp.StatusCode()),
			ExecutionTimeMs: time.Since(started).Milliseconds(),
		}
	}

	if result.Status == "" {
		result.Status = "success"
	}
	if result.ExecutionTimeMs == 0 {
		result.ExecutionTimeMs = time.Since(started).Milliseconds()
	}
	return result
}
