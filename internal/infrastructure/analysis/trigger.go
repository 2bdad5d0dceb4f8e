package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"MentionScanner/internal/config"
	"MentionScanner/internal/ports"
)

// Trigger posts fire-and-forget analysis requests for newly inserted
// results to the downstream analysis worker.
type Trigger struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ ports.AnalysisTrigger = (*Trigger)(nil)

// NewTrigger builds a trigger client from configuration.
func NewTrigger(cfg config.AnalysisConfig) *Trigger {
	return &Trigger{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// TriggerAnalysis sends one message per result. The message id makes
// redelivery observable on the consumer side.
func (t *Trigger) TriggerAnalysis(ctx context.Context, resultID, monitorID int64) error {
	if t == nil || t.endpoint == "" {
		return fmt.Errorf("analysis trigger misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"message_id": uuid.NewString(),
		"result_id":  resultID,
		"monitor_id": monitorID,
	})
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send trigger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("analysis worker error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	return nil
}
