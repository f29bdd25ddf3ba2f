package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seo-optimizer/siteanalyzer/report"
)

// DesignScorer rates the visual design of a page. It is optional; the
// orchestrator skips design scoring when none is configured.
type DesignScorer interface {
	ScoreDesign(ctx context.Context, pageURL string) (*report.DesignScore, error)
}

// HTTPDesignScorer calls an external screenshot and design scoring service.
type HTTPDesignScorer struct {
	endpoint string
	client   *http.Client
}

func NewHTTPDesignScorer(endpoint string, timeout time.Duration) *HTTPDesignScorer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPDesignScorer{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPDesignScorer) ScoreDesign(ctx context.Context, pageURL string) (*report.DesignScore, error) {
	body, err := json.Marshal(map[string]string{"url": pageURL})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create design request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("design service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("design service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var score report.DesignScore
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return nil, fmt.Errorf("decode design score: %w", err)
	}
	return &score, nil
}
