package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPTimeSource probes the server's /api/v1/time endpoint.
type HTTPTimeSource struct {
	BaseUrl string
	Client  *http.Client
}

func (s HTTPTimeSource) ServerTime(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseUrl+"/api/v1/time", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var body struct {
		ServerTime int64 `json:"server_time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	return body.ServerTime, nil
}
