package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
)

// TrajectorySource fetches the current cyclone trajectory document from the
// weather service. The document schema belongs to the upstream; we only
// verify it is JSON before archiving it verbatim.
type TrajectorySource struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewTrajectorySource(client *http.Client, baseURL string) *TrajectorySource {
	return &TrajectorySource{
		name:    "trajectory",
		baseURL: baseURL,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuit("trajectory"),
	}
}

func (s *TrajectorySource) Name() string {
	return s.name
}

// Fetch returns the raw trajectory JSON bytes.
func (s *TrajectorySource) Fetch(ctx context.Context) ([]byte, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("trajectory url is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, s.baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("trajectory endpoint returned invalid JSON (%d bytes)", len(body))
	}

	return body, nil
}
