package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cmc-dx/rmrp/internal/features"
	"github.com/cmc-dx/rmrp/internal/shared/config"
)

// RemotePredictor calls the externally trained gradient-boosted models
// over HTTP. The model service owns feature selection and training; this
// client only ships the feature vectors and reads back predictions.
type RemotePredictor struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemotePredictor creates a client for the forecast model service
func NewRemotePredictor(cfg config.ForecastConfig) *RemotePredictor {
	return &RemotePredictor{
		baseURL: cfg.ModelURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name identifies the predictor in responses and metrics
func (p *RemotePredictor) Name() string { return "model-service" }

type predictRequest struct {
	Features []features.Vector `json:"features"`
}

// PredictCongestion requests congestion predictions from the model service
func (p *RemotePredictor) PredictCongestion(ctx context.Context, vectors []features.Vector) ([]CongestionForecast, error) {
	var resp struct {
		Forecasts []CongestionForecast `json:"forecasts"`
	}
	if err := p.post(ctx, "/predict/congestion", predictRequest{Features: vectors}, &resp); err != nil {
		return nil, err
	}
	return resp.Forecasts, nil
}

// PredictDischarges requests discharge predictions from the model service
func (p *RemotePredictor) PredictDischarges(ctx context.Context, vectors []features.Vector) ([]DischargeForecast, error) {
	var resp struct {
		Forecasts []DischargeForecast `json:"forecasts"`
	}
	if err := p.post(ctx, "/predict/discharges", predictRequest{Features: vectors}, &resp); err != nil {
		return nil, err
	}
	return resp.Forecasts, nil
}

func (p *RemotePredictor) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode forecast request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build forecast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("forecast model service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("forecast model service returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode forecast response: %w", err)
	}
	return nil
}
