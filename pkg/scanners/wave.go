package scanners

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/pyneda/sukyan/pkg/httpclient"
	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/ratelimit"
)

// waveCategory is one issue category in a WAVE API response, keyed by rule
// code (e.g. "alt_missing", "label_missing").
type waveCategory struct {
	Description string `json:"description"`
	Items       []struct {
		Selector string `json:"selector"`
		Context  string `json:"context"`
	} `json:"items"`
}

type waveResponse struct {
	Categories map[string]waveCategory `json:"categories"`
}

// WaveDriver drives the WAVE accessibility API over HTTP. WAVE is a hosted
// service with its own request quota, so calls are paced through a token
// bucket rather than only bounded by the orchestrator's per-scanner
// concurrency limit.
type WaveDriver struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *ratelimit.TokenBucket
}

// NewWaveDriver builds a WaveDriver from configuration.
func NewWaveDriver() *WaveDriver {
	rate := viper.GetFloat64("scanners.wave.rate_per_second")
	burst := viper.GetFloat64("scanners.wave.burst")
	if rate <= 0 {
		rate = 2
	}
	if burst <= 0 {
		burst = 5
	}

	return &WaveDriver{
		baseURL: viper.GetString("scanners.wave.base_url"),
		apiKey:  viper.GetString("scanners.wave.api_key"),
		client:  httpclient.CreateHttpClient(0),
		limiter: ratelimit.NewTokenBucket(rate, burst, 0),
	}
}

func (d *WaveDriver) ID() model.ScannerID { return model.ScannerWave }

func (d *WaveDriver) Drive(ctx context.Context, unit model.ScanUnit, timeout time.Duration, creds *model.Credentials) model.ScannerOutcome {
	started := time.Now()
	outcome := newOutcome(unit, started)

	if d.apiKey == "" {
		return finish(outcome, model.OutcomeFailed, model.FailureAuthRequired, fmt.Errorf("no WAVE API key configured"), nil)
	}

	// Wait (with a short poll) for a token rather than failing outright;
	// the orchestrator's per-scanner concurrency bound already keeps the
	// number of in-flight WAVE requests small.
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for !d.limiter.HasToken() {
		select {
		case <-waitCtx.Done():
			return finish(outcome, model.OutcomeTimedOut, model.FailureQuotaReached, fmt.Errorf("WAVE request quota not available within timeout"), nil)
		case <-time.After(100 * time.Millisecond):
		}
	}

	reqURL := fmt.Sprintf("%s?key=%s&url=%s&reporttype=4&format=json", d.baseURL, url.QueryEscape(d.apiKey), url.QueryEscape(unit.PageURL))
	req, err := http.NewRequestWithContext(waitCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return finish(outcome, model.OutcomeFailed, model.FailureProcessError, err, nil)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if waitCtx.Err() == context.DeadlineExceeded {
			return finish(outcome, model.OutcomeTimedOut, model.FailureTimeout, err, nil)
		}
		return finish(outcome, model.OutcomeFailed, model.FailureNetwork, err, nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return finish(outcome, model.OutcomeFailed, model.FailureAuthRequired, fmt.Errorf("WAVE API returned status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return finish(outcome, model.OutcomeFailed, model.FailureQuotaReached, fmt.Errorf("WAVE API quota exhausted"), nil)
	}
	if resp.StatusCode >= 400 {
		return finish(outcome, model.OutcomeFailed, model.FailureProcessError, fmt.Errorf("WAVE API returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return finish(outcome, model.OutcomeFailed, model.FailureBadOutput, err, nil)
	}

	var parsed waveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return finish(outcome, model.OutcomeFailed, model.FailureBadOutput, fmt.Errorf("parsing WAVE response: %w", err), nil)
	}

	var issues []model.RawIssue
	for ruleCode, cat := range parsed.Categories {
		for _, item := range cat.Items {
			issues = append(issues, model.RawIssue{
				RuleCode: ruleCode,
				Message:  cat.Description,
				Selector: item.Selector,
				Context:  item.Context,
			})
		}
	}

	return finish(outcome, model.OutcomeSucceeded, model.FailureNone, nil, issues)
}
