package rehab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPConfig configures HTTPRecords
type HTTPConfig struct {
	BaseURL           string        // e.g. https://records.example.org
	Token             string        // bearer token, optional
	Timeout           time.Duration // per request
	RequestsPerSecond float64       // zero disables client-side limiting
	Burst             int
}

// HTTPRecords reads records from a JSON REST store:
//
//	GET /beneficiaries/{id}
//	GET /beneficiaries/{id}/sessions
//	GET /beneficiaries/{id}/goals
type HTTPRecords struct {
	config     HTTPConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewHTTPRecords creates a client for the store at cfg.BaseURL
func NewHTTPRecords(cfg HTTPConfig, log zerolog.Logger) *HTTPRecords {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	r := &HTTPRecords{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return r
}

func (h *HTTPRecords) Beneficiary(ctx context.Context, id string) (*Beneficiary, error) {
	var b Beneficiary
	if err := h.apiCall(ctx, "/beneficiaries/"+url.PathEscape(id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Sessions returns the beneficiary's sessions, oldest first
func (h *HTTPRecords) Sessions(ctx context.Context, id string) ([]Session, error) {
	var out []Session
	if err := h.apiCall(ctx, "/beneficiaries/"+url.PathEscape(id)+"/sessions", &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (h *HTTPRecords) Goals(ctx context.Context, id string) ([]Goal, error) {
	var out []Goal
	if err := h.apiCall(ctx, "/beneficiaries/"+url.PathEscape(id)+"/goals", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *HTTPRecords) apiCall(ctx context.Context, endpoint string, result interface{}) error {
	start := time.Now()

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit exceeded: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.config.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.config.Token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	h.log.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("records request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrBeneficiaryNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("records API error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
