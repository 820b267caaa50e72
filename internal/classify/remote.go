package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"costscope/internal/graph"
	"costscope/internal/slogutil"
)

const (
	// DefaultBatchSize bounds units per oracle request.
	DefaultBatchSize = 50
	// DefaultMaxRetries bounds transport retries per chunk.
	DefaultMaxRetries = 3

	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
	defaultMaxBodySize = 4 << 20 // 4 MB
)

// RemoteConfig configures the batched remote classifier.
type RemoteConfig struct {
	Endpoint   string
	Token      string
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
}

// SchemaError indicates the oracle returned a response costscope could not
// correlate. Affected units degrade to the default verdict; the run
// continues.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string { return "classification schema error: " + e.Reason }

// Remote classifies units through an external oracle, one request per
// chunk of BatchSize units instead of one per unit. Responses are
// correlated by unit id, never by position: truncated or reordered
// responses degrade individual units, not the chunk.
type Remote struct {
	config   RemoteConfig
	client   *http.Client
	fallback *Heuristic
	logger   *slog.Logger
}

// classifyRequest is the oracle wire format. Only pattern summaries are
// sent, never source text.
type classifyRequest struct {
	Units []requestUnit `json:"units"`
}

type requestUnit struct {
	Key               string   `json:"key"`
	Imports           []string `json:"imports"`
	APICallSignatures []string `json:"apiCallSignatures"`
	KeywordHits       []string `json:"keywordHits"`
}

type classifyResponse struct {
	Results []responseUnit `json:"results"`
}

type responseUnit struct {
	Key        string  `json:"key"`
	Role       string  `json:"role"`
	Category   string  `json:"category"`
	Provider   string  `json:"provider"`
	IsPaid     bool    `json:"isPaid"`
	Confidence float64 `json:"confidence"`
}

// NewRemote creates a remote classifier. fallback handles chunks whose
// oracle call fails outright; nil means default-table heuristics.
func NewRemote(config RemoteConfig, fallback *Heuristic, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if fallback == nil {
		fallback = NewHeuristic(nil)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		config:   config,
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
		logger:   logger,
	}
}

// Classify partitions bundles into chunks and issues one oracle call per
// chunk, sequentially. Chunk failures degrade to heuristic results for
// that chunk only.
func (r *Remote) Classify(ctx context.Context, bundles []ContextBundle) ([]graph.ApiClassification, error) {
	results := make([]graph.ApiClassification, len(bundles))

	for start := 0; start < len(bundles); start += r.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + r.config.BatchSize
		if end > len(bundles) {
			end = len(bundles)
		}
		chunk := bundles[start:end]

		verdicts, err := r.classifyChunk(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("Oracle chunk failed, degrading to quick classification",
				"units", len(chunk), "error", err.Error())
			verdicts, _ = r.fallback.Classify(ctx, chunk)
		}
		copy(results[start:end], verdicts)
	}
	return results, nil
}

// classifyChunk sends one chunk and maps the response back by correlation
// key. Units missing from the response get the default verdict.
func (r *Remote) classifyChunk(ctx context.Context, chunk []ContextBundle) ([]graph.ApiClassification, error) {
	req := classifyRequest{Units: make([]requestUnit, len(chunk))}
	for i, b := range chunk {
		p := ExtractPatterns(b)
		req.Units[i] = requestUnit{
			Key:               b.UnitID,
			Imports:           p.Imports,
			APICallSignatures: p.APICallSignatures,
			KeywordHits:       p.KeywordHits,
		}
	}

	body, err := r.post(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp classifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("malformed response: %v", err)}
	}

	byKey := make(map[string]responseUnit, len(resp.Results))
	for _, res := range resp.Results {
		byKey[res.Key] = res
	}

	results := make([]graph.ApiClassification, len(chunk))
	for i, b := range chunk {
		res, ok := byKey[b.UnitID]
		if !ok {
			r.logger.Debug("Oracle response missing unit, using default",
				"unit", b.UnitID)
			results[i] = DefaultClassification()
			continue
		}
		results[i] = graph.ApiClassification{
			Role:       roleFromString(res.Role),
			Category:   categoryFromString(res.Category),
			Provider:   res.Provider,
			IsPaid:     res.IsPaid,
			Confidence: clamp01(res.Confidence),
		}
	}
	return results, nil
}

// post sends the chunk request with exponential-backoff retries on network
// failures and 5xx responses. 4xx responses are not retried.
func (r *Remote) post(ctx context.Context, payload classifyRequest) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := defaultBaseDelay * time.Duration(1<<uint(attempt-1))
			if delay > defaultMaxDelay {
				delay = defaultMaxDelay
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			r.logger.Debug("Retrying oracle request", "attempt", attempt+1)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.Endpoint+"/classify", bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "costscope-classifier/1.0")
		if r.config.Token != "" {
			req.Header.Set("Authorization", "Bearer "+r.config.Token)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("oracle request failed: %w", err)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("oracle server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("oracle rejected request: %d", resp.StatusCode)
		}

		if readErr != nil {
			lastErr = fmt.Errorf("failed to read oracle response: %w", readErr)
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("oracle unreachable after %d retries: %w", r.config.MaxRetries, lastErr)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
