package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "meta-llama/Llama-3.3-70B-Instruct"

// DefaultBaseURL is the OpenAI-compatible endpoint used when none is configured.
const DefaultBaseURL = "https://api.featherless.ai/v1"

// OpenAIConfig configures OpenAIOracle.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// MaxValues caps the sample values rendered into the prompt (all when <= 0).
	MaxValues int
	// RequestsPerSecond enables a client-side rate limit when > 0.
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// OpenAIOracle asks an OpenAI-compatible /chat/completions endpoint, at temperature 0, which
// candidate the target feature matches.
type OpenAIOracle struct {
	baseURL   string
	apiKey    string
	model     string
	maxValues int
	limiter   *rate.Limiter
	client    *http.Client
	logger    *zap.Logger
}

// NewOpenAIOracle returns an oracle for cfg.
func NewOpenAIOracle(cfg OpenAIConfig) *OpenAIOracle {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	o := &OpenAIOracle{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxValues: cfg.MaxValues,
		client:    client,
		logger:    cfg.Logger,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return o
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Classify sends the prompt and returns the model's raw answer.
func (o *OpenAIOracle) Classify(ctx context.Context, target string, values []string, candidates []string) (string, error) {
	return o.ClassifyWithReminder(ctx, target, values, candidates, "")
}

// ClassifyWithReminder is Classify with reminder appended to the user message.
func (o *OpenAIOracle) ClassifyWithReminder(ctx context.Context, target string, values []string, candidates []string, reminder string) (string, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("oracle rate limit: %w", err)
		}
	}
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(candidates)},
			{Role: "user", Content: UserMessage(target, values, o.maxValues) + reminder},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return "", unavailable("chat request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", unavailable("read chat response: %v", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(payload, &parsed)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			return "", unavailable("chat API %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", unavailable("chat API returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", unavailable("decode chat response: %v", decodeErr)
	}
	if len(parsed.Choices) == 0 {
		return "", unavailable("chat API returned no choices")
	}
	answer := parsed.Choices[0].Message.Content
	o.logger.Debug("oracle answered",
		zap.String("feature", target),
		zap.Int("candidates", len(candidates)),
		zap.String("answer", answer),
		zap.Duration("took", time.Since(start)))
	return answer, nil
}
