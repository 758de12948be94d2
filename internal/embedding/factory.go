package embedding

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Options selects and configures an embedder.
type Options struct {
	Provider   string
	Dimensions int
	CacheSize  int

	// onnx
	ModelPath  string
	OutputName string
	MaxTokens  int

	// openai
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New builds the embedder named by opts.Provider. An ONNX model that fails to load falls back
// to the hash embedder so development setups keep working. A positive CacheSize wraps the
// result in an LRU cache.
func New(opts Options, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		inner Embedder
		err   error
	)
	switch opts.Provider {
	case ProviderONNX:
		inner, err = NewONNXEmbedder(ONNXOptions{
			ModelPath:  opts.ModelPath,
			OutputName: opts.OutputName,
			Dimensions: opts.Dimensions,
			MaxTokens:  opts.MaxTokens,
		})
		if err != nil {
			logger.Warn("onnx embedder unavailable, using hash embedder",
				zap.String("model", opts.ModelPath), zap.Error(err))
			inner = NewHashEmbedder(opts.Dimensions)
		}
	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    opts.BaseURL,
			APIKey:     opts.APIKey,
			Model:      opts.Model,
			Dimensions: opts.Dimensions,
			Timeout:    opts.Timeout,
		})
		if err != nil {
			return nil, err
		}
	case ProviderMock, "hash", "":
		inner = NewHashEmbedder(opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
	if opts.CacheSize > 0 {
		return NewCachedEmbedder(inner, opts.CacheSize), nil
	}
	return inner, nil
}
