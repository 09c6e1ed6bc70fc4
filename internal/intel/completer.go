package intel

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/model"
)

// Completer sends a single-turn prompt to a language model and returns the
// text of its answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider names accepted in ai.provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// NewCompleter builds the configured backend wrapped in a circuit breaker.
func NewCompleter(cfg model.AIConfig, apiKey string, logger *log.Logger) (Completer, error) {
	var inner Completer
	switch cfg.Provider {
	case ProviderAnthropic, "":
		inner = NewAnthropic(apiKey, cfg.Model, cfg.MaxTokens, cfg.BaseURL)
	case ProviderOpenAI:
		inner = NewOpenAI(apiKey, cfg.Model, cfg.MaxTokens, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	return NewBreaker(inner, cfg.Breaker, logger), nil
}
