package llm

import "fmt"

// OpenAI-compatible providers and their base URLs
var openAICompatibleProviders = map[string]string{
	"mistral":   "https://api.mistral.ai/v1",
	"groq":      "https://api.groq.com/openai/v1",
	"together":  "https://api.together.xyz/v1",
	"deepseek":  "https://api.deepseek.com/v1",
	"fireworks": "https://api.fireworks.ai/inference/v1",
}

func New(cfg Config) (LLM, error) {
	switch cfg.Provider {
	case "claude":
		return newClaude(cfg.APIKey, cfg.Model), nil
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}

		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}

		return newOpenAICompatible(cfg.APIKey, baseURL, model), nil
	default:
		if baseURL, ok := openAICompatibleProviders[cfg.Provider]; ok {
			if cfg.BaseURL != "" {
				baseURL = cfg.BaseURL
			}
			return newOpenAICompatible(cfg.APIKey, baseURL, cfg.Model), nil
		}
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// IsKnownProvider checks if a provider is recognized
func IsKnownProvider(provider string) bool {
	switch provider {
	case "claude", "openai":
		return true
	default:
		_, ok := openAICompatibleProviders[provider]
		return ok
	}
}
