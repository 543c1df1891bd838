package provider

import "fmt"

// Factory builds provider clients with a request-scoped API key. Clients
// are cheap per-request constructions: the effective key may differ per
// user, so none are cached.
type Factory struct {
	OpenRouterURL string
}

// ChatClient returns a chat completion client for the named provider.
func (f *Factory) ChatClient(name, apiKey string) (Client, error) {
	switch name {
	case "openai":
		return NewOpenAIClient(apiKey)
	case "openrouter":
		return NewOpenRouterClient(apiKey, f.OpenRouterURL)
	case "anthropic":
		return NewAnthropicClient(apiKey)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// ImageClient returns an image generation client for the named provider.
func (f *Factory) ImageClient(name, apiKey string) (ImageGenerator, error) {
	switch name {
	case "openai":
		return NewOpenAIClient(apiKey)
	default:
		return nil, fmt.Errorf("provider %q cannot generate images", name)
	}
}
