package model

// ReasoningEffort controls provider-side chain-of-thought effort.
type ReasoningEffort string

const (
	ReasoningOff    ReasoningEffort = "off"
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// ValidReasoningEffort reports whether e is part of the closed effort set.
// The empty string is accepted and treated as "off".
func ValidReasoningEffort(e ReasoningEffort) bool {
	switch e {
	case "", ReasoningOff, ReasoningLow, ReasoningMedium, ReasoningHigh:
		return true
	}
	return false
}

// ModelInfo describes one entry of the model catalog.
type ModelInfo struct {
	ID       string
	Provider string
	Image    bool
}

// Catalog is the closed set of model identifiers accepted by the API.
var Catalog = map[string]ModelInfo{
	"openai/gpt-4o":               {ID: "openai/gpt-4o", Provider: "openrouter"},
	"openai/gpt-4o-mini":          {ID: "openai/gpt-4o-mini", Provider: "openrouter"},
	"openai/o3-mini":              {ID: "openai/o3-mini", Provider: "openrouter"},
	"anthropic/claude-3.5-sonnet": {ID: "anthropic/claude-3.5-sonnet", Provider: "openrouter"},
	"google/gemini-2.0-flash-001": {ID: "google/gemini-2.0-flash-001", Provider: "openrouter"},
	"openai/gpt-image-1":          {ID: "openai/gpt-image-1", Provider: "openai", Image: true},
}

// LookupModel resolves a catalog entry.
func LookupModel(id string) (ModelInfo, bool) {
	info, ok := Catalog[id]
	return info, ok
}

// InboundMessage is one conversation message in a generation request body.
type InboundMessage struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	FileIDs []string `json:"fileIds,omitempty"`
}

// GenerateConfig is the config block of a generation request.
type GenerateConfig struct {
	Model              string          `json:"model"`
	UserID             string          `json:"userId"`
	ChatID             string          `json:"chatId"`
	MessageID          string          `json:"messageId"`
	Web                bool            `json:"web,omitempty"`
	Reasoning          ReasoningEffort `json:"reasoning,omitempty"`
	PreviousResponseID string          `json:"previousResponseId,omitempty"`
	UploadToken        string          `json:"uploadToken,omitempty"`
}

// GenerateRequest is the body of POST /api/model.
type GenerateRequest struct {
	Messages []InboundMessage `json:"messages"`
	Config   GenerateConfig   `json:"config"`
}
