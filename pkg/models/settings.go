package models

// ProviderKind identifies one of the three provider variants.
type ProviderKind string

const (
	ProviderOllama    ProviderKind = "ollama"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOpenAI    ProviderKind = "openai"
)

// Valid reports whether k is one of the known provider kinds.
func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderOllama, ProviderAnthropic, ProviderOpenAI:
		return true
	}
	return false
}

// Hosted reports whether the provider is a remote API that needs a credential.
func (k ProviderKind) Hosted() bool {
	return k == ProviderAnthropic || k == ProviderOpenAI
}

// ProviderConfig is the active provider selection as stored in settings.
type ProviderConfig struct {
	Kind          ProviderKind `json:"provider"`
	ModelID       string       `json:"modelId"`
	MaxTokens     int          `json:"maxTokens"`
	BaseURL       string       `json:"baseUrl,omitempty"`
	ContextLength int          `json:"contextLength,omitempty"`
	TimeoutMs     int          `json:"timeoutMs,omitempty"`
	MaxRounds     int          `json:"maxRounds"`
}

// ResolvedProvider is everything needed to construct a provider client.
type ResolvedProvider struct {
	Config     ProviderConfig
	Credential string
}

// CredentialUpdate reports the outcome of storing or removing an API key.
// The running server caches a key once it has been used, so replacing or
// removing a previously stored key applies only after a restart.
type CredentialUpdate struct {
	Provider        ProviderKind `json:"provider"`
	Configured      bool         `json:"configured"`
	RestartRequired bool         `json:"restartRequired"`
	Message         string       `json:"message"`
}
