package core

const (
	VexName          = "vexd"
	VexUserAgent     = "vexd/0.1"
	VexRepositoryURL = "https://github.com/sandevgo/vexd"
	VexVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RecallHit is an ephemeral result from the vector store. The pipeline
// never persists it; the store does.
type RecallHit struct {
	Text string         `json:"text"`
	Meta map[string]any `json:"meta"`
}

// GenParams mirrors the generation-parameter object of the completion
// endpoint. Only non-nil fields are transmitted.
type GenParams struct {
	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	TopK             *int               `json:"top_k,omitempty"`
	MaxTokens        *int               `json:"max_tokens,omitempty"`
	Stop             []string           `json:"stop,omitempty"`
	RepeatPenalty    *float64           `json:"repeat_penalty,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty"`
	Mirostat         *int               `json:"mirostat,omitempty"`
	MirostatTau      *float64           `json:"mirostat_tau,omitempty"`
	MirostatEta      *float64           `json:"mirostat_eta,omitempty"`
	NKeep            *int               `json:"n_keep,omitempty"`
	LogitBias        map[string]float64 `json:"logit_bias,omitempty"`
}

const (
	SourceLocal      = "local"
	SourceOpenRouter = "openrouter"
)

// Persona layering modes.
const (
	LayerPrepend = "prepend"
	LayerAppend  = "append"
	LayerReplace = "replace"
)

// UIOptions carries the per-request prompt shaping choices made by the
// presentation layer.
type UIOptions struct {
	OverrideSystem bool   `json:"override_system,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	// nil means enabled; the presentation layer only sends it to opt out.
	UsePersonality *bool  `json:"use_personality,omitempty"`
	PersonaID      string `json:"persona_id,omitempty"`
	PersonaLayer   string `json:"persona_layer,omitempty"`
}

func (o *UIOptions) PersonalityEnabled() bool {
	if o == nil || o.UsePersonality == nil {
		return true
	}
	return *o.UsePersonality
}

// OpenRouterOptions are passed through to the remote provider untouched.
type OpenRouterOptions struct {
	APIKey                 string   `json:"api_key,omitempty"`
	Model                  string   `json:"model,omitempty"`
	Providers              []string `json:"providers,omitempty"`
	AllowFallbackModels    *bool    `json:"allow_fallback_models,omitempty"`
	AllowFallbackProviders *bool    `json:"allow_fallback_providers,omitempty"`
}

// TurnMeta is the request metadata accompanying one conversational turn.
type TurnMeta struct {
	Source      string             `json:"source,omitempty"`
	UserProfile string             `json:"user_profile,omitempty"`
	UI          *UIOptions         `json:"ui_options,omitempty"`
	Gen         *GenParams         `json:"gen,omitempty"`
	OpenRouter  *OpenRouterOptions `json:"openrouter,omitempty"`
}
