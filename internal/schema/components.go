package schema

// ComponentType classifies a configuration object.
type ComponentType string

const (
	ComponentTypeTeam        ComponentType = "team"
	ComponentTypeAgent       ComponentType = "agent"
	ComponentTypeModel       ComponentType = "model"
	ComponentTypeTool        ComponentType = "tool"
	ComponentTypeTermination ComponentType = "termination"
)

// ModelType selects a model client variant.
type ModelType string

const (
	ModelTypeOpenAI      ModelType = "OpenAIChatCompletionClient"
	ModelTypeAzureOpenAI ModelType = "AzureOpenAIChatCompletionClient"
)

// ModelConfig configures a model client. The azure_* fields and api_version
// are required for the Azure variant and ignored for plain OpenAI.
type ModelConfig struct {
	ComponentType ComponentType `json:"component_type"`
	Version       string        `json:"version,omitempty"`

	Model     string    `json:"model" validate:"required"`
	ModelType ModelType `json:"model_type"`
	APIKey    string    `json:"api_key,omitempty"`
	BaseURL   string    `json:"base_url,omitempty"`

	AzureDeployment      string `json:"azure_deployment,omitempty"`
	APIVersion           string `json:"api_version,omitempty"`
	AzureEndpoint        string `json:"azure_endpoint,omitempty"`
	AzureADTokenProvider string `json:"azure_ad_token_provider,omitempty"`
}

// ToolType selects a tool variant.
type ToolType string

const ToolTypePythonFunction ToolType = "PythonFunction"

// ToolConfig describes a tool an agent may call. Content holds the tool's
// source code or spec text.
type ToolConfig struct {
	ComponentType ComponentType `json:"component_type"`
	Version       string        `json:"version,omitempty"`

	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Content     string   `json:"content" validate:"required"`
	ToolType    ToolType `json:"tool_type"`
}

// TerminationType selects a termination condition variant.
type TerminationType string

const (
	TerminationTypeMaxMessage  TerminationType = "MaxMessageTermination"
	TerminationTypeTextMention TerminationType = "TextMentionTermination"
	TerminationTypeCombination TerminationType = "CombinationTermination"
)

// Operators accepted by combination terminations.
const (
	OperatorAnd = "and"
	OperatorOr  = "or"
)

// TerminationConfig decides when a run stops. CombinationTermination nests
// further conditions and may do so to arbitrary (but bounded) depth; the
// recursion and its depth cap live in the validator, not here.
type TerminationConfig struct {
	ComponentType ComponentType `json:"component_type"`
	Version       string        `json:"version,omitempty"`

	TerminationType TerminationType `json:"termination_type"`

	MaxMessages int                 `json:"max_messages,omitempty"`
	Text        string              `json:"text,omitempty"`
	Operator    string              `json:"operator,omitempty"`
	Conditions  []TerminationConfig `json:"conditions,omitempty"`
}

// AgentType selects an agent variant.
type AgentType string

const (
	AgentTypeAssistant AgentType = "AssistantAgent"
	AgentTypeUserProxy AgentType = "UserProxyAgent"
)

// AgentConfig describes one participant in a team.
type AgentConfig struct {
	ComponentType ComponentType `json:"component_type"`
	Version       string        `json:"version,omitempty"`

	Name          string       `json:"name" validate:"required"`
	AgentType     AgentType    `json:"agent_type"`
	SystemMessage string       `json:"system_message,omitempty"`
	ModelClient   *ModelConfig `json:"model_client,omitempty" validate:"-"`
	Tools         []ToolConfig `json:"tools,omitempty"`
	Description   string       `json:"description,omitempty"`
}

// TeamType selects a team variant.
type TeamType string

const (
	TeamTypeRoundRobin TeamType = "RoundRobinGroupChat"
	TeamTypeSelector   TeamType = "SelectorGroupChat"
)

// TeamConfig is the root configuration object handed to the orchestration
// engine. SelectorPrompt and ModelClient are mandatory for SelectorGroupChat
// and unused by RoundRobinGroupChat.
type TeamConfig struct {
	ComponentType ComponentType `json:"component_type"`
	Version       string        `json:"version,omitempty"`

	Name                 string             `json:"name" validate:"required"`
	Participants         []AgentConfig      `json:"participants"`
	TeamType             TeamType           `json:"team_type"`
	TerminationCondition *TerminationConfig `json:"termination_condition,omitempty" validate:"-"`

	SelectorPrompt string       `json:"selector_prompt,omitempty"`
	ModelClient    *ModelConfig `json:"model_client,omitempty" validate:"-"`
}
