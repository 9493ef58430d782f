package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxDepth caps termination condition nesting. Deeper (or cyclic)
// input is rejected with DepthExceededError.
const DefaultMaxDepth = 32

var fieldValidator = newFieldValidator()

func newFieldValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// checkStruct runs the tag-level constraints on v and converts each failure
// into an Issue with a JSON field path.
func checkStruct(v any) []Issue {
	err := fieldValidator.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []Issue{{Message: err.Error()}}
	}
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, Issue{Path: fieldPath(fe), Message: constraintMessage(fe)})
	}
	return issues
}

// fieldPath strips the root struct name from the validator namespace,
// leaving the JSON path relative to the validated value.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "missing required field"
	case "excluded_with":
		return "mutually exclusive with " + strings.ToLower(fe.Param())
	case "min":
		return "must have at least " + fe.Param() + " entry"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "json":
		return "must be valid JSON text"
	}
	return "failed constraint " + fe.Tag()
}

func prefixIssues(issues []Issue, prefix string) []Issue {
	if prefix == "" {
		return issues
	}
	out := make([]Issue, len(issues))
	for i, iss := range issues {
		if iss.Path == "" {
			iss.Path = strings.TrimSuffix(prefix, ".")
		} else {
			iss.Path = prefix + iss.Path
		}
		out[i] = iss
	}
	return out
}

func checkComponentType(got, want ComponentType, prefix string) []Issue {
	if got == "" {
		return []Issue{{Path: prefix + "component_type", Message: "missing required field"}}
	}
	if got != want {
		return []Issue{{Path: prefix + "component_type", Message: fmt.Sprintf("must be %q", want)}}
	}
	return nil
}

func unknownIssue(path, value string, accepted []string) Issue {
	if value == "" {
		return Issue{Path: path, Message: "missing discriminant"}
	}
	return Issue{Path: path, Message: fmt.Sprintf("unknown value %q, accepted values: %s", value, strings.Join(accepted, ", "))}
}

// discriminant extracts the named discriminant field from raw JSON.
func discriminant(raw []byte, union, field string) (string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", &SchemaError{Union: union, Issues: []Issue{{Message: "invalid JSON: " + err.Error()}}}
	}
	fieldRaw, ok := probe[field]
	if !ok {
		return "", &MissingDiscriminantError{Union: union, Field: field}
	}
	var value string
	if err := json.Unmarshal(fieldRaw, &value); err != nil {
		return "", &SchemaError{Union: union, Issues: []Issue{{Path: field, Message: "must be a string"}}}
	}
	return value, nil
}

// Message union.

var messageVariants = map[MessageType]func() AgentMessage{
	MessageTypeText:           func() AgentMessage { return &TextMessage{} },
	MessageTypeMultiModal:     func() AgentMessage { return &MultiModalMessage{} },
	MessageTypeStop:           func() AgentMessage { return &StopMessage{} },
	MessageTypeHandoff:        func() AgentMessage { return &HandoffMessage{} },
	MessageTypeToolCall:       func() AgentMessage { return &ToolCallMessage{} },
	MessageTypeToolCallResult: func() AgentMessage { return &ToolCallResultMessage{} },
}

func messageTypeNames() []string {
	return []string{
		string(MessageTypeText), string(MessageTypeMultiModal), string(MessageTypeStop),
		string(MessageTypeHandoff), string(MessageTypeToolCall), string(MessageTypeToolCallResult),
	}
}

// DecodeMessage narrows raw JSON to exactly one message variant, or reports
// a structured validation error.
func DecodeMessage(raw []byte) (AgentMessage, error) {
	disc, err := discriminant(raw, "message", "type")
	if err != nil {
		return nil, err
	}
	factory, ok := messageVariants[MessageType(disc)]
	if !ok {
		return nil, &UnknownVariantError{Union: "message", Field: "type", Value: disc, Accepted: messageTypeNames()}
	}
	msg := factory()
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, &SchemaError{Union: "message", Issues: []Issue{{Message: err.Error()}}}
	}
	if err := ValidateMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ValidateMessage checks an already-constructed message value.
func ValidateMessage(msg AgentMessage) error {
	if issues := checkStruct(msg); len(issues) > 0 {
		return &SchemaError{Union: "message", Issues: issues}
	}
	return nil
}

// Model union.

func modelTypeNames() []string {
	return []string{string(ModelTypeOpenAI), string(ModelTypeAzureOpenAI)}
}

func knownModelType(t ModelType) bool {
	return t == ModelTypeOpenAI || t == ModelTypeAzureOpenAI
}

// DecodeModel narrows raw JSON to a model config variant.
func DecodeModel(raw []byte) (*ModelConfig, error) {
	if _, err := discriminant(raw, "model config", "model_type"); err != nil {
		return nil, err
	}
	var cfg ModelConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &SchemaError{Union: "model config", Issues: []Issue{{Message: err.Error()}}}
	}
	if err := ValidateModel(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateModel checks a model config, including the fields the Azure
// variant additionally requires.
func ValidateModel(cfg *ModelConfig) error {
	if !knownModelType(cfg.ModelType) {
		return &UnknownVariantError{Union: "model config", Field: "model_type", Value: string(cfg.ModelType), Accepted: modelTypeNames()}
	}
	if issues := validateModel(cfg, ""); len(issues) > 0 {
		return &SchemaError{Union: "model config", Issues: issues}
	}
	return nil
}

func validateModel(cfg *ModelConfig, prefix string) []Issue {
	issues := prefixIssues(checkStruct(cfg), prefix)
	issues = append(issues, checkComponentType(cfg.ComponentType, ComponentTypeModel, prefix)...)

	switch cfg.ModelType {
	case ModelTypeOpenAI:
	case ModelTypeAzureOpenAI:
		azure := []struct {
			path  string
			value string
		}{
			{"azure_deployment", cfg.AzureDeployment},
			{"api_version", cfg.APIVersion},
			{"azure_endpoint", cfg.AzureEndpoint},
			{"azure_ad_token_provider", cfg.AzureADTokenProvider},
		}
		for _, f := range azure {
			if f.value == "" {
				issues = append(issues, Issue{Path: prefix + f.path, Message: "missing required field"})
			}
		}
	default:
		issues = append(issues, unknownIssue(prefix+"model_type", string(cfg.ModelType), modelTypeNames()))
	}
	return issues
}

// Tool union.

func toolTypeNames() []string {
	return []string{string(ToolTypePythonFunction)}
}

// DecodeTool narrows raw JSON to a tool config.
func DecodeTool(raw []byte) (*ToolConfig, error) {
	if _, err := discriminant(raw, "tool config", "tool_type"); err != nil {
		return nil, err
	}
	var cfg ToolConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &SchemaError{Union: "tool config", Issues: []Issue{{Message: err.Error()}}}
	}
	if err := ValidateTool(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateTool checks a tool config.
func ValidateTool(cfg *ToolConfig) error {
	if cfg.ToolType != ToolTypePythonFunction {
		return &UnknownVariantError{Union: "tool config", Field: "tool_type", Value: string(cfg.ToolType), Accepted: toolTypeNames()}
	}
	if issues := validateTool(cfg, ""); len(issues) > 0 {
		return &SchemaError{Union: "tool config", Issues: issues}
	}
	return nil
}

func validateTool(cfg *ToolConfig, prefix string) []Issue {
	issues := prefixIssues(checkStruct(cfg), prefix)
	issues = append(issues, checkComponentType(cfg.ComponentType, ComponentTypeTool, prefix)...)
	if cfg.ToolType != ToolTypePythonFunction {
		issues = append(issues, unknownIssue(prefix+"tool_type", string(cfg.ToolType), toolTypeNames()))
	}
	return issues
}

// Termination union.

func terminationTypeNames() []string {
	return []string{
		string(TerminationTypeMaxMessage), string(TerminationTypeTextMention), string(TerminationTypeCombination),
	}
}

func knownTerminationType(t TerminationType) bool {
	switch t {
	case TerminationTypeMaxMessage, TerminationTypeTextMention, TerminationTypeCombination:
		return true
	}
	return false
}

// DecodeTermination narrows raw JSON to a termination config variant,
// recursing through combinations up to DefaultMaxDepth.
func DecodeTermination(raw []byte) (*TerminationConfig, error) {
	if _, err := discriminant(raw, "termination config", "termination_type"); err != nil {
		return nil, err
	}
	var cfg TerminationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &SchemaError{Union: "termination config", Issues: []Issue{{Message: err.Error()}}}
	}
	if err := ValidateTermination(&cfg, DefaultMaxDepth); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateTermination checks a termination config tree. Nested combination
// errors carry their full path; exceeding maxDepth yields DepthExceededError.
func ValidateTermination(cfg *TerminationConfig, maxDepth int) error {
	if !knownTerminationType(cfg.TerminationType) {
		return &UnknownVariantError{Union: "termination config", Field: "termination_type", Value: string(cfg.TerminationType), Accepted: terminationTypeNames()}
	}
	issues, err := validateTermination(cfg, "", 0, maxDepth)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return &SchemaError{Union: "termination config", Issues: issues}
	}
	return nil
}

func validateTermination(cfg *TerminationConfig, prefix string, depth, maxDepth int) ([]Issue, error) {
	if depth > maxDepth {
		return nil, &DepthExceededError{Path: strings.TrimSuffix(prefix, "."), MaxDepth: maxDepth}
	}

	issues := checkComponentType(cfg.ComponentType, ComponentTypeTermination, prefix)
	switch cfg.TerminationType {
	case TerminationTypeMaxMessage:
		if cfg.MaxMessages <= 0 {
			issues = append(issues, Issue{Path: prefix + "max_messages", Message: "must be greater than 0"})
		}
	case TerminationTypeTextMention:
		if cfg.Text == "" {
			issues = append(issues, Issue{Path: prefix + "text", Message: "missing required field"})
		}
	case TerminationTypeCombination:
		if cfg.Operator != OperatorAnd && cfg.Operator != OperatorOr {
			issues = append(issues, Issue{Path: prefix + "operator", Message: `must be "and" or "or"`})
		}
		if len(cfg.Conditions) == 0 {
			issues = append(issues, Issue{Path: prefix + "conditions", Message: "must not be empty"})
		}
		for i := range cfg.Conditions {
			sub, err := validateTermination(&cfg.Conditions[i], fmt.Sprintf("%sconditions[%d].", prefix, i), depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			issues = append(issues, sub...)
		}
	default:
		issues = append(issues, unknownIssue(prefix+"termination_type", string(cfg.TerminationType), terminationTypeNames()))
	}
	return issues, nil
}

// Agent union.

func agentTypeNames() []string {
	return []string{string(AgentTypeAssistant), string(AgentTypeUserProxy)}
}

func knownAgentType(t AgentType) bool {
	return t == AgentTypeAssistant || t == AgentTypeUserProxy
}

// DecodeAgent narrows raw JSON to an agent config variant.
func DecodeAgent(raw []byte) (*AgentConfig, error) {
	if _, err := discriminant(raw, "agent config", "agent_type"); err != nil {
		return nil, err
	}
	var cfg AgentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &SchemaError{Union: "agent config", Issues: []Issue{{Message: err.Error()}}}
	}
	if err := ValidateAgent(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateAgent checks an agent config, including its nested model client
// and tools.
func ValidateAgent(cfg *AgentConfig) error {
	if !knownAgentType(cfg.AgentType) {
		return &UnknownVariantError{Union: "agent config", Field: "agent_type", Value: string(cfg.AgentType), Accepted: agentTypeNames()}
	}
	if issues := validateAgent(cfg, ""); len(issues) > 0 {
		return &SchemaError{Union: "agent config", Issues: issues}
	}
	return nil
}

func validateAgent(cfg *AgentConfig, prefix string) []Issue {
	issues := prefixIssues(checkStruct(cfg), prefix)
	issues = append(issues, checkComponentType(cfg.ComponentType, ComponentTypeAgent, prefix)...)
	if !knownAgentType(cfg.AgentType) {
		issues = append(issues, unknownIssue(prefix+"agent_type", string(cfg.AgentType), agentTypeNames()))
	}
	if cfg.ModelClient != nil {
		issues = append(issues, validateModel(cfg.ModelClient, prefix+"model_client.")...)
	}
	for i := range cfg.Tools {
		issues = append(issues, validateTool(&cfg.Tools[i], fmt.Sprintf("%stools[%d].", prefix, i))...)
	}
	return issues
}

// Team union.

func teamTypeNames() []string {
	return []string{string(TeamTypeRoundRobin), string(TeamTypeSelector)}
}

func knownTeamType(t TeamType) bool {
	return t == TeamTypeRoundRobin || t == TeamTypeSelector
}

// DecodeTeam narrows raw JSON to a team config variant using the default
// termination nesting cap.
func DecodeTeam(raw []byte) (*TeamConfig, error) {
	return DecodeTeamDepth(raw, DefaultMaxDepth)
}

// DecodeTeamDepth is DecodeTeam with an explicit termination nesting cap.
func DecodeTeamDepth(raw []byte, maxDepth int) (*TeamConfig, error) {
	if _, err := discriminant(raw, "team config", "team_type"); err != nil {
		return nil, err
	}
	var cfg TeamConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &SchemaError{Union: "team config", Issues: []Issue{{Message: err.Error()}}}
	}
	if err := ValidateTeamDepth(&cfg, maxDepth); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateTeam checks a team config and everything nested under it:
// participants, their model clients and tools, and the termination tree.
func ValidateTeam(cfg *TeamConfig) error {
	return ValidateTeamDepth(cfg, DefaultMaxDepth)
}

// ValidateTeamDepth is ValidateTeam with an explicit termination nesting cap.
func ValidateTeamDepth(cfg *TeamConfig, maxDepth int) error {
	if !knownTeamType(cfg.TeamType) {
		return &UnknownVariantError{Union: "team config", Field: "team_type", Value: string(cfg.TeamType), Accepted: teamTypeNames()}
	}

	issues := checkStruct(cfg)
	issues = append(issues, checkComponentType(cfg.ComponentType, ComponentTypeTeam, "")...)

	if len(cfg.Participants) == 0 {
		issues = append(issues, Issue{Path: "participants", Message: "must not be empty"})
	}
	for i := range cfg.Participants {
		issues = append(issues, validateAgent(&cfg.Participants[i], fmt.Sprintf("participants[%d].", i))...)
	}

	if cfg.TerminationCondition != nil {
		sub, err := validateTermination(cfg.TerminationCondition, "termination_condition.", 0, maxDepth)
		if err != nil {
			return err
		}
		issues = append(issues, sub...)
	}

	if cfg.TeamType == TeamTypeSelector {
		if cfg.SelectorPrompt == "" {
			issues = append(issues, Issue{Path: "selector_prompt", Message: "missing required field"})
		}
		if cfg.ModelClient == nil {
			issues = append(issues, Issue{Path: "model_client", Message: "missing required field"})
		}
	}
	if cfg.ModelClient != nil {
		issues = append(issues, validateModel(cfg.ModelClient, "model_client.")...)
	}

	if len(issues) > 0 {
		return &SchemaError{Union: "team config", Issues: issues}
	}
	return nil
}
