// Package gallery seeds a fresh store with ready-to-use example teams so
// the UI has something to offer before the user builds their own.
package gallery

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tmarkou/agora/internal/schema"
	"github.com/tmarkou/agora/internal/store"
)

// Seed inserts the example teams for userID unless that user already owns
// teams. It returns the number of teams created.
func Seed(s *store.Store, userID string, log *slog.Logger) (int, error) {
	existing, err := s.ListTeams(userID)
	if err != nil {
		return 0, fmt.Errorf("check existing teams: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	teams := []*schema.TeamConfig{
		DefaultTeam(),
		TravelTeam(),
	}

	created := 0
	for _, cfg := range teams {
		team := &store.Team{ID: uuid.NewString(), UserID: userID, Config: cfg}
		if err := s.SaveTeam(team); err != nil {
			return created, fmt.Errorf("seed team %s: %w", cfg.Name, err)
		}
		created++
	}

	log.Info("gallery seeded", "user", userID, "teams", created)
	return created, nil
}

func openAIModel(model string) *schema.ModelConfig {
	return &schema.ModelConfig{
		ComponentType: schema.ComponentTypeModel,
		Model:         model,
		ModelType:     schema.ModelTypeOpenAI,
		APIKey:        "secret:OPENAI_API_KEY",
	}
}

// DefaultTeam is a two-agent round robin: an assistant paired with a user
// proxy so runs can pause for human input.
func DefaultTeam() *schema.TeamConfig {
	return &schema.TeamConfig{
		ComponentType: schema.ComponentTypeTeam,
		Name:          "default_team",
		TeamType:      schema.TeamTypeRoundRobin,
		Participants: []schema.AgentConfig{
			{
				ComponentType: schema.ComponentTypeAgent,
				Name:          "assistant_agent",
				AgentType:     schema.AgentTypeAssistant,
				Description:   "A general purpose assistant that solves tasks step by step.",
				SystemMessage: "You are a helpful assistant. Solve tasks carefully. When the task is done respond with TERMINATE.",
				ModelClient:   openAIModel("gpt-4o"),
				Tools: []schema.ToolConfig{
					{
						ComponentType: schema.ComponentTypeTool,
						Name:          "fetch_url",
						Description:   "Fetch the text content of a web page.",
						ToolType:      schema.ToolTypePythonFunction,
						Content:       "def fetch_url(url: str) -> str:\n    import urllib.request\n    with urllib.request.urlopen(url) as r:\n        return r.read().decode()",
					},
				},
			},
			{
				ComponentType: schema.ComponentTypeAgent,
				Name:          "user_proxy",
				AgentType:     schema.AgentTypeUserProxy,
				Description:   "Represents the human user in the conversation.",
			},
		},
		TerminationCondition: &schema.TerminationConfig{
			ComponentType:   schema.ComponentTypeTermination,
			TerminationType: schema.TerminationTypeCombination,
			Operator:        schema.OperatorOr,
			Conditions: []schema.TerminationConfig{
				{
					ComponentType:   schema.ComponentTypeTermination,
					TerminationType: schema.TerminationTypeTextMention,
					Text:            "TERMINATE",
				},
				{
					ComponentType:   schema.ComponentTypeTermination,
					TerminationType: schema.TerminationTypeMaxMessage,
					MaxMessages:     10,
				},
			},
		},
	}
}

// TravelTeam is a selector group chat where a model picks the next planner
// speaker, mirroring a travel planning workflow.
func TravelTeam() *schema.TeamConfig {
	return &schema.TeamConfig{
		ComponentType:  schema.ComponentTypeTeam,
		Name:           "travel_planning_team",
		TeamType:       schema.TeamTypeSelector,
		SelectorPrompt: "You are coordinating a travel planning conversation. Given the history, select the next speaker from {participants}.",
		ModelClient:    openAIModel("gpt-4o-mini"),
		Participants: []schema.AgentConfig{
			{
				ComponentType: schema.ComponentTypeAgent,
				Name:          "planner_agent",
				AgentType:     schema.AgentTypeAssistant,
				Description:   "Plans the overall trip itinerary.",
				SystemMessage: "You are a travel planner. Produce a day by day itinerary for the requested trip.",
				ModelClient:   openAIModel("gpt-4o"),
			},
			{
				ComponentType: schema.ComponentTypeAgent,
				Name:          "local_agent",
				AgentType:     schema.AgentTypeAssistant,
				Description:   "Suggests authentic local activities and places.",
				SystemMessage: "You suggest local activities and hidden gems for the destination.",
				ModelClient:   openAIModel("gpt-4o"),
			},
			{
				ComponentType: schema.ComponentTypeAgent,
				Name:          "language_agent",
				AgentType:     schema.AgentTypeAssistant,
				Description:   "Gives language and communication tips for the destination.",
				SystemMessage: "You provide key phrases and communication tips for the destination language.",
				ModelClient:   openAIModel("gpt-4o"),
			},
			{
				ComponentType: schema.ComponentTypeAgent,
				Name:          "travel_summary_agent",
				AgentType:     schema.AgentTypeAssistant,
				Description:   "Integrates all suggestions into a final plan.",
				SystemMessage: "You integrate every suggestion into a complete final plan. When the plan is complete respond with TERMINATE.",
				ModelClient:   openAIModel("gpt-4o"),
			},
		},
		TerminationCondition: &schema.TerminationConfig{
			ComponentType:   schema.ComponentTypeTermination,
			TerminationType: schema.TerminationTypeCombination,
			Operator:        schema.OperatorOr,
			Conditions: []schema.TerminationConfig{
				{
					ComponentType:   schema.ComponentTypeTermination,
					TerminationType: schema.TerminationTypeTextMention,
					Text:            "TERMINATE",
				},
				{
					ComponentType:   schema.ComponentTypeTermination,
					TerminationType: schema.TerminationTypeMaxMessage,
					MaxMessages:     25,
				},
			},
		},
	}
}
