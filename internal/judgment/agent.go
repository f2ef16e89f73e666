package judgment

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// AgentModel adapts a go-agents agent to Model. A fresh agent is created per
// call so concurrent roles never share client state.
type AgentModel struct {
	cfg gaconfig.AgentConfig
}

func NewAgentModel(cfg gaconfig.AgentConfig) *AgentModel {
	return &AgentModel{cfg: cfg}
}

func (m *AgentModel) Chat(ctx context.Context, prompt string) (string, error) {
	a, err := agent.New(&m.cfg)
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}

	resp, err := a.Chat(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	return resp.Content(), nil
}
