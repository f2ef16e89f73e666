package config

import (
	"fmt"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentName         = "GEOGOV_AGENT_NAME"
	EnvAgentProviderName = "GEOGOV_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "GEOGOV_AGENT_BASE_URL"
	EnvAgentToken        = "GEOGOV_AGENT_TOKEN"
	EnvAgentDeployment   = "GEOGOV_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "GEOGOV_AGENT_API_VERSION"
	EnvAgentAuthType     = "GEOGOV_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "GEOGOV_AGENT_MODEL_NAME"
)

// FinalizeAgent fills a go-agents AgentConfig from the go-agents defaults,
// applies GEOGOV_AGENT_* overrides and validates the result.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults

	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}

	envString(EnvAgentName, &c.Name)
	envString(EnvAgentProviderName, &c.Provider.Name)
	envString(EnvAgentBaseURL, &c.Provider.BaseURL)
	envString(EnvAgentModelName, &c.Model.Name)

	// Provider credentials never live in config files.
	for env, key := range map[string]string{
		EnvAgentToken:      "token",
		EnvAgentDeployment: "deployment",
		EnvAgentAPIVersion: "api_version",
		EnvAgentAuthType:   "auth_type",
	} {
		if v := os.Getenv(env); v != "" {
			c.Provider.Options[key] = v
		}
	}

	switch {
	case c.Name == "":
		return fmt.Errorf("name required")
	case c.Provider.Name == "":
		return fmt.Errorf("provider name required")
	case c.Model.Name == "":
		return fmt.Errorf("model name required")
	}
	return nil
}
