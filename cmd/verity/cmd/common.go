package cmd

import (
	"github.com/hugo-lorenzo-mato/verity-ai/internal/agent"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/config"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/events"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/links"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/logging"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/service/orchestrator"
)

// buildAgent selects the agent binding from configuration.
func buildAgent(cfg *config.Config, log *logging.Logger) (core.AgentCapability, error) {
	if cfg.Agent.Mock {
		return agent.NewMock(), nil
	}
	return agent.NewHosted(agent.HostedConfig{
		Endpoint: cfg.Agent.Endpoint,
		APIKey:   cfg.Agent.APIKey,
		Models:   cfg.Agent.Models,
		Timeout:  cfg.Agent.Timeout,
	}, log)
}

// buildValidator wires the link validator, attaching the agent when
// relevance checking is enabled.
func buildValidator(cfg *config.Config, capability core.AgentCapability, log *logging.Logger) *links.Validator {
	opts := []links.Option{
		links.WithTimeout(cfg.Links.ProbeTimeout),
		links.WithLogger(log),
	}
	if cfg.Links.Relevance {
		opts = append(opts, links.WithAgent(capability))
	}
	return links.New(opts...)
}

// buildOrchestrator assembles the attempt loop for one worker.
func buildOrchestrator(cfg *config.Config, capability core.AgentCapability, validator *links.Validator, log *logging.Logger, bus *events.Bus) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(log),
	}
	if bus != nil {
		opts = append(opts, orchestrator.WithBus(bus))
	}
	if cfg.Links.Relevance {
		opts = append(opts, orchestrator.WithRelevanceChecking())
	}
	return orchestrator.New(capability, validator, opts...)
}
