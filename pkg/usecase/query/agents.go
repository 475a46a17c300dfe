package query

import (
	"context"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// ListAgents returns every registered agent with its indexing activity.
func (x *UseCase) ListAgents(ctx context.Context) ([]*model.AgentActivity, error) {
	agents, err := x.repo.ListAgents(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list agents")
	}
	return agents, nil
}
