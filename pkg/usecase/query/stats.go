package query

import (
	"context"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Stats summarizes the index.
func (x *UseCase) Stats(ctx context.Context) (*model.IndexStats, error) {
	stats, err := x.repo.Stats(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to collect index stats")
	}
	return stats, nil
}
