package query

import (
	"context"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// FindSimilar returns the nearest neighbors of an already indexed
// record, excluding the record itself. An unknown URI is a NotFound
// error; an index holding only the anchor record yields an empty
// result.
func (x *UseCase) FindSimilar(ctx context.Context, uri model.RecordURI, limit int) ([]*model.ScoredRecord, error) {
	if err := uri.Validate(); err != nil {
		return nil, err
	}
	if limit < 0 || limit > maxLimit {
		return nil, goerr.New("limit out of range",
			goerr.T(model.TagInvalidArgument),
			goerr.V("limit", limit), goerr.V("max", maxLimit))
	}
	limit = clampLimit(limit)

	anchor, err := x.repo.GetRecord(ctx, uri)
	if err != nil {
		return nil, err
	}

	// Over-fetch by one: the anchor ranks first against its own vector
	// and is dropped below.
	results, err := x.repo.SearchSimilar(ctx, anchor.Embedding, limit+1, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "similarity search failed")
	}

	out := make([]*model.ScoredRecord, 0, limit)
	for _, r := range results {
		if r.URI == uri {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
