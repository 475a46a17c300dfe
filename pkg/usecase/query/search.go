package query

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/comind-network/cogindex/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
)

// SearchInput is a natural-language search request.
type SearchInput struct {
	Query       string
	Limit       int
	Collections []string
	Owner       string
	After       time.Time
	Before      time.Time
}

func (x *SearchInput) validate() error {
	if strings.TrimSpace(x.Query) == "" {
		return goerr.New("query must not be empty", goerr.T(model.TagInvalidArgument))
	}
	if utf8.RuneCountInString(x.Query) > maxQueryLen {
		return goerr.New("query too long",
			goerr.T(model.TagInvalidArgument),
			goerr.V("max", maxQueryLen))
	}
	if x.Limit < 0 || x.Limit > maxLimit {
		return goerr.New("limit out of range",
			goerr.T(model.TagInvalidArgument),
			goerr.V("limit", x.Limit), goerr.V("max", maxLimit))
	}
	if !x.After.IsZero() && !x.Before.IsZero() && x.Before.Before(x.After) {
		return goerr.New("before must not precede after", goerr.T(model.TagInvalidArgument))
	}
	return nil
}

// Search embeds the query text and returns the most similar records,
// best first. An empty index yields an empty result, not an error.
func (x *UseCase) Search(ctx context.Context, input *SearchInput) ([]*model.ScoredRecord, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	vec, err := x.embedder.Embed(ctx, input.Query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	filter := &repository.SearchFilter{
		Collections: input.Collections,
		Owner:       input.Owner,
		After:       input.After,
		Before:      input.Before,
	}
	results, err := x.repo.SearchSimilar(ctx, vec, clampLimit(input.Limit), filter)
	if err != nil {
		return nil, goerr.Wrap(err, "similarity search failed")
	}
	return results, nil
}
