// Package query implements the read-side operations of the index:
// semantic search, neighbor lookup, agent listing and index stats.
package query

import (
	"github.com/comind-network/cogindex/pkg/embedding"
	"github.com/comind-network/cogindex/pkg/repository"
)

const (
	maxQueryLen  = 8192
	maxLimit     = 50
	defaultLimit = 10
)

// UseCase serves queries against the index. It owns input validation;
// repositories assume validated arguments.
type UseCase struct {
	repo     repository.Repository
	embedder embedding.Embedder
}

// New creates a query use case over the given store and embedder.
func New(repo repository.Repository, embedder embedding.Embedder) *UseCase {
	return &UseCase{
		repo:     repo,
		embedder: embedder,
	}
}

// clampLimit normalizes a requested result count to the allowed range.
// Zero means "use the default".
func clampLimit(limit int) int {
	if limit == 0 {
		return defaultLimit
	}
	return limit
}
