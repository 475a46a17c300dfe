package repository

import (
	"context"
	"time"

	"github.com/comind-network/cogindex/pkg/model"
)

// SearchFilter restricts similarity search to a subset of the index.
// Zero values mean "no restriction". All predicates are applied before
// ranking.
type SearchFilter struct {
	Collections []string
	Owner       string
	After       time.Time
	Before      time.Time
}

// Match reports whether the record passes every predicate of the filter.
func (f *SearchFilter) Match(r *model.Record) bool {
	if f == nil {
		return true
	}
	if f.Owner != "" && r.Owner != f.Owner {
		return false
	}
	if len(f.Collections) > 0 {
		found := false
		for _, c := range f.Collections {
			if r.Collection == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.After.IsZero() && r.CreatedAt.Before(f.After) {
		return false
	}
	if !f.Before.IsZero() && !r.CreatedAt.Before(f.Before) {
		return false
	}
	return true
}

// Repository defines the durable store shared by the ingestion worker
// (writes) and the query surface (reads).
type Repository interface {
	// PutRecord upserts a record keyed by its URI
	PutRecord(ctx context.Context, record *model.Record) error

	// GetRecord retrieves a record by URI
	GetRecord(ctx context.Context, uri model.RecordURI) (*model.Record, error)

	// DeleteRecord removes a record; deleting an absent URI is a no-op
	DeleteRecord(ctx context.Context, uri model.RecordURI) error

	// ListRecords pages through all records ordered by CreatedAt descending
	ListRecords(ctx context.Context, offset, limit int) ([]*model.Record, error)

	// SearchSimilar ranks records passing the filter by cosine similarity
	// to the query vector. Ties break by CreatedAt descending, then URI
	// ascending.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, filter *SearchFilter) ([]*model.ScoredRecord, error)

	// PutAgent upserts an agent registration keyed by owner
	PutAgent(ctx context.Context, agent *model.Agent) error

	// GetAgent retrieves an agent registration by owner
	GetAgent(ctx context.Context, owner string) (*model.Agent, error)

	// ListAgents returns all registrations joined with record counts
	ListAgents(ctx context.Context) ([]*model.AgentActivity, error)

	// GetCursor returns the committed stream position for a consumer,
	// or zero when none has been committed
	GetCursor(ctx context.Context, consumer string) (int64, error)

	// PutCursor commits a stream position for a consumer
	PutCursor(ctx context.Context, consumer string, cursor int64) error

	// Stats summarizes the index
	Stats(ctx context.Context) (*model.IndexStats, error)
}
