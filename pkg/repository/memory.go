package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/comind-network/cogindex/pkg/embedding"
	"github.com/comind-network/cogindex/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Memory is an in-process Repository. It is the reference
// implementation of the search ranking contract (exact linear scan) and
// backs local deployments and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[model.RecordURI]*model.Record
	agents  map[string]*model.Agent
	cursors map[string]int64
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		records: make(map[model.RecordURI]*model.Record),
		agents:  make(map[string]*model.Agent),
		cursors: make(map[string]int64),
	}
}

func cloneRecord(r *model.Record) *model.Record {
	c := *r
	return &c
}

func cloneAgent(a *model.Agent) *model.Agent {
	c := *a
	c.Collections = append([]model.CollectionPattern(nil), a.Collections...)
	return &c
}

func (m *Memory) PutRecord(ctx context.Context, record *model.Record) error {
	if err := record.URI.Validate(); err != nil {
		return err
	}
	if len(record.Embedding) == 0 {
		return goerr.New("record has no embedding", goerr.V("uri", record.URI))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.URI] = cloneRecord(record)
	return nil
}

func (m *Memory) GetRecord(ctx context.Context, uri model.RecordURI) (*model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[uri]
	if !ok {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "no such record", goerr.V("uri", uri))
	}
	return cloneRecord(record), nil
}

func (m *Memory) DeleteRecord(ctx context.Context, uri model.RecordURI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, uri)
	return nil
}

func (m *Memory) ListRecords(ctx context.Context, offset, limit int) ([]*model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*model.Record, 0, len(m.records))
	for _, r := range m.records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].URI < all[j].URI
	})

	if offset >= len(all) {
		return []*model.Record{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]*model.Record, len(all))
	for i, r := range all {
		out[i] = cloneRecord(r)
	}
	return out, nil
}

func (m *Memory) SearchSimilar(ctx context.Context, vec []float32, limit int, filter *SearchFilter) ([]*model.ScoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var scored []*model.ScoredRecord
	for _, r := range m.records {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "search cancelled")
		}
		if !filter.Match(r) {
			continue
		}
		scored = append(scored, &model.ScoredRecord{
			Record: cloneRecord(r),
			Score:  embedding.Cosine(vec, r.Embedding),
		})
	}

	SortScored(scored)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// SortScored orders results by score descending, breaking ties by
// CreatedAt descending and then URI ascending so rankings are
// deterministic across backends.
func SortScored(scored []*model.ScoredRecord) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].CreatedAt.Equal(scored[j].CreatedAt) {
			return scored[i].CreatedAt.After(scored[j].CreatedAt)
		}
		return scored[i].URI < scored[j].URI
	})
}

func (m *Memory) PutAgent(ctx context.Context, agent *model.Agent) error {
	if agent.Owner == "" {
		return goerr.New("agent owner is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.Owner] = cloneAgent(agent)
	return nil
}

func (m *Memory) GetAgent(ctx context.Context, owner string) (*model.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, ok := m.agents[owner]
	if !ok {
		return nil, goerr.Wrap(model.ErrAgentNotFound, "no such agent", goerr.V("owner", owner))
	}
	return cloneAgent(agent), nil
}

func (m *Memory) ListAgents(ctx context.Context) ([]*model.AgentActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.AgentActivity, 0, len(m.agents))
	for owner, agent := range m.agents {
		activity := &model.AgentActivity{Agent: cloneAgent(agent)}
		for _, r := range m.records {
			if r.Owner != owner {
				continue
			}
			activity.RecordCount++
			if r.CreatedAt.After(activity.LastRecordAt) {
				activity.LastRecordAt = r.CreatedAt
			}
		}
		out = append(out, activity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out, nil
}

func (m *Memory) GetCursor(ctx context.Context, consumer string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursors[consumer], nil
}

func (m *Memory) PutCursor(ctx context.Context, consumer string, cursor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[consumer] = cursor
	return nil
}

func (m *Memory) Stats(ctx context.Context) (*model.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &model.IndexStats{
		TotalRecords: int64(len(m.records)),
		ByCollection: make(map[string]int64),
	}
	for _, r := range m.records {
		stats.ByCollection[r.Collection]++
		if r.IndexedAt.After(stats.LastIndexedAt) {
			stats.LastIndexedAt = r.IndexedAt
		}
	}
	for owner := range m.agents {
		stats.Owners = append(stats.Owners, owner)
	}
	sort.Strings(stats.Owners)
	return stats, nil
}
