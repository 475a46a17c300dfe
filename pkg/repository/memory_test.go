package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/comind-network/cogindex/pkg/repository"
)

func newRecord(owner, collection, rkey, content string, vec []float32, createdAt time.Time) *model.Record {
	return &model.Record{
		URI:        model.NewRecordURI(owner, collection, rkey),
		Owner:      owner,
		Collection: collection,
		Content:    content,
		Embedding:  vec,
		CreatedAt:  createdAt,
		IndexedAt:  time.Now(),
	}
}

func TestMemoryPutRecordIdempotent(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	record := newRecord("did:plc:a", "network.comind.thought", "r1", "first", []float32{1, 0}, base)
	gt.NoError(t, repo.PutRecord(ctx, record))

	// Re-indexing the same URI replaces the row instead of adding one.
	record2 := newRecord("did:plc:a", "network.comind.thought", "r1", "second", []float32{0, 1}, base)
	gt.NoError(t, repo.PutRecord(ctx, record2))

	stats, err := repo.Stats(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stats.TotalRecords, int64(1))

	got, err := repo.GetRecord(ctx, record.URI)
	gt.NoError(t, err)
	gt.Equal(t, got.Content, "second")
}

func TestMemoryPutRecordRejectsInvalid(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	bad := &model.Record{URI: "no-scheme", Embedding: []float32{1}}
	gt.Error(t, repo.PutRecord(ctx, bad))

	noVec := newRecord("did:plc:a", "network.comind.thought", "r1", "text", nil, time.Now())
	gt.Error(t, repo.PutRecord(ctx, noVec))
}

func TestMemoryGetRecordNotFound(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	_, err := repo.GetRecord(ctx, "at://did:plc:a/network.comind.thought/missing")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.TagNotFound))
}

func TestMemoryDeleteRecord(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	record := newRecord("did:plc:a", "network.comind.thought", "r1", "text", []float32{1}, time.Now())
	gt.NoError(t, repo.PutRecord(ctx, record))
	gt.NoError(t, repo.DeleteRecord(ctx, record.URI))

	_, err := repo.GetRecord(ctx, record.URI)
	gt.Error(t, err)

	// Deleting an absent URI is a no-op.
	gt.NoError(t, repo.DeleteRecord(ctx, record.URI))
}

func TestMemorySearchSimilar(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	records := []*model.Record{
		newRecord("did:plc:a", "network.comind.thought", "r1", "close", []float32{1, 0.1}, base),
		newRecord("did:plc:a", "network.comind.claim", "r2", "far", []float32{0, 1}, base.Add(time.Hour)),
		newRecord("did:plc:b", "network.comind.thought", "r3", "closest", []float32{1, 0}, base.Add(2*time.Hour)),
	}
	for _, r := range records {
		gt.NoError(t, repo.PutRecord(ctx, r))
	}

	query := []float32{1, 0}

	t.Run("ranks by similarity", func(t *testing.T) {
		results, err := repo.SearchSimilar(ctx, query, 10, nil)
		gt.NoError(t, err)
		gt.A(t, results).Length(3)
		gt.Equal(t, results[0].Content, "closest")
		gt.Equal(t, results[1].Content, "close")
		gt.Equal(t, results[2].Content, "far")
	})

	t.Run("respects limit", func(t *testing.T) {
		results, err := repo.SearchSimilar(ctx, query, 1, nil)
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
		gt.Equal(t, results[0].Content, "closest")
	})

	t.Run("filters by owner", func(t *testing.T) {
		results, err := repo.SearchSimilar(ctx, query, 10, &repository.SearchFilter{Owner: "did:plc:b"})
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
		gt.Equal(t, results[0].Owner, "did:plc:b")
	})

	t.Run("filters by collection", func(t *testing.T) {
		results, err := repo.SearchSimilar(ctx, query, 10, &repository.SearchFilter{
			Collections: []string{"network.comind.claim"},
		})
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
		gt.Equal(t, results[0].Collection, "network.comind.claim")
	})

	t.Run("filters by time range", func(t *testing.T) {
		results, err := repo.SearchSimilar(ctx, query, 10, &repository.SearchFilter{
			After:  base.Add(30 * time.Minute),
			Before: base.Add(90 * time.Minute),
		})
		gt.NoError(t, err)
		gt.A(t, results).Length(1)
		gt.Equal(t, results[0].Content, "far")
	})

	t.Run("empty index yields empty result", func(t *testing.T) {
		empty := repository.NewMemory()
		results, err := empty.SearchSimilar(ctx, query, 10, nil)
		gt.NoError(t, err)
		gt.A(t, results).Length(0)
	})
}

func TestMemorySearchTieBreak(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	// All three score identically against the query; ordering falls to
	// CreatedAt descending then URI ascending.
	early := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	vec := []float32{1, 0}

	gt.NoError(t, repo.PutRecord(ctx, newRecord("did:plc:a", "ns.x", "b", "old", vec, early)))
	gt.NoError(t, repo.PutRecord(ctx, newRecord("did:plc:a", "ns.x", "c", "new-c", vec, late)))
	gt.NoError(t, repo.PutRecord(ctx, newRecord("did:plc:a", "ns.x", "a", "new-a", vec, late)))

	results, err := repo.SearchSimilar(ctx, vec, 10, nil)
	gt.NoError(t, err)
	gt.A(t, results).Length(3)
	gt.Equal(t, results[0].Content, "new-a")
	gt.Equal(t, results[1].Content, "new-c")
	gt.Equal(t, results[2].Content, "old")
}

func TestMemoryListRecords(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, rkey := range []string{"r1", "r2", "r3"} {
		r := newRecord("did:plc:a", "ns.x", rkey, rkey, []float32{1}, base.Add(time.Duration(i)*time.Hour))
		gt.NoError(t, repo.PutRecord(ctx, r))
	}

	page, err := repo.ListRecords(ctx, 0, 2)
	gt.NoError(t, err)
	gt.A(t, page).Length(2)
	gt.Equal(t, page[0].Content, "r3")

	rest, err := repo.ListRecords(ctx, 2, 2)
	gt.NoError(t, err)
	gt.A(t, rest).Length(1)
	gt.Equal(t, rest[0].Content, "r1")

	none, err := repo.ListRecords(ctx, 10, 2)
	gt.NoError(t, err)
	gt.A(t, none).Length(0)
}

func TestMemoryAgents(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	agent := &model.Agent{
		Owner:        "did:plc:a",
		DisplayName:  "watcher",
		Collections:  []model.CollectionPattern{"network.comind.*"},
		FirstSeenAt:  time.Now(),
		LastActiveAt: time.Now(),
	}
	gt.NoError(t, repo.PutAgent(ctx, agent))

	got, err := repo.GetAgent(ctx, "did:plc:a")
	gt.NoError(t, err)
	gt.Equal(t, got.DisplayName, "watcher")

	_, err = repo.GetAgent(ctx, "did:plc:unknown")
	gt.Error(t, err)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	gt.NoError(t, repo.PutRecord(ctx, newRecord("did:plc:a", "network.comind.thought", "r1", "x", []float32{1}, base)))
	gt.NoError(t, repo.PutRecord(ctx, newRecord("did:plc:a", "network.comind.claim", "r2", "y", []float32{1}, base.Add(time.Hour))))

	agents, err := repo.ListAgents(ctx)
	gt.NoError(t, err)
	gt.A(t, agents).Length(1)
	gt.Equal(t, agents[0].RecordCount, int64(2))
	gt.Equal(t, agents[0].LastRecordAt, base.Add(time.Hour))
}

func TestMemoryCursor(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	cursor, err := repo.GetCursor(ctx, "ingest")
	gt.NoError(t, err)
	gt.Equal(t, cursor, int64(0))

	gt.NoError(t, repo.PutCursor(ctx, "ingest", 1234567890))

	cursor, err = repo.GetCursor(ctx, "ingest")
	gt.NoError(t, err)
	gt.Equal(t, cursor, int64(1234567890))

	// Consumers do not share positions.
	other, err := repo.GetCursor(ctx, "backfill")
	gt.NoError(t, err)
	gt.Equal(t, other, int64(0))
}

func TestMemoryStats(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	gt.NoError(t, repo.PutAgent(ctx, &model.Agent{Owner: "did:plc:a"}))

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	gt.NoError(t, repo.PutRecord(ctx, newRecord("did:plc:a", "network.comind.thought", "r1", "x", []float32{1}, base)))
	gt.NoError(t, repo.PutRecord(ctx, newRecord("did:plc:a", "network.comind.thought", "r2", "y", []float32{1}, base)))
	gt.NoError(t, repo.PutRecord(ctx, newRecord("did:plc:a", "network.comind.claim", "r3", "z", []float32{1}, base)))

	stats, err := repo.Stats(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stats.TotalRecords, int64(3))
	gt.Equal(t, stats.ByCollection["network.comind.thought"], int64(2))
	gt.Equal(t, stats.ByCollection["network.comind.claim"], int64(1))
	gt.Equal(t, stats.Owners, []string{"did:plc:a"})
}
