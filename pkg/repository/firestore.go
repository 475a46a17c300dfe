package repository

import (
	"context"
	"encoding/base64"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/comind-network/cogindex/pkg/embedding"
	"github.com/comind-network/cogindex/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionRecords = "records"
	collectionAgents  = "agents"
	collectionCursors = "cursors"
)

// Firestore implements Repository using Cloud Firestore with its
// native vector search for similarity ranking.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore creates a Firestore-backed repository
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}
	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

type recordDoc struct {
	URI        string             `firestore:"uri"`
	Owner      string             `firestore:"owner"`
	Collection string             `firestore:"collection"`
	Content    string             `firestore:"content"`
	Embedding  firestore.Vector32 `firestore:"embedding"`
	CreatedAt  time.Time          `firestore:"created_at"`
	IndexedAt  time.Time          `firestore:"indexed_at"`
}

type agentDoc struct {
	Owner        string    `firestore:"owner"`
	DisplayName  string    `firestore:"display_name"`
	Collections  []string  `firestore:"collections"`
	FirstSeenAt  time.Time `firestore:"first_seen_at"`
	LastActiveAt time.Time `firestore:"last_active_at"`
}

type cursorDoc struct {
	Cursor    int64     `firestore:"cursor"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Firestore document IDs must not contain '/', so record documents are
// keyed by the URL-safe base64 of the URI.
func recordDocID(uri model.RecordURI) string {
	return base64.RawURLEncoding.EncodeToString([]byte(uri))
}

func (r *Firestore) PutRecord(ctx context.Context, record *model.Record) error {
	if err := record.URI.Validate(); err != nil {
		return err
	}
	if len(record.Embedding) == 0 {
		return goerr.New("record has no embedding", goerr.V("uri", record.URI))
	}

	doc := &recordDoc{
		URI:        string(record.URI),
		Owner:      record.Owner,
		Collection: record.Collection,
		Content:    record.Content,
		Embedding:  record.Embedding,
		CreatedAt:  record.CreatedAt,
		IndexedAt:  record.IndexedAt,
	}
	if _, err := r.client.Collection(collectionRecords).Doc(recordDocID(record.URI)).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put record", goerr.V("uri", record.URI))
	}
	return nil
}

func (r *Firestore) GetRecord(ctx context.Context, uri model.RecordURI) (*model.Record, error) {
	snap, err := r.client.Collection(collectionRecords).Doc(recordDocID(uri)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "no such record", goerr.V("uri", uri))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("uri", uri))
	}

	var doc recordDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode record", goerr.V("uri", uri))
	}
	return doc.toModel(), nil
}

func (d *recordDoc) toModel() *model.Record {
	return &model.Record{
		URI:        model.RecordURI(d.URI),
		Owner:      d.Owner,
		Collection: d.Collection,
		Content:    d.Content,
		Embedding:  d.Embedding,
		CreatedAt:  d.CreatedAt,
		IndexedAt:  d.IndexedAt,
	}
}

func (r *Firestore) DeleteRecord(ctx context.Context, uri model.RecordURI) error {
	// Delete is idempotent in Firestore; a missing document is not an error.
	if _, err := r.client.Collection(collectionRecords).Doc(recordDocID(uri)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete record", goerr.V("uri", uri))
	}
	return nil
}

func (r *Firestore) ListRecords(ctx context.Context, offset, limit int) ([]*model.Record, error) {
	q := r.client.Collection(collectionRecords).
		OrderBy("created_at", firestore.Desc).
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}

	it := q.Documents(ctx)
	defer it.Stop()

	var records []*model.Record
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate records")
		}

		var doc recordDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode record")
		}
		records = append(records, doc.toModel())
	}
	return records, nil
}

func (r *Firestore) SearchSimilar(ctx context.Context, vec []float32, limit int, filter *SearchFilter) ([]*model.ScoredRecord, error) {
	q := r.client.Collection(collectionRecords).Query
	if filter != nil {
		if filter.Owner != "" {
			q = q.Where("owner", "==", filter.Owner)
		}
		if len(filter.Collections) > 0 {
			q = q.Where("collection", "in", filter.Collections)
		}
		if !filter.After.IsZero() {
			q = q.Where("created_at", ">=", filter.After)
		}
		if !filter.Before.IsZero() {
			q = q.Where("created_at", "<", filter.Before)
		}
	}

	vq := q.FindNearest("embedding", firestore.Vector32(vec), limit, firestore.DistanceMeasureCosine, nil)
	it := vq.Documents(ctx)
	defer it.Stop()

	var scored []*model.ScoredRecord
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to run vector search")
		}

		var doc recordDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode record")
		}
		record := doc.toModel()
		scored = append(scored, &model.ScoredRecord{
			Record: record,
			Score:  embedding.Cosine(vec, record.Embedding),
		})
	}

	// Re-rank locally so tie-breaking matches the memory backend.
	SortScored(scored)
	return scored, nil
}

func (r *Firestore) PutAgent(ctx context.Context, agent *model.Agent) error {
	if agent.Owner == "" {
		return goerr.New("agent owner is empty")
	}

	patterns := make([]string, len(agent.Collections))
	for i, p := range agent.Collections {
		patterns[i] = string(p)
	}
	doc := &agentDoc{
		Owner:        agent.Owner,
		DisplayName:  agent.DisplayName,
		Collections:  patterns,
		FirstSeenAt:  agent.FirstSeenAt,
		LastActiveAt: agent.LastActiveAt,
	}
	if _, err := r.client.Collection(collectionAgents).Doc(agent.Owner).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put agent", goerr.V("owner", agent.Owner))
	}
	return nil
}

func (r *Firestore) GetAgent(ctx context.Context, owner string) (*model.Agent, error) {
	snap, err := r.client.Collection(collectionAgents).Doc(owner).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrAgentNotFound, "no such agent", goerr.V("owner", owner))
		}
		return nil, goerr.Wrap(err, "failed to get agent", goerr.V("owner", owner))
	}

	var doc agentDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode agent", goerr.V("owner", owner))
	}
	return doc.toModel(), nil
}

func (d *agentDoc) toModel() *model.Agent {
	patterns := make([]model.CollectionPattern, len(d.Collections))
	for i, p := range d.Collections {
		patterns[i] = model.CollectionPattern(p)
	}
	return &model.Agent{
		Owner:        d.Owner,
		DisplayName:  d.DisplayName,
		Collections:  patterns,
		FirstSeenAt:  d.FirstSeenAt,
		LastActiveAt: d.LastActiveAt,
	}
}

func (r *Firestore) ListAgents(ctx context.Context) ([]*model.AgentActivity, error) {
	it := r.client.Collection(collectionAgents).OrderBy("owner", firestore.Asc).Documents(ctx)
	defer it.Stop()

	var out []*model.AgentActivity
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate agents")
		}

		var doc agentDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode agent")
		}

		activity := &model.AgentActivity{Agent: doc.toModel()}

		ownerQuery := r.client.Collection(collectionRecords).Where("owner", "==", doc.Owner)
		count, err := r.countQuery(ctx, ownerQuery)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to count records", goerr.V("owner", doc.Owner))
		}
		activity.RecordCount = count

		if count > 0 {
			latest := ownerQuery.OrderBy("created_at", firestore.Desc).Limit(1).Documents(ctx)
			snap, err := latest.Next()
			latest.Stop()
			if err != nil && err != iterator.Done {
				return nil, goerr.Wrap(err, "failed to load latest record", goerr.V("owner", doc.Owner))
			}
			if err == nil {
				var rec recordDoc
				if err := snap.DataTo(&rec); err != nil {
					return nil, goerr.Wrap(err, "failed to decode record")
				}
				activity.LastRecordAt = rec.CreatedAt
			}
		}

		out = append(out, activity)
	}
	return out, nil
}

func (r *Firestore) countQuery(ctx context.Context, q firestore.Query) (int64, error) {
	result, err := q.NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run count aggregation")
	}
	value, ok := result["count"].(*firestorepb.Value)
	if !ok {
		return 0, goerr.New("unexpected aggregation result type")
	}
	return value.GetIntegerValue(), nil
}

func (r *Firestore) GetCursor(ctx context.Context, consumer string) (int64, error) {
	snap, err := r.client.Collection(collectionCursors).Doc(consumer).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, goerr.Wrap(err, "failed to get cursor", goerr.V("consumer", consumer))
	}

	var doc cursorDoc
	if err := snap.DataTo(&doc); err != nil {
		return 0, goerr.Wrap(err, "failed to decode cursor", goerr.V("consumer", consumer))
	}
	return doc.Cursor, nil
}

func (r *Firestore) PutCursor(ctx context.Context, consumer string, cursor int64) error {
	doc := &cursorDoc{Cursor: cursor, UpdatedAt: time.Now()}
	if _, err := r.client.Collection(collectionCursors).Doc(consumer).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put cursor", goerr.V("consumer", consumer))
	}
	return nil
}

func (r *Firestore) Stats(ctx context.Context) (*model.IndexStats, error) {
	stats := &model.IndexStats{
		ByCollection: make(map[string]int64),
	}

	// Collection cardinality is small (the extraction rule table bounds
	// it), so per-collection counts come from a single field scan.
	it := r.client.Collection(collectionRecords).Select("collection", "indexed_at").Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan records")
		}

		data := snap.Data()
		if c, ok := data["collection"].(string); ok {
			stats.ByCollection[c]++
			stats.TotalRecords++
		}
		if ts, ok := data["indexed_at"].(time.Time); ok && ts.After(stats.LastIndexedAt) {
			stats.LastIndexedAt = ts
		}
	}

	agents := r.client.Collection(collectionAgents).Documents(ctx)
	defer agents.Stop()
	for {
		snap, err := agents.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan agents")
		}
		stats.Owners = append(stats.Owners, snap.Ref.ID)
	}

	return stats, nil
}
