package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/comind-network/cogindex/pkg/adapter"
	"github.com/comind-network/cogindex/pkg/embedding"
	"github.com/comind-network/cogindex/pkg/model"
	"github.com/comind-network/cogindex/pkg/repository"
	"github.com/comind-network/cogindex/pkg/stream"
	"github.com/comind-network/cogindex/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

const (
	defaultEmbedAttempts = 3
	defaultCommitEvery   = 64
	defaultConsumerID    = "ingest"

	embedRetryBase = 500 * time.Millisecond
)

// Seed is an owner admitted at startup without a profile event.
type Seed struct {
	Owner       string
	Collections []model.CollectionPattern
}

// Worker keeps the record store and agent registry eventually
// consistent with the firehose. Events are processed sequentially to
// preserve per-URI ordering; record upsert and delete are idempotent,
// so replays after a crash between processing and cursor commit are
// harmless.
type Worker struct {
	repo      repository.Repository
	embedder  embedding.Embedder
	source    stream.Source
	filter    *Filter
	extractor *Extractor
	profiles  *profileValidator
	seeds     []Seed

	profileCollection string
	consumer          string
	policy            *rego.PreparedEvalQuery
	audit             adapter.BigQuery
	embedAttempts     int
	commitEvery       int

	pending    int
	lastCursor int64
}

type Option func(*Worker)

// WithExtractRules replaces the default text extraction rule table.
func WithExtractRules(rules []ExtractRule) Option {
	return func(w *Worker) {
		w.extractor = NewExtractor(rules)
	}
}

// WithProfileCollection overrides the well-known profile collection.
func WithProfileCollection(collection string) Option {
	return func(w *Worker) {
		w.profileCollection = collection
	}
}

// WithPolicy installs a Rego admission policy evaluated per event.
func WithPolicy(policy *rego.PreparedEvalQuery) Option {
	return func(w *Worker) {
		w.policy = policy
	}
}

// WithAudit streams applied events to a BigQuery audit sink.
func WithAudit(sink adapter.BigQuery) Option {
	return func(w *Worker) {
		w.audit = sink
	}
}

// WithEmbedAttempts bounds embedding retries per event.
func WithEmbedAttempts(n int) Option {
	return func(w *Worker) {
		w.embedAttempts = n
	}
}

// WithCommitEvery sets how many events are processed between cursor
// commits.
func WithCommitEvery(n int) Option {
	return func(w *Worker) {
		w.commitEvery = n
	}
}

// WithConsumerID sets the cursor key for this worker.
func WithConsumerID(id string) Option {
	return func(w *Worker) {
		w.consumer = id
	}
}

// New creates an ingestion worker.
func New(repo repository.Repository, embedder embedding.Embedder, source stream.Source, seeds []Seed, opts ...Option) (*Worker, error) {
	profiles, err := newProfileValidator()
	if err != nil {
		return nil, err
	}

	w := &Worker{
		repo:              repo,
		embedder:          embedder,
		source:            source,
		profiles:          profiles,
		seeds:             seeds,
		extractor:         NewExtractor(nil),
		profileCollection: DefaultProfileCollection,
		consumer:          defaultConsumerID,
		embedAttempts:     defaultEmbedAttempts,
		commitEvery:       defaultCommitEvery,
	}

	for _, opt := range opts {
		opt(w)
	}

	w.filter = NewFilter(w.profileCollection)
	return w, nil
}

// Run consumes the stream until the context is cancelled. The current
// cursor is committed before returning.
func (w *Worker) Run(ctx context.Context) error {
	logger := logging.From(ctx)

	if err := w.bootstrap(ctx); err != nil {
		return err
	}
	w.source.SetCollections(w.filter.Collections())

	err := w.source.Run(ctx, w.handleEvent)

	// Graceful shutdown: the parent context is already cancelled here,
	// so the final commit gets its own deadline.
	commitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cerr := w.commitCursor(commitCtx); cerr != nil {
		logger.Error("failed to commit cursor on shutdown", "error", cerr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// bootstrap loads the committed cursor and rebuilds the admission
// filter from the registry plus the seed list.
func (w *Worker) bootstrap(ctx context.Context) error {
	logger := logging.From(ctx)

	cursor, err := w.repo.GetCursor(ctx, w.consumer)
	if err != nil {
		return goerr.Wrap(err, "failed to load cursor")
	}
	w.source.SetCursor(cursor)
	w.lastCursor = cursor

	agents, err := w.repo.ListAgents(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load agent registry")
	}
	for _, agent := range agents {
		w.filter.SetAgent(agent.Owner, agent.Collections)
	}

	now := time.Now()
	for _, seed := range w.seeds {
		if _, err := w.repo.GetAgent(ctx, seed.Owner); err == nil {
			continue // registry entry wins over the seed
		} else if !goerr.HasTag(err, model.TagNotFound) {
			return goerr.Wrap(err, "failed to check seed agent", goerr.V("owner", seed.Owner))
		}

		agent := &model.Agent{
			Owner:        seed.Owner,
			Collections:  seed.Collections,
			FirstSeenAt:  now,
			LastActiveAt: now,
		}
		if err := w.repo.PutAgent(ctx, agent); err != nil {
			return goerr.Wrap(err, "failed to register seed agent", goerr.V("owner", seed.Owner))
		}
		w.filter.SetAgent(seed.Owner, seed.Collections)
	}

	logger.Info("ingestion worker ready",
		"cursor", cursor,
		"agents", len(agents)+len(w.seeds),
		"collections", w.filter.Collections())
	return nil
}

func (w *Worker) handleEvent(ctx context.Context, event *model.Event) error {
	var err error
	switch {
	case event.Collection == w.profileCollection &&
		(event.Operation == model.OperationCreate || event.Operation == model.OperationUpdate):
		err = w.handleProfile(ctx, event)
	case event.Operation == model.OperationDelete:
		err = w.handleDelete(ctx, event)
	case event.Operation == model.OperationCreate || event.Operation == model.OperationUpdate:
		err = w.handleRecord(ctx, event)
	}
	if err != nil {
		return err
	}

	w.lastCursor = event.Cursor
	w.pending++
	if w.pending >= w.commitEvery {
		if err := w.commitCursor(ctx); err != nil {
			logging.From(ctx).Error("failed to commit cursor", "error", err)
		}
	}
	return nil
}

// handleProfile grows the registry: any owner may self-register by
// publishing a profile record, and subsequent events from that owner
// are admitted without a restart.
func (w *Worker) handleProfile(ctx context.Context, event *model.Event) error {
	logger := logging.From(ctx)

	patterns, displayName, err := w.profiles.parse(event.Payload)
	if err != nil {
		logger.Warn("skipping malformed profile record", "owner", event.Owner, "error", err)
		return nil
	}

	agent := &model.Agent{
		Owner:        event.Owner,
		DisplayName:  displayName,
		Collections:  patterns,
		FirstSeenAt:  event.Time,
		LastActiveAt: event.Time,
	}
	if existing, err := w.repo.GetAgent(ctx, event.Owner); err == nil {
		agent.FirstSeenAt = existing.FirstSeenAt
		if displayName == "" {
			agent.DisplayName = existing.DisplayName
		}
	} else if !goerr.HasTag(err, model.TagNotFound) {
		return goerr.Wrap(err, "failed to load agent", goerr.V("owner", event.Owner))
	}

	if err := w.repo.PutAgent(ctx, agent); err != nil {
		return goerr.Wrap(err, "failed to register agent", goerr.V("owner", event.Owner))
	}

	w.filter.SetAgent(event.Owner, patterns)
	w.source.SetCollections(w.filter.Collections())

	logger.Info("agent registered", "owner", event.Owner, "collections", patterns)
	return nil
}

// handleDelete removes the row if present. Deletes key on the URI
// alone: whether the owner is still watched does not matter, and a
// missing row is a no-op.
func (w *Worker) handleDelete(ctx context.Context, event *model.Event) error {
	if err := w.repo.DeleteRecord(ctx, event.URI()); err != nil {
		return goerr.Wrap(err, "failed to delete record", goerr.V("uri", event.URI()))
	}
	w.auditEvent(ctx, event, time.Now())
	return nil
}

func (w *Worker) handleRecord(ctx context.Context, event *model.Event) error {
	logger := logging.From(ctx)

	if !w.filter.Admit(event.Owner, event.Collection) {
		return nil
	}

	if w.policy != nil {
		admit, err := evalAdmit(ctx, w.policy, event)
		if err != nil {
			return err
		}
		if !admit {
			logger.Debug("event denied by policy", "uri", event.URI())
			return nil
		}
	}

	content, err := w.extractor.Extract(event.Collection, event.Payload)
	if err != nil {
		logger.Warn("skipping event without extractable text", "uri", event.URI(), "error", err)
		return nil
	}

	createdAt, err := recordCreatedAt(event)
	if err != nil {
		logger.Warn("skipping event with malformed timestamp", "uri", event.URI(), "error", err)
		return nil
	}

	vec, err := w.embedWithRetry(ctx, content)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("dropping event after embedding failures", "uri", event.URI(), "error", err)
		return nil
	}

	now := time.Now()
	record := &model.Record{
		URI:        event.URI(),
		Owner:      event.Owner,
		Collection: event.Collection,
		Content:    content,
		Embedding:  vec,
		CreatedAt:  createdAt,
		IndexedAt:  now,
	}
	if err := w.repo.PutRecord(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to store record", goerr.V("uri", event.URI()))
	}

	w.auditEvent(ctx, event, now)
	logger.Debug("record indexed", "uri", event.URI(), "chars", len(content))
	return nil
}

// recordCreatedAt prefers the timestamp the source record carries and
// falls back to the stream event time.
func recordCreatedAt(event *model.Event) (time.Time, error) {
	raw, ok := event.Payload["createdAt"].(string)
	if !ok || raw == "" {
		return event.Time, nil
	}

	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "unparseable createdAt",
			goerr.T(model.TagMalformed), goerr.V("value", raw))
	}
	return ts, nil
}

// embedWithRetry retries transient embedding failures with backoff up
// to the configured attempt budget. A drained budget drops the single
// event; it never blocks the stream.
func (w *Worker) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < w.embedAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(embedRetryBase << (attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vec, err := w.embedder.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}
	return nil, goerr.Wrap(lastErr, "embedding failed", goerr.V("attempts", w.embedAttempts))
}

func (w *Worker) auditEvent(ctx context.Context, event *model.Event, indexedAt time.Time) {
	if w.audit == nil {
		return
	}

	row := &adapter.AuditRow{
		URI:        string(event.URI()),
		Owner:      event.Owner,
		Collection: event.Collection,
		Operation:  string(event.Operation),
		EventTime:  event.Time,
		IndexedAt:  indexedAt,
	}
	if err := w.audit.Insert(ctx, []*adapter.AuditRow{row}); err != nil {
		// Best effort: the audit trail never blocks ingestion.
		logging.From(ctx).Warn("failed to write audit row", "uri", event.URI(), "error", err)
	}
}

func (w *Worker) commitCursor(ctx context.Context) error {
	if w.lastCursor == 0 {
		return nil
	}
	if err := w.repo.PutCursor(ctx, w.consumer, w.lastCursor); err != nil {
		return goerr.Wrap(err, "failed to persist cursor", goerr.V("cursor", w.lastCursor))
	}
	w.pending = 0
	return nil
}
