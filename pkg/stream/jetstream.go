package stream

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/comind-network/cogindex/pkg/utils/logging"
	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
)

const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = time.Minute
)

// Jetstream consumes a Jetstream-style JSON firehose over websocket.
// Events are delivered sequentially to the handler; the client tracks
// the position of the last delivered event so an in-process reconnect
// resumes without replaying what was already handled.
type Jetstream struct {
	endpoint string
	dialer   *websocket.Dialer

	mu          sync.Mutex
	cursor      int64
	collections []string
	updates     chan []string
}

type JetstreamOption func(*Jetstream)

// WithCollections sets the initial wanted collection patterns.
func WithCollections(patterns []string) JetstreamOption {
	return func(j *Jetstream) {
		j.collections = append([]string(nil), patterns...)
	}
}

// WithCursor sets the initial resumption position in microseconds.
func WithCursor(cursor int64) JetstreamOption {
	return func(j *Jetstream) {
		j.cursor = cursor
	}
}

// NewJetstream creates a client for the given endpoint, e.g.
// "wss://jetstream2.us-east.bsky.network".
func NewJetstream(endpoint string, opts ...JetstreamOption) *Jetstream {
	j := &Jetstream{
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
		updates:  make(chan []string, 1),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Jetstream) SetCursor(cursor int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cursor = cursor
}

func (j *Jetstream) SetCollections(patterns []string) {
	j.mu.Lock()
	j.collections = append([]string(nil), patterns...)
	j.mu.Unlock()

	// Keep only the latest pending update; the connection goroutine
	// applies whatever is newest when it gets to it.
	select {
	case <-j.updates:
	default:
	}
	j.updates <- append([]string(nil), patterns...)
}

func (j *Jetstream) subscribeURL() (string, error) {
	j.mu.Lock()
	cursor := j.cursor
	collections := append([]string(nil), j.collections...)
	j.mu.Unlock()

	u, err := url.Parse(j.endpoint)
	if err != nil {
		return "", goerr.Wrap(err, "invalid jetstream endpoint", goerr.V("endpoint", j.endpoint))
	}
	u = u.JoinPath("subscribe")

	q := u.Query()
	for _, c := range collections {
		q.Add("wantedCollections", c)
	}
	if cursor > 0 {
		q.Set("cursor", strconv.FormatInt(cursor, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (j *Jetstream) Run(ctx context.Context, handler Handler) error {
	logger := logging.From(ctx)
	delay := initialReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := j.subscribeURL()
		if err != nil {
			return err
		}

		conn, _, err := j.dialer.DialContext(ctx, target, nil)
		if err != nil {
			logger.Warn("jetstream connect failed, retrying",
				"endpoint", j.endpoint, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxReconnectDelay)
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		logger.Info("jetstream connected", "url", target)
		delay = initialReconnectDelay

		err = j.consume(ctx, conn, handler)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("jetstream connection lost, reconnecting", "error", err)
	}
}

// consume reads frames until the connection breaks or the context is
// cancelled. It returns the read error that ended the connection.
func (j *Jetstream) consume(ctx context.Context, conn *websocket.Conn, handler Handler) error {
	logger := logging.From(ctx)

	done := make(chan struct{})
	defer close(done)

	// Writer side: close on cancellation, push filter updates live.
	go func() {
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case patterns := <-j.updates:
				if err := conn.WriteJSON(optionsUpdate(patterns)); err != nil {
					logger.Warn("failed to send options update", "error", err)
					conn.Close()
					return
				}
				logger.Info("updated stream subscription", "collections", patterns)
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return goerr.Wrap(err, "failed to read stream message", goerr.T(model.TagTransient))
		}

		event, ok := decodeFrame(payload)
		if !ok {
			continue
		}

		if err := handler(ctx, event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("event handler failed", "uri", event.URI(), "error", err)
		}

		j.mu.Lock()
		j.cursor = event.Cursor
		j.mu.Unlock()
	}
}

type frame struct {
	DID    string       `json:"did"`
	TimeUS int64        `json:"time_us"`
	Kind   string       `json:"kind"`
	Commit *commitFrame `json:"commit"`
}

type commitFrame struct {
	Rev        string         `json:"rev"`
	Operation  string         `json:"operation"`
	Collection string         `json:"collection"`
	RKey       string         `json:"rkey"`
	Record     map[string]any `json:"record"`
	CID        string         `json:"cid"`
}

// decodeFrame converts a wire frame to an event. Non-commit frames
// (identity, account) and unparseable payloads yield ok=false.
func decodeFrame(payload []byte) (*model.Event, bool) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, false
	}
	if f.Kind != "commit" || f.Commit == nil || f.DID == "" {
		return nil, false
	}

	var op model.Operation
	switch f.Commit.Operation {
	case "create":
		op = model.OperationCreate
	case "update":
		op = model.OperationUpdate
	case "delete":
		op = model.OperationDelete
	default:
		return nil, false
	}

	return &model.Event{
		Owner:      f.DID,
		Operation:  op,
		Collection: f.Commit.Collection,
		RecordKey:  f.Commit.RKey,
		Payload:    f.Commit.Record,
		Time:       time.UnixMicro(f.TimeUS),
		Cursor:     f.TimeUS,
	}, true
}

type optionsUpdateMessage struct {
	Type    string               `json:"type"`
	Payload optionsUpdatePayload `json:"payload"`
}

type optionsUpdatePayload struct {
	WantedCollections []string `json:"wantedCollections"`
	WantedDIDs        []string `json:"wantedDids"`
}

func optionsUpdate(patterns []string) *optionsUpdateMessage {
	return &optionsUpdateMessage{
		Type:    "options_update",
		Payload: optionsUpdatePayload{WantedCollections: patterns, WantedDIDs: []string{}},
	}
}
