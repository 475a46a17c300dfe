package stream

import (
	"context"

	"github.com/comind-network/cogindex/pkg/model"
)

// Handler processes one event. Handlers are invoked sequentially in
// stream order; a non-nil error is logged and the stream continues,
// except for context cancellation which stops consumption.
type Handler func(ctx context.Context, event *model.Event) error

// Source is a resumable subscription to the record firehose.
type Source interface {
	// Run consumes the stream until the context is cancelled,
	// reconnecting on transport failure.
	Run(ctx context.Context, handler Handler) error

	// SetCursor sets the resumption position applied at the next
	// (re)connect. Call before Run.
	SetCursor(cursor int64)

	// SetCollections replaces the wanted collection patterns. Safe to
	// call while Run is active; the change is pushed to the server
	// without dropping the connection.
	SetCollections(patterns []string)
}
