package model

import "time"

// Operation is the kind of repository mutation carried by a stream event.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Event is one record mutation observed on the firehose.
type Event struct {
	Owner      string
	Operation  Operation
	Collection string
	RecordKey  string
	Payload    map[string]any
	Time       time.Time

	// Cursor is the stream position of this event in microseconds.
	// Committing it allows resumption after the event is processed.
	Cursor int64
}

// URI returns the canonical identifier of the record the event mutates.
func (e *Event) URI() RecordURI {
	return NewRecordURI(e.Owner, e.Collection, e.RecordKey)
}
