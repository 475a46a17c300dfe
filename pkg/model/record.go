package model

import (
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
)

// RecordURI is the canonical identifier of a record in an agent's
// repository: at://<owner>/<collection>/<rkey>.
type RecordURI string

const uriScheme = "at://"

// NewRecordURI builds the canonical URI for a record.
func NewRecordURI(owner, collection, rkey string) RecordURI {
	return RecordURI(uriScheme + owner + "/" + collection + "/" + rkey)
}

// Parse splits the URI into owner, collection and record key.
func (u RecordURI) Parse() (owner, collection, rkey string, err error) {
	raw, ok := strings.CutPrefix(string(u), uriScheme)
	if !ok {
		return "", "", "", goerr.Wrap(ErrInvalidURI, "missing at:// scheme", goerr.V("uri", u))
	}

	parts := strings.SplitN(raw, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", goerr.Wrap(ErrInvalidURI, "expected owner/collection/rkey", goerr.V("uri", u))
	}

	return parts[0], parts[1], parts[2], nil
}

// Validate checks that the URI is well formed.
func (u RecordURI) Validate() error {
	_, _, _, err := u.Parse()
	return err
}

// Record is one indexed row: the extracted text of a source record and
// its embedding vector. Exactly one Record exists per URI; re-indexing
// replaces Content, Embedding and IndexedAt in place.
type Record struct {
	URI        RecordURI
	Owner      string
	Collection string
	Content    string
	Embedding  firestore.Vector32

	CreatedAt time.Time
	IndexedAt time.Time
}

// ScoredRecord is a Record annotated with its similarity to a query
// vector. Higher scores rank first.
type ScoredRecord struct {
	*Record
	Score float64
}

// IndexStats summarizes the state of the index.
type IndexStats struct {
	TotalRecords  int64
	ByCollection  map[string]int64
	Owners        []string
	LastIndexedAt time.Time
}
