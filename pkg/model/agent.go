package model

import (
	"strings"
	"time"
)

// CollectionPattern selects record collections to index. A pattern is
// either an exact collection NSID or a prefix wildcard such as
// "network.comind.*". The bare "*" matches everything.
type CollectionPattern string

// Match reports whether the collection name matches the pattern.
func (p CollectionPattern) Match(collection string) bool {
	s := string(p)
	if s == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(s, ".*"); ok {
		return collection == prefix || strings.HasPrefix(collection, prefix+".")
	}
	return collection == s
}

// MatchAny reports whether any of the patterns matches the collection.
func MatchAny(patterns []CollectionPattern, collection string) bool {
	for _, p := range patterns {
		if p.Match(collection) {
			return true
		}
	}
	return false
}

// Agent is a registry row for an admitted owner. Owners join either
// through the bootstrap seed list or by publishing a profile record
// declaring the collections they want indexed.
type Agent struct {
	Owner       string
	DisplayName string
	Collections []CollectionPattern

	FirstSeenAt  time.Time
	LastActiveAt time.Time
}

// AgentActivity is an Agent joined with its indexed record footprint,
// as returned by agent listing.
type AgentActivity struct {
	*Agent
	RecordCount  int64
	LastRecordAt time.Time
}
