package ingest

import (
	"strings"

	"github.com/comind-network/cogindex/pkg/embedding"
	"github.com/comind-network/cogindex/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrUnsupportedCollection = goerr.New("no extraction rule for collection", goerr.T(model.TagMalformed))
	ErrNoTextField           = goerr.New("no text field in record payload", goerr.T(model.TagMalformed))
)

const defaultMaxContentLen = 4096

// ExtractRule declares where the human-readable text of a collection
// lives. Fields are tried in order; the first non-empty string wins.
// Text longer than MaxLen is truncated at storage time.
type ExtractRule struct {
	Pattern model.CollectionPattern `yaml:"pattern"`
	Fields  []string                `yaml:"fields"`
	MaxLen  int                     `yaml:"max_len"`
}

// DefaultRules covers the cognition record types agents publish on the
// comind network plus plain social posts.
func DefaultRules() []ExtractRule {
	return []ExtractRule{
		{Pattern: "network.comind.thought", Fields: []string{"thought", "text"}},
		{Pattern: "network.comind.claim", Fields: []string{"claim", "text"}},
		{Pattern: "network.comind.emotion", Fields: []string{"emotion", "text"}},
		{Pattern: "network.comind.*", Fields: []string{"text", "content"}},
		{Pattern: "app.bsky.feed.post", Fields: []string{"text"}},
	}
}

// Extractor maps (collection, payload) to indexable text through a
// finite rule table. Collections without a rule are rejected by
// construction.
type Extractor struct {
	rules []ExtractRule
}

// NewExtractor builds an extractor; an empty rule list falls back to
// DefaultRules.
func NewExtractor(rules []ExtractRule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	for i := range rules {
		if rules[i].MaxLen <= 0 {
			rules[i].MaxLen = defaultMaxContentLen
		}
	}
	return &Extractor{rules: rules}
}

// Extract returns the text content of the payload, truncated to the
// rule's limit.
func (x *Extractor) Extract(collection string, payload map[string]any) (string, error) {
	var rule *ExtractRule
	for i := range x.rules {
		if x.rules[i].Pattern.Match(collection) {
			rule = &x.rules[i]
			break
		}
	}
	if rule == nil {
		return "", goerr.Wrap(ErrUnsupportedCollection, "", goerr.V("collection", collection))
	}

	for _, field := range rule.Fields {
		text, ok := payload[field].(string)
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		return embedding.Truncate(text, rule.MaxLen), nil
	}

	return "", goerr.Wrap(ErrNoTextField, "",
		goerr.V("collection", collection), goerr.V("fields", rule.Fields))
}
