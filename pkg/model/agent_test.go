package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/comind-network/cogindex/pkg/model"
)

func TestCollectionPatternMatch(t *testing.T) {
	tests := []struct {
		name       string
		pattern    model.CollectionPattern
		collection string
		expected   bool
	}{
		{
			name:       "exact match",
			pattern:    "network.comind.thought",
			collection: "network.comind.thought",
			expected:   true,
		},
		{
			name:       "exact mismatch",
			pattern:    "network.comind.thought",
			collection: "network.comind.claim",
			expected:   false,
		},
		{
			name:       "wildcard matches child",
			pattern:    "network.comind.*",
			collection: "network.comind.thought",
			expected:   true,
		},
		{
			name:       "wildcard matches deep child",
			pattern:    "network.comind.*",
			collection: "network.comind.sphere.link",
			expected:   true,
		},
		{
			name:       "wildcard matches prefix itself",
			pattern:    "network.comind.*",
			collection: "network.comind",
			expected:   true,
		},
		{
			name:       "wildcard rejects sibling namespace",
			pattern:    "network.comind.*",
			collection: "network.comindex.thought",
			expected:   false,
		},
		{
			name:       "bare star matches everything",
			pattern:    "*",
			collection: "app.bsky.feed.post",
			expected:   true,
		},
		{
			name:       "empty pattern matches nothing",
			pattern:    "",
			collection: "network.comind.thought",
			expected:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, tc.pattern.Match(tc.collection), tc.expected)
		})
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []model.CollectionPattern{
		"network.comind.thought",
		"app.bsky.feed.*",
	}

	gt.True(t, model.MatchAny(patterns, "network.comind.thought"))
	gt.True(t, model.MatchAny(patterns, "app.bsky.feed.post"))
	gt.False(t, model.MatchAny(patterns, "network.comind.claim"))
	gt.False(t, model.MatchAny(nil, "network.comind.thought"))
}
