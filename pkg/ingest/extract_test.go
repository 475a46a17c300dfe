package ingest_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/comind-network/cogindex/pkg/ingest"
	"github.com/comind-network/cogindex/pkg/model"
)

func TestExtractorDefaults(t *testing.T) {
	x := ingest.NewExtractor(nil)

	t.Run("thought uses thought field", func(t *testing.T) {
		text, err := x.Extract("network.comind.thought", map[string]any{
			"thought": "pondering the firehose",
			"text":    "ignored",
		})
		gt.NoError(t, err)
		gt.Equal(t, text, "pondering the firehose")
	})

	t.Run("falls back to later field", func(t *testing.T) {
		text, err := x.Extract("network.comind.claim", map[string]any{
			"text": "the sky is blue",
		})
		gt.NoError(t, err)
		gt.Equal(t, text, "the sky is blue")
	})

	t.Run("namespace wildcard covers new types", func(t *testing.T) {
		text, err := x.Extract("network.comind.sphere", map[string]any{
			"content": "a shared space",
		})
		gt.NoError(t, err)
		gt.Equal(t, text, "a shared space")
	})

	t.Run("no rule for collection", func(t *testing.T) {
		_, err := x.Extract("com.example.unknown", map[string]any{"text": "x"})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, model.TagMalformed))
	})

	t.Run("no text field", func(t *testing.T) {
		_, err := x.Extract("app.bsky.feed.post", map[string]any{"langs": []any{"en"}})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, model.TagMalformed))
	})

	t.Run("whitespace only is no text", func(t *testing.T) {
		_, err := x.Extract("app.bsky.feed.post", map[string]any{"text": "   "})
		gt.Error(t, err)
	})
}

func TestExtractorCustomRules(t *testing.T) {
	x := ingest.NewExtractor([]ingest.ExtractRule{
		{Pattern: "com.example.note", Fields: []string{"body"}, MaxLen: 5},
	})

	text, err := x.Extract("com.example.note", map[string]any{"body": "0123456789"})
	gt.NoError(t, err)
	gt.Equal(t, text, "01234")

	// Custom rules replace the defaults entirely.
	_, err = x.Extract("network.comind.thought", map[string]any{"thought": "x"})
	gt.Error(t, err)
}

func TestExtractorTruncation(t *testing.T) {
	x := ingest.NewExtractor(nil)

	long := strings.Repeat("a", 5000)
	text, err := x.Extract("network.comind.thought", map[string]any{"thought": long})
	gt.NoError(t, err)
	gt.Equal(t, len(text), 4096)
}
