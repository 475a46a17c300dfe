package ingest

import (
	"github.com/comind-network/cogindex/pkg/model"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultProfileCollection is the well-known collection agents publish
// to declare which of their collections should be indexed.
const DefaultProfileCollection = "network.comind.agent"

var profileSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"collections": {
			Type:  "array",
			Items: &jsonschema.Schema{Type: "string"},
		},
		"displayName": {Type: "string"},
	},
	Required: []string{"collections"},
	// Additional fields are opaque by contract, so they stay allowed.
}

type profileValidator struct {
	resolved *jsonschema.Resolved
}

func newProfileValidator() (*profileValidator, error) {
	resolved, err := profileSchema.Resolve(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve profile schema")
	}
	return &profileValidator{resolved: resolved}, nil
}

// parse validates a profile record payload and returns the declared
// watch patterns and optional display name. Invalid payloads are
// Malformed events.
func (v *profileValidator) parse(payload map[string]any) ([]model.CollectionPattern, string, error) {
	if err := v.resolved.Validate(payload); err != nil {
		return nil, "", goerr.Wrap(err, "invalid profile payload", goerr.T(model.TagMalformed))
	}

	raw, _ := payload["collections"].([]any)
	patterns := make([]model.CollectionPattern, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			patterns = append(patterns, model.CollectionPattern(s))
		}
	}

	displayName, _ := payload["displayName"].(string)
	return patterns, displayName, nil
}
