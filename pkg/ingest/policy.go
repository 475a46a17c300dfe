package ingest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

// LoadPolicy loads all Rego files from policyDir and prepares the
// admission query data.cogindex.admit. Returns nil when the directory
// holds no policy files, which admits everything.
func LoadPolicy(ctx context.Context, policyDir string) (*rego.PreparedEvalQuery, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+1)
	options = append(options, rego.Query("data.cogindex.admit"))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare admission query")
	}
	return &prepared, nil
}

// evalAdmit evaluates the admission policy against one event. An
// undefined result denies.
func evalAdmit(ctx context.Context, policy *rego.PreparedEvalQuery, event *model.Event) (bool, error) {
	input := map[string]any{
		"owner":      event.Owner,
		"operation":  string(event.Operation),
		"collection": event.Collection,
		"rkey":       event.RecordKey,
		"record":     event.Payload,
	}

	rs, err := policy.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate admission policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}

	admit, ok := rs[0].Expressions[0].Value.(bool)
	return ok && admit, nil
}
