package model

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures across the system. The query surface
// maps them to HTTP statuses; the ingestion worker uses them to decide
// between retrying, skipping and logging.
var (
	TagNotFound        = goerr.NewTag("not_found")
	TagInvalidArgument = goerr.NewTag("invalid_argument")
	TagMalformed       = goerr.NewTag("malformed")
	TagTransient       = goerr.NewTag("transient")
)

var (
	ErrRecordNotFound = goerr.New("record not found", goerr.T(TagNotFound))
	ErrAgentNotFound  = goerr.New("agent not found", goerr.T(TagNotFound))
	ErrInvalidURI     = goerr.New("invalid record uri", goerr.T(TagInvalidArgument))
)
