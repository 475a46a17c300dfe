// Package mcp exposes the query operations as MCP tools over stdio so
// that assistant runtimes can search the index directly.
package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/comind-network/cogindex/pkg/usecase/query"
)

type searchInput struct {
	Query       string   `json:"query" jsonschema:"natural language search query"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results (1-50, default 10)"`
	Collections []string `json:"collections,omitempty" jsonschema:"restrict results to these collection NSIDs"`
	Owner       string   `json:"owner,omitempty" jsonschema:"restrict results to one owner DID"`
}

type similarInput struct {
	URI   string `json:"uri" jsonschema:"at:// URI of the anchor record"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of neighbors (1-50, default 10)"`
}

type statsInput struct{}

type recordOutput struct {
	URI        string  `json:"uri"`
	Owner      string  `json:"owner"`
	Collection string  `json:"collection"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	CreatedAt  string  `json:"createdAt"`
}

type searchOutput struct {
	Results []recordOutput `json:"results"`
}

type statsOutput struct {
	TotalRecords  int64            `json:"totalRecords"`
	ByCollection  map[string]int64 `json:"byCollection"`
	Owners        []string         `json:"owners"`
	LastIndexedAt string           `json:"lastIndexedAt,omitempty"`
}

// Server wires the query use case into an MCP server.
type Server struct {
	uc      *query.UseCase
	version string
}

// New creates the MCP service.
func New(uc *query.UseCase, version string) *Server {
	return &Server{uc: uc, version: version}
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "cogindex",
		Version: s.version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_records",
		Description: "Search indexed agent records by meaning. Returns the most similar records with cosine similarity scores.",
	}, s.searchRecords)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "find_similar",
		Description: "Find records similar to an already indexed record, identified by its at:// URI.",
	}, s.findSimilar)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "index_stats",
		Description: "Summarize the index: record counts per collection and known owners.",
	}, s.indexStats)

	return srv.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) searchRecords(ctx context.Context, req *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, searchOutput, error) {
	results, err := s.uc.Search(ctx, &query.SearchInput{
		Query:       input.Query,
		Limit:       input.Limit,
		Collections: input.Collections,
		Owner:       input.Owner,
	})
	if err != nil {
		return nil, searchOutput{}, err
	}
	return nil, searchOutput{Results: toRecordOutputs(results)}, nil
}

func (s *Server) findSimilar(ctx context.Context, req *mcp.CallToolRequest, input similarInput) (*mcp.CallToolResult, searchOutput, error) {
	results, err := s.uc.FindSimilar(ctx, model.RecordURI(input.URI), input.Limit)
	if err != nil {
		return nil, searchOutput{}, err
	}
	return nil, searchOutput{Results: toRecordOutputs(results)}, nil
}

func (s *Server) indexStats(ctx context.Context, req *mcp.CallToolRequest, input statsInput) (*mcp.CallToolResult, statsOutput, error) {
	stats, err := s.uc.Stats(ctx)
	if err != nil {
		return nil, statsOutput{}, err
	}

	out := statsOutput{
		TotalRecords: stats.TotalRecords,
		ByCollection: stats.ByCollection,
		Owners:       stats.Owners,
	}
	if !stats.LastIndexedAt.IsZero() {
		out.LastIndexedAt = stats.LastIndexedAt.Format(time.RFC3339)
	}
	return nil, out, nil
}

func toRecordOutputs(results []*model.ScoredRecord) []recordOutput {
	out := make([]recordOutput, 0, len(results))
	for _, r := range results {
		out = append(out, recordOutput{
			URI:        string(r.URI),
			Owner:      r.Owner,
			Collection: r.Collection,
			Content:    r.Content,
			Score:      r.Score,
			CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
