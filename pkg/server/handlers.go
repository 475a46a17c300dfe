package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/comind-network/cogindex/pkg/usecase/query"
	"github.com/comind-network/cogindex/pkg/utils/logging"
)

type recordResponse struct {
	URI        string    `json:"uri"`
	Owner      string    `json:"owner"`
	Collection string    `json:"collection"`
	Content    string    `json:"content"`
	Score      float64   `json:"score"`
	CreatedAt  time.Time `json:"createdAt"`
	IndexedAt  time.Time `json:"indexedAt"`
}

type agentResponse struct {
	Owner        string     `json:"owner"`
	DisplayName  string     `json:"displayName,omitempty"`
	Collections  []string   `json:"collections"`
	FirstSeenAt  time.Time  `json:"firstSeenAt"`
	LastActiveAt time.Time  `json:"lastActiveAt"`
	RecordCount  int64      `json:"recordCount"`
	LastRecordAt *time.Time `json:"lastRecordAt,omitempty"`
}

type statsResponse struct {
	TotalRecords  int64            `json:"totalRecords"`
	ByCollection  map[string]int64 `json:"byCollection"`
	Owners        []string         `json:"owners"`
	LastIndexedAt *time.Time       `json:"lastIndexedAt,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func toRecordResponses(records []*model.ScoredRecord) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, recordResponse{
			URI:        string(r.URI),
			Owner:      r.Owner,
			Collection: r.Collection,
			Content:    r.Content,
			Score:      r.Score,
			CreatedAt:  r.CreatedAt,
			IndexedAt:  r.IndexedAt,
		})
	}
	return out
}

func handleSearch(uc *query.UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := parseSearchInput(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		results, err := uc.Search(r.Context(), input)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results": toRecordResponses(results),
		})
	}
}

func handleSimilar(uc *query.UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := model.RecordURI(r.URL.Query().Get("uri"))
		if uri == "" {
			writeError(w, r, goerr.New("uri parameter is required",
				goerr.T(model.TagInvalidArgument)))
			return
		}
		limit, err := parseLimit(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		results, err := uc.FindSimilar(r.Context(), uri, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results": toRecordResponses(results),
		})
	}
}

func handleAgents(uc *query.UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agents, err := uc.ListAgents(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		out := make([]agentResponse, 0, len(agents))
		for _, a := range agents {
			resp := agentResponse{
				Owner:        a.Owner,
				DisplayName:  a.DisplayName,
				Collections:  patternsToStrings(a.Collections),
				FirstSeenAt:  a.FirstSeenAt,
				LastActiveAt: a.LastActiveAt,
				RecordCount:  a.RecordCount,
			}
			if !a.LastRecordAt.IsZero() {
				ts := a.LastRecordAt
				resp.LastRecordAt = &ts
			}
			out = append(out, resp)
		}
		writeJSON(w, http.StatusOK, map[string]any{"agents": out})
	}
}

func handleStats(uc *query.UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := uc.Stats(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := statsResponse{
			TotalRecords: stats.TotalRecords,
			ByCollection: stats.ByCollection,
			Owners:       stats.Owners,
		}
		if !stats.LastIndexedAt.IsZero() {
			ts := stats.LastIndexedAt
			resp.LastIndexedAt = &ts
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseSearchInput(r *http.Request) (*query.SearchInput, error) {
	q := r.URL.Query()

	limit, err := parseLimit(r)
	if err != nil {
		return nil, err
	}

	input := &query.SearchInput{
		Query:       q.Get("q"),
		Limit:       limit,
		Collections: q["collection"],
		Owner:       q.Get("owner"),
	}

	if input.After, err = parseTime(q.Get("after")); err != nil {
		return nil, err
	}
	if input.Before, err = parseTime(q.Get("before")); err != nil {
		return nil, err
	}
	return input, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, goerr.New("limit must be an integer",
			goerr.T(model.TagInvalidArgument), goerr.V("limit", raw))
	}
	return limit, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, goerr.New("timestamp must be RFC 3339",
			goerr.T(model.TagInvalidArgument), goerr.V("value", raw))
	}
	return ts, nil
}

func patternsToStrings(patterns []model.CollectionPattern) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = string(p)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps error tags to the API's error envelope. Untagged
// errors are internal and never leak their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case goerr.HasTag(err, model.TagInvalidArgument), goerr.HasTag(err, model.TagMalformed):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: errorBody{Kind: "invalid_argument", Message: err.Error()},
		})
	case goerr.HasTag(err, model.TagNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: errorBody{Kind: "not_found", Message: err.Error()},
		})
	default:
		logging.From(r.Context()).Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: errorBody{Kind: "internal", Message: "internal server error"},
		})
	}
}
