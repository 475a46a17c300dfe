package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
)

// AuditRow is one applied ingestion event, streamed to BigQuery for
// offline analysis of what the index has seen.
type AuditRow struct {
	URI        string    `bigquery:"uri"`
	Owner      string    `bigquery:"owner"`
	Collection string    `bigquery:"collection"`
	Operation  string    `bigquery:"operation"`
	EventTime  time.Time `bigquery:"event_time"`
	IndexedAt  time.Time `bigquery:"indexed_at"`
}

// BigQuery is an interface for the ingestion audit sink
type BigQuery interface {
	// Insert streams audit rows into the configured table
	Insert(ctx context.Context, rows []*AuditRow) error
}

type bigqueryClient struct {
	inserter *bigquery.Inserter
}

// NewBigQuery creates a new BigQuery audit sink
func NewBigQuery(ctx context.Context, projectID, datasetID, table string) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	return &bigqueryClient{
		inserter: client.Dataset(datasetID).Table(table).Inserter(),
	}, nil
}

func (bq *bigqueryClient) Insert(ctx context.Context, rows []*AuditRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := bq.inserter.Put(ctx, rows); err != nil {
		return goerr.Wrap(err, "failed to insert audit rows", goerr.V("count", len(rows)))
	}
	return nil
}
