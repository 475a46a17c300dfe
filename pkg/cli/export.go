package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/comind-network/cogindex/pkg/adapter"
	"github.com/comind-network/cogindex/pkg/model"
	"github.com/comind-network/cogindex/pkg/utils/logging"
)

// snapshotRow is one JSONL line of an index snapshot.
type snapshotRow struct {
	URI        string    `json:"uri"`
	Owner      string    `json:"owner"`
	Collection string    `json:"collection"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	IndexedAt  time.Time `json:"indexedAt"`
}

func exportCommand() *cli.Command {
	var cfg config
	var (
		bucket         string
		prefix         string
		output         string
		includeVectors bool
		pageSize       int64
	)

	flags := append(globalFlags(&cfg),
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for the snapshot",
			Sources:     cli.EnvVars("COGINDEX_SNAPSHOT_BUCKET"),
			Destination: &bucket,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Object key prefix",
			Value:       "snapshots",
			Destination: &prefix,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Write the snapshot to a local file instead of Cloud Storage ('-' for stdout)",
			Destination: &output,
		},
		&cli.BoolFlag{
			Name:        "include-vectors",
			Usage:       "Include embedding vectors in the snapshot",
			Destination: &includeVectors,
		},
		&cli.IntFlag{
			Name:        "page-size",
			Usage:       "Records fetched per page",
			Value:       500,
			Destination: &pageSize,
		},
	)

	return &cli.Command{
		Name:  "export",
		Usage: "Export the index as a JSONL snapshot",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.configureLogger()
			logger := logging.Default()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			w, key, err := openSnapshotWriter(ctx, bucket, prefix, output)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(w)
			var exported int
			size := int(pageSize)
			for offset := 0; ; offset += size {
				records, err := repo.ListRecords(ctx, offset, size)
				if err != nil {
					return goerr.Wrap(err, "failed to list records", goerr.V("offset", offset))
				}
				if len(records) == 0 {
					break
				}

				for _, record := range records {
					row := toSnapshotRow(record, includeVectors)
					if err := enc.Encode(row); err != nil {
						return goerr.Wrap(err, "failed to encode record", goerr.V("uri", record.URI))
					}
					exported++
				}
			}

			if err := w.Close(); err != nil {
				return goerr.Wrap(err, "failed to finalize snapshot")
			}

			logger.Info("snapshot exported", "records", exported, "destination", key)
			return nil
		},
	}
}

// openSnapshotWriter picks the snapshot destination: a local file when
// --output is given, Cloud Storage otherwise.
func openSnapshotWriter(ctx context.Context, bucket, prefix, output string) (io.WriteCloser, string, error) {
	if output == "-" {
		return nopCloser{os.Stdout}, "stdout", nil
	}
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return nil, "", goerr.Wrap(err, "failed to create output file", goerr.V("path", output))
		}
		return f, output, nil
	}

	if bucket == "" {
		return nil, "", goerr.New("bucket or output is required")
	}

	store, err := adapter.NewStorage(ctx, bucket)
	if err != nil {
		return nil, "", err
	}

	key := fmt.Sprintf("%s/%s-%s.jsonl",
		prefix, time.Now().UTC().Format("20060102T150405Z"), uuid.NewString())
	w, err := store.Put(ctx, key)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to open snapshot object", goerr.V("key", key))
	}
	return w, "gs://" + bucket + "/" + key, nil
}

func toSnapshotRow(record *model.Record, includeVectors bool) snapshotRow {
	row := snapshotRow{
		URI:        string(record.URI),
		Owner:      record.Owner,
		Collection: record.Collection,
		Content:    record.Content,
		CreatedAt:  record.CreatedAt,
		IndexedAt:  record.IndexedAt,
	}
	if includeVectors {
		row.Embedding = record.Embedding
	}
	return row
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
