package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/comind-network/cogindex/pkg/utils/logging"
)

// backfillCommand re-embeds every stored record with the configured
// embedder. Used after changing the embedding model or dimension.
func backfillCommand() *cli.Command {
	var cfg config
	var pageSize int64

	flags := append(globalFlags(&cfg), embedderFlags(&cfg)...)
	flags = append(flags,
		&cli.IntFlag{
			Name:        "page-size",
			Usage:       "Records fetched per page",
			Value:       100,
			Destination: &pageSize,
		},
	)

	return &cli.Command{
		Name:  "backfill",
		Usage: "Re-embed all indexed records with the configured embedder",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.configureLogger()
			logger := logging.Default()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " re-embedding records..."
			sp.Start()
			defer sp.Stop()

			var processed, failed int
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
					vec, err := embedder.Embed(ctx, record.Content)
					if err != nil {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						logger.Warn("failed to re-embed record", "uri", record.URI, "error", err)
						failed++
						continue
					}

					record.Embedding = vec
					record.IndexedAt = time.Now()
					if err := repo.PutRecord(ctx, record); err != nil {
						return goerr.Wrap(err, "failed to store record", goerr.V("uri", record.URI))
					}
					processed++
					sp.Suffix = fmt.Sprintf(" re-embedding records... (%d done)", processed)
				}
			}

			sp.Stop()
			logger.Info("backfill complete", "processed", processed, "failed", failed)
			return nil
		},
	}
}
