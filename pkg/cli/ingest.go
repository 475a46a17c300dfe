package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/comind-network/cogindex/pkg/adapter"
	"github.com/comind-network/cogindex/pkg/ingest"
	"github.com/comind-network/cogindex/pkg/stream"
	"github.com/comind-network/cogindex/pkg/utils/logging"
)

const defaultJetstreamURL = "wss://jetstream2.us-east.bsky.network/subscribe"

func ingestCommand() *cli.Command {
	var cfg config
	var (
		jetstreamURL string
		policyDir    string
		bqDataset    string
		bqTable      string
	)

	flags := append(globalFlags(&cfg), embedderFlags(&cfg)...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "jetstream-url",
			Usage:       "Jetstream subscription endpoint",
			Value:       defaultJetstreamURL,
			Sources:     cli.EnvVars("COGINDEX_JETSTREAM_URL"),
			Destination: &jetstreamURL,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego admission policies",
			Sources:     cli.EnvVars("COGINDEX_POLICY_DIR"),
			Destination: &policyDir,
		},
		&cli.StringFlag{
			Name:        "bq-dataset",
			Usage:       "BigQuery dataset for the ingestion audit trail",
			Sources:     cli.EnvVars("COGINDEX_BQ_DATASET"),
			Destination: &bqDataset,
		},
		&cli.StringFlag{
			Name:        "bq-table",
			Usage:       "BigQuery table for the ingestion audit trail",
			Value:       "ingest_audit",
			Sources:     cli.EnvVars("COGINDEX_BQ_TABLE"),
			Destination: &bqTable,
		},
	)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Consume the firehose and keep the index up to date",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.configureLogger()
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fileCfg, err := cfg.loadFileConfig()
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			var opts []ingest.Option
			if len(fileCfg.Rules) > 0 {
				opts = append(opts, ingest.WithExtractRules(fileCfg.Rules))
			}
			if fileCfg.ProfileCollection != "" {
				opts = append(opts, ingest.WithProfileCollection(fileCfg.ProfileCollection))
			}
			if policyDir != "" {
				policy, err := ingest.LoadPolicy(ctx, policyDir)
				if err != nil {
					return err
				}
				if policy != nil {
					opts = append(opts, ingest.WithPolicy(policy))
				}
			}
			if bqDataset != "" {
				if cfg.project == "" {
					return goerr.New("project is required for the BigQuery audit trail")
				}
				sink, err := adapter.NewBigQuery(ctx, cfg.project, bqDataset, bqTable)
				if err != nil {
					return err
				}
				opts = append(opts, ingest.WithAudit(sink))
			}

			source := stream.NewJetstream(jetstreamURL)
			worker, err := ingest.New(repo, embedder, source, fileCfg.seeds(), opts...)
			if err != nil {
				return err
			}

			logging.Default().Info("starting ingestion", "endpoint", jetstreamURL)
			return worker.Run(ctx)
		},
	}
}
