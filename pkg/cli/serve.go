package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/comind-network/cogindex/pkg/server"
	"github.com/comind-network/cogindex/pkg/usecase/query"
	"github.com/comind-network/cogindex/pkg/utils/logging"
)

func serveCommand() *cli.Command {
	var cfg config
	var addr string

	flags := append(globalFlags(&cfg), embedderFlags(&cfg)...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address for the query API",
			Value:       ":8080",
			Sources:     cli.EnvVars("COGINDEX_ADDR"),
			Destination: &addr,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the query API over HTTP",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.configureLogger()
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			uc := query.New(repo, embedder)
			srv := &http.Server{
				Addr:    addr,
				Handler: server.New(uc),
			}

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("query API listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shut down server")
				}
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return goerr.Wrap(err, "server failed")
			}
		},
	}
}
