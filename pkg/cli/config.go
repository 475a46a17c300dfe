package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/comind-network/cogindex/pkg/adapter"
	"github.com/comind-network/cogindex/pkg/embedding"
	"github.com/comind-network/cogindex/pkg/ingest"
	"github.com/comind-network/cogindex/pkg/model"
	"github.com/comind-network/cogindex/pkg/repository"
	"github.com/comind-network/cogindex/pkg/utils/logging"
)

// config holds configuration values
type config struct {
	logLevel   string
	configPath string

	// Repository
	backend  string
	project  string
	database string

	// Embedder
	embedder      string
	dimension     int64
	geminiProject string
	geminiLoc     string
	geminiModel   string
	openaiAPIKey  string
	openaiBaseURL string
	openaiModel   string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("COGINDEX_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config with seeds and extraction rules",
			Sources:     cli.EnvVars("COGINDEX_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Storage backend (memory or firestore)",
			Value:       "memory",
			Sources:     cli.EnvVars("COGINDEX_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
	}
}

// embedderFlags returns flags for embedding configuration with destination config
func embedderFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedder",
			Usage:       "Embedding provider (gemini or openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("COGINDEX_EMBEDDER"),
			Destination: &cfg.embedder,
		},
		&cli.IntFlag{
			Name:        "dimension",
			Usage:       "Embedding vector dimension",
			Value:       256,
			Sources:     cli.EnvVars("COGINDEX_DIMENSION"),
			Destination: &cfg.dimension,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLoc,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini embedding model",
			Sources:     cli.EnvVars("GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "OpenAI-compatible API base URL (for local inference servers)",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "OpenAI embedding model",
			Sources:     cli.EnvVars("OPENAI_EMBEDDING_MODEL"),
			Destination: &cfg.openaiModel,
		},
	}
}

// configureLogger installs the default logger at the requested level.
func (cfg *config) configureLogger() {
	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.backend {
	case "memory":
		return repository.NewMemory(), nil
	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for the firestore backend")
		}
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, nil
	default:
		return nil, goerr.New("unknown backend", goerr.V("backend", cfg.backend))
	}
}

// newEmbedder creates a new embedding client
func (cfg *config) newEmbedder(ctx context.Context) (embedding.Embedder, error) {
	switch cfg.embedder {
	case "gemini":
		project := cfg.geminiProject
		if project == "" {
			project = cfg.project
		}
		if project == "" {
			return nil, goerr.New("gemini-project is required")
		}

		var opts []adapter.GeminiOption
		if cfg.geminiModel != "" {
			opts = append(opts, adapter.WithGeminiModel(cfg.geminiModel))
		}
		return adapter.NewGemini(ctx, project, cfg.geminiLoc, int(cfg.dimension), opts...)

	case "openai":
		if cfg.openaiAPIKey == "" && cfg.openaiBaseURL == "" {
			return nil, goerr.New("openai-api-key or openai-base-url is required")
		}

		var opts []adapter.OpenAIOption
		if cfg.openaiModel != "" {
			opts = append(opts, adapter.WithOpenAIModel(cfg.openaiModel))
		}
		return adapter.NewOpenAI(cfg.openaiAPIKey, cfg.openaiBaseURL, int(cfg.dimension), opts...), nil

	default:
		return nil, goerr.New("unknown embedder", goerr.V("embedder", cfg.embedder))
	}
}

// FileConfig is the YAML file holding what flags cannot express: the
// bootstrap seed list and text extraction rules.
type FileConfig struct {
	ProfileCollection string               `yaml:"profile_collection"`
	Seeds             []SeedConfig         `yaml:"seeds"`
	Rules             []ingest.ExtractRule `yaml:"rules"`
}

type SeedConfig struct {
	Owner       string   `yaml:"owner"`
	Collections []string `yaml:"collections"`
}

// loadFileConfig reads the YAML config. A missing path yields an empty
// config.
func (cfg *config) loadFileConfig() (*FileConfig, error) {
	if cfg.configPath == "" {
		return &FileConfig{}, nil
	}

	data, err := os.ReadFile(cfg.configPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
	}
	return &fc, nil
}

func (fc *FileConfig) seeds() []ingest.Seed {
	out := make([]ingest.Seed, 0, len(fc.Seeds))
	for _, s := range fc.Seeds {
		patterns := make([]model.CollectionPattern, 0, len(s.Collections))
		for _, c := range s.Collections {
			patterns = append(patterns, model.CollectionPattern(c))
		}
		out = append(out, ingest.Seed{Owner: s.Owner, Collections: patterns})
	}
	return out
}
