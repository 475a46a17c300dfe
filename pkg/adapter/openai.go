package adapter

import (
	"context"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient generates embeddings through the OpenAI embeddings API
// or any compatible endpoint (Ollama, llama.cpp server, etc.) selected
// via base URL. It implements embedding.Embedder.
type OpenAIClient struct {
	client    openai.Client
	model     string
	dimension int
}

type OpenAIOption func(*OpenAIClient)

func WithOpenAIModel(m string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.model = m
	}
}

func NewOpenAI(apiKey, baseURL string, dimension int, opts ...OpenAIOption) *OpenAIClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	c := &OpenAIClient{
		client:    openai.NewClient(reqOpts...),
		model:     string(openai.EmbeddingModelTextEmbedding3Small),
		dimension: dimension,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Dimensions: openai.Int(int64(c.dimension)),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.T(model.TagTransient))
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, goerr.New("empty embedding response", goerr.V("model", c.model))
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (c *OpenAIClient) Dimension() int {
	return c.dimension
}
