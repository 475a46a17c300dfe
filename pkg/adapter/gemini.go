package adapter

import (
	"context"

	"github.com/comind-network/cogindex/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GeminiClient generates embeddings through the Vertex AI Gemini API.
// It implements embedding.Embedder.
type GeminiClient struct {
	client    *genai.Client
	model     string
	dimension int
}

type GeminiOption func(*GeminiClient)

func WithGeminiModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.model = model
	}
}

func NewGemini(ctx context.Context, projectID, location string, dimension int, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:    client,
		model:     "gemini-embedding-001",
		dimension: dimension,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(g.dimension)),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.T(model.TagTransient))
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("empty embedding response", goerr.V("model", g.model))
	}

	return resp.Embeddings[0].Values, nil
}

func (g *GeminiClient) Dimension() int {
	return g.dimension
}
