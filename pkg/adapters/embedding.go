package adapters

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

// Embedder is the C1 text-embedding adapter contract (§4.1: "accepts
// text, returns a fixed-dimension vector").
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// TitanEmbedder calls Amazon Titan Text Embeddings on Bedrock, the fixed
// per-process embedding model chosen for the deployment (§4.4: "Dimension
// is fixed per embedding model ... the choice is a process-wide
// constant").
type TitanEmbedder struct {
	client    *bedrockruntime.Client
	model     string
	dimension int
}

// NewTitanEmbedder constructs the embedding adapter for the given region.
// dimension must match the model variant (1536 for titan-embed-text-v1,
// configurable 256/512/1024 for v2 — 1536 is the process-wide default
// per §4.4/§9).
func NewTitanEmbedder(ctx context.Context, region, model string, dimension int) (*TitanEmbedder, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "loading AWS config", err)
	}
	return &TitanEmbedder{client: bedrockruntime.NewFromConfig(cfg), model: model, dimension: dimension}, nil
}

func (t *TitanEmbedder) Dimension() int { return t.dimension }

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

func (t *TitanEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanRequest{InputText: text})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "marshalling titan request", err)
	}
	out, err := t.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(t.model),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	var parsed titanResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "parsing titan response", err)
	}
	return parsed.Embedding, nil
}
