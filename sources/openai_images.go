package sources

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"storyreel-pipeline/types"
)

// OpenAIImageClient synthesizes images through the OpenAI Images API.
// Unlike Pollinations, generation happens inside Search: the API returns a
// short-lived URL that the cascade downloads like any other candidate.
type OpenAIImageClient struct {
	client openai.Client
	model  string
	pace   *pacer
}

// NewOpenAIImageClient creates an OpenAI image synthesis client
func NewOpenAIImageClient(apiKey, model string, gapSec float64) *OpenAIImageClient {
	if model == "" {
		model = "dall-e-3"
	}
	return &OpenAIImageClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		pace:   newPacer(gapSec),
	}
}

func (o *OpenAIImageClient) Name() string { return "openai-images" }

// Search generates one image for the query and returns it as a candidate
func (o *OpenAIImageClient) Search(ctx context.Context, query string, c Constraints) ([]types.MediaCandidate, error) {
	if query == "" {
		return nil, nil
	}
	if err := o.pace.wait(ctx); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: err}
	}

	prompt := query + ", cinematic wide shot, photorealistic, no text or watermarks"
	res, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(o.model),
		Size:   openai.ImageGenerateParamsSize1792x1024,
		N:      openai.Int(1),
	})
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: err}
	}
	if len(res.Data) == 0 || res.Data[0].URL == "" {
		// The API answered but produced nothing usable for this prompt
		return nil, nil
	}

	return []types.MediaCandidate{{
		SourceName:     o.Name(),
		URL:            res.Data[0].URL,
		ReportedWidth:  types.IntPtr(1792),
		ReportedHeight: types.IntPtr(1024),
		Rank:           0,
	}}, nil
}

// Describe reports the configured model, for run logs
func (o *OpenAIImageClient) Describe() string {
	return fmt.Sprintf("openai images (%s)", o.model)
}
