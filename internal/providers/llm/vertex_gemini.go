package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// VertexGemini streams completions from a Gemini model on Vertex AI.
type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	if projectID == "" {
		return nil, errors.New("vertex project id is empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	m := c.GenerativeModel(modelName)
	m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(SummaryInstructions)}}
	m.SetTemperature(0.4)
	m.SetMaxOutputTokens(400)
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// StreamAnswer closes both channels when the model finishes, fails, or ctx is
// cancelled. At most one error is sent.
func (v *VertexGemini) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		it := v.model.GenerateContentStream(ctx, vertexgenai.Text(prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			for _, text := range candidateText(resp) {
				select {
				case out <- text:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return out, errs
}

// candidateText flattens the non-empty text parts of every candidate.
func candidateText(resp *vertexgenai.GenerateContentResponse) []string {
	var texts []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok && t != "" {
				texts = append(texts, string(t))
			}
		}
	}
	return texts
}
