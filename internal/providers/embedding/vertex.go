package embedding

import (
	"context"
	"errors"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// VertexEmbedder calls a Vertex AI text embedding model. Query text is
// embedded with the RETRIEVAL_QUERY task type to match chunks indexed
// as RETRIEVAL_DOCUMENT.
type VertexEmbedder struct {
	client   *aiplatform.PredictionClient
	endpoint string
}

func NewVertexEmbedder(ctx context.Context, projectID, location, model string) (*VertexEmbedder, error) {
	if projectID == "" || location == "" {
		return nil, errors.New("embedding: project and location are required")
	}
	if model == "" {
		model = "text-embedding-004"
	}

	c, err := aiplatform.NewPredictionClient(ctx,
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", location)))
	if err != nil {
		return nil, err
	}
	return &VertexEmbedder{
		client:   c,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", projectID, location, model),
	}, nil
}

func (e *VertexEmbedder) Close() error { return e.client.Close() }

func (e *VertexEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	instance, err := structpb.NewValue(map[string]any{
		"content":   text,
		"task_type": "RETRIEVAL_QUERY",
	})
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:  e.endpoint,
		Instances: []*structpb.Value{instance},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.GetPredictions()) == 0 {
		return nil, errors.New("embedding: empty prediction")
	}
	return parsePrediction(resp.GetPredictions()[0])
}

// parsePrediction reads {"embeddings": {"values": [...]}}.
func parsePrediction(v *structpb.Value) ([]float32, error) {
	values := v.GetStructValue().GetFields()["embeddings"].GetStructValue().GetFields()["values"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, errors.New("embedding: prediction has no values")
	}
	out := make([]float32, len(values))
	for i, x := range values {
		out[i] = float32(x.GetNumberValue())
	}
	return out, nil
}

var _ Provider = (*VertexEmbedder)(nil)
