package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tamzid2001/docuflux/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	schemaName     = "table_extraction"
)

// Model calls an OpenAI-compatible chat completions endpoint with a strict
// json_schema response format.
type Model struct {
	client openai.Client
	model  string
	logger domain.Logger
}

// NewModel creates the client once; it is shared by all runs. httpClient may be nil.
func NewModel(apiKey, baseURL, model string, httpClient *http.Client, logger domain.Logger) (*Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY must be provided for the openai provider")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		// one call per extraction; the pipeline never retries
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	logger.Info("OpenAI-compatible model ready", "base_url", baseURL, "model", model)
	return &Model{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

// ResponseSchema is the JSON Schema for {grid: [[string]], description: string}.
func ResponseSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"grid": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
			},
			"description": map[string]interface{}{"type": "string"},
		},
		"required":             []string{"grid", "description"},
		"additionalProperties": false,
	}
}

func (m *Model) Name() string { return "openai:" + m.model }

// Generate sends one chat completion carrying the image as a data URI.
func (m *Model) Generate(ctx context.Context, img *domain.CanonicalImage) ([]byte, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.buildParams(img))
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, domain.NewPipelineError(domain.KindUpstreamError, "completion has no choices", nil)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, domain.NewPipelineError(domain.KindUpstreamError, "model refused: "+msg.Refusal, nil)
	}
	return []byte(msg.Content), nil
}

func (m *Model) buildParams(img *domain.CanonicalImage) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:       m.model,
		Temperature: openai.Float(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(domain.ExtractionInstruction),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: img.DataURI(),
				}),
			}),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Strict: openai.Bool(true),
					Schema: ResponseSchema(),
				},
			},
		},
	}
}

// APIError is an error reply from the completions endpoint.
type APIError struct {
	Status int
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: status %d: %v", e.Status, e.Err)
}

func (e *APIError) Unwrap() error   { return e.Err }
func (e *APIError) StatusCode() int { return e.Status }

// classify attaches the HTTP status to API errors. Context and transport errors
// pass through unchanged.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{Status: apiErr.StatusCode, Err: err}
	}
	return err
}
