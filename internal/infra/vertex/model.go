package vertex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tamzid2001/docuflux/internal/domain"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// generator is the slice of *genai.GenerativeModel used here.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Model is a Gemini vision model on Vertex AI constrained to the grid/description schema.
type Model struct {
	client *genai.Client
	model  generator
	name   string
	logger domain.Logger
}

// NewModel creates the Vertex client once; it is shared by all runs.
func NewModel(ctx context.Context, projectID, location, modelName string, logger domain.Logger, opts ...option.ClientOption) (*Model, error) {
	if projectID == "" {
		return nil, fmt.Errorf("google project id must be provided for the vertex provider")
	}
	client, err := genai.NewClient(ctx, projectID, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex ai client: %w", err)
	}

	gm := client.GenerativeModel(modelName)
	Configure(gm)

	logger.Info("Vertex AI model ready", "project", projectID, "location", location, "model", modelName)
	return &Model{client: client, model: gm, name: modelName, logger: logger}, nil
}

// Configure declares the JSON response schema on the model.
func Configure(gm *genai.GenerativeModel) {
	gm.SetTemperature(0)
	gm.ResponseMIMEType = "application/json"
	gm.ResponseSchema = ResponseSchema()
}

// ResponseSchema is {grid: [[string]], description: string}, both required.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"grid": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
			},
			"description": {Type: genai.TypeString},
		},
		Required: []string{"grid", "description"},
	}
}

func (m *Model) Name() string { return "vertex:" + m.name }

// Generate sends the image and the fixed instruction and returns the raw JSON text.
func (m *Model) Generate(ctx context.Context, img *domain.CanonicalImage) ([]byte, error) {
	resp, err := m.model.GenerateContent(ctx,
		genai.ImageData(img.Format(), img.Data),
		genai.Text(domain.ExtractionInstruction),
	)
	if err != nil {
		return nil, classify(err)
	}
	return responseText(resp)
}

func (m *Model) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, domain.NewPipelineError(domain.KindUpstreamError, "model returned no candidates", nil)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return []byte(b.String()), nil
}

// APIError is a Vertex call failure with the equivalent HTTP status.
type APIError struct {
	Code   codes.Code
	Status int
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vertex ai: %s: %v", e.Code, e.Err)
}

func (e *APIError) Unwrap() error   { return e.Err }
func (e *APIError) StatusCode() int { return e.Status }

var httpStatus = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.FailedPrecondition: http.StatusBadRequest,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Internal:           http.StatusInternalServerError,
	codes.Unavailable:        http.StatusServiceUnavailable,
}

// classify keeps context errors recognizable and attaches a status to the rest.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return domain.NewPipelineError(domain.KindUpstreamError, "model response was blocked", err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	case codes.Canceled:
		return fmt.Errorf("%w: %v", context.Canceled, err)
	}
	code := httpStatus[st.Code()]
	if code == 0 {
		code = http.StatusBadGateway
	}
	return &APIError{Code: st.Code(), Status: code, Err: err}
}
