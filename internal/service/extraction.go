package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"
)

// ExtractionClient calls a vision model once and validates what comes back.
type ExtractionClient struct {
	model   domain.VisionModel
	timeout time.Duration
	logger  domain.Logger
}

// NewExtractionClient creates a new extraction client
func NewExtractionClient(model domain.VisionModel, timeout time.Duration, logger domain.Logger) *ExtractionClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ExtractionClient{
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Extract issues one request for the image. There is no retry here.
func (c *ExtractionClient) Extract(ctx context.Context, img *domain.CanonicalImage) (*domain.ExtractionResult, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, domain.NewPipelineError(domain.KindUpstreamError, "no image to send", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.model.Generate(callCtx, img)
	elapsed := time.Since(start)
	if err != nil {
		classified := c.classify(ctx, callCtx, err)
		c.logger.Warn("Extraction call failed", "model", c.model.Name(), "elapsed_ms", elapsed.Milliseconds(), "error", err)
		return nil, classified
	}

	result, err := ParseExtractionPayload(raw)
	if err != nil {
		c.logger.Warn("Extraction response rejected", "model", c.model.Name(), "bytes", len(raw), "error", err)
		return nil, err
	}

	c.logger.Debug("Extraction completed", "model", c.model.Name(), "rows", len(result.Grid), "elapsed_ms", elapsed.Milliseconds())
	return result, nil
}

func (c *ExtractionClient) classify(parent, callCtx context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return domain.NewPipelineError(domain.KindUpstreamError, "extraction cancelled", err)
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewPipelineError(domain.KindExtractionTimeout,
			fmt.Sprintf("no response within %v", c.timeout), err)
	}
	var pe *domain.PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	upstream := domain.NewPipelineError(domain.KindUpstreamError, "extraction request failed", err)
	upstream.Status = domain.StatusOf(err)
	return upstream
}

// ParseExtractionPayload decodes a model response and checks it against the fixed
// schema {grid: [[string]], description: string}. Unknown keys are ignored. Nothing
// is recovered from prose or fenced output.
func ParseExtractionPayload(raw []byte) (*domain.ExtractionResult, error) {
	violation := func(msg string, cause error) error {
		return domain.NewPipelineError(domain.KindSchemaViolation, msg, cause)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, violation("empty response", nil)
	}

	var payload interface{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, violation("response is not valid JSON", err)
	}
	obj, ok := payload.(map[string]interface{})
	if !ok {
		return nil, violation("response is not a JSON object", nil)
	}

	gridValue, ok := obj["grid"]
	if !ok {
		return nil, violation("missing field grid", nil)
	}
	rows, ok := gridValue.([]interface{})
	if !ok {
		return nil, violation("grid is not an array", nil)
	}
	grid := make([][]string, 0, len(rows))
	for i, rowValue := range rows {
		cells, ok := rowValue.([]interface{})
		if !ok {
			return nil, violation(fmt.Sprintf("grid row %d is not an array", i), nil)
		}
		row := make([]string, 0, len(cells))
		for j, cellValue := range cells {
			cell, ok := cellValue.(string)
			if !ok {
				return nil, violation(fmt.Sprintf("grid cell [%d][%d] is not a string", i, j), nil)
			}
			row = append(row, cell)
		}
		grid = append(grid, row)
	}

	descValue, ok := obj["description"]
	if !ok {
		return nil, violation("missing field description", nil)
	}
	description, ok := descValue.(string)
	if !ok {
		return nil, violation("description is not a string", nil)
	}

	return &domain.ExtractionResult{Grid: grid, Description: description}, nil
}
