package service

import (
	"context"
	"errors"
	"time"

	"github.com/tamzid2001/docuflux/internal/domain"
	"github.com/tamzid2001/docuflux/internal/monitoring"

	"github.com/google/uuid"
)

const (
	pdfSuccessMessage   = "PDF processed, transcribed, and sheet created successfully"
	imageSuccessMessage = "Image processed, transcribed, and sheet created successfully"
	recordTimeout       = 5 * time.Second
)

// Pipeline runs normalize, extract and sink strictly in sequence. It owns the
// canonical image for the duration of a run and never deletes a created spreadsheet.
type Pipeline struct {
	normalizer domain.Normalizer
	extractor  domain.Extractor
	sink       domain.SinkWriter
	runs       domain.RunRepository
	metrics    *monitoring.Metrics
	logger     domain.Logger
	now        func() time.Time
}

// NewPipeline creates a new pipeline. runs and metrics may be nil.
func NewPipeline(
	normalizer domain.Normalizer,
	extractor domain.Extractor,
	sink domain.SinkWriter,
	runs domain.RunRepository,
	metrics *monitoring.Metrics,
	logger domain.Logger,
) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		extractor:  extractor,
		sink:       sink,
		runs:       runs,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

type pipelineRun struct {
	record *domain.RunRecord
	result *domain.PipelineResult
}

// Run processes one document. It always returns a result; failures are reported in
// result.Failure rather than as an error.
func (p *Pipeline) Run(ctx context.Context, doc *domain.InputDocument) *domain.PipelineResult {
	started := p.now()
	id := uuid.NewString()
	run := &pipelineRun{
		record: &domain.RunRecord{
			ID:         id,
			Title:      domain.DeriveTitle(doc.DisplayName, started),
			SourceName: doc.DisplayName,
			MediaKind:  domain.NormalizeMediaKind(doc.MediaKind),
			State:      domain.RunReceived,
			StartedAt:  started,
		},
		result: &domain.PipelineResult{RunID: id},
	}
	p.logger.Info("Pipeline run received", "run_id", id, "name", doc.DisplayName, "media_kind", doc.MediaKind, "bytes", len(doc.Data))

	if p.metrics != nil {
		p.metrics.InFlightRuns.Inc()
		defer p.metrics.InFlightRuns.Dec()
	}
	defer p.finish(ctx, run)

	p.transition(run, domain.RunNormalizing)
	var img *domain.CanonicalImage
	err := p.timed(domain.StageNormalize, func() error {
		var err error
		img, err = p.normalizer.Normalize(ctx, doc)
		return err
	})
	if err != nil {
		return p.fail(run, domain.StageNormalize, err)
	}
	defer img.Release()

	p.transition(run, domain.RunExtracting)
	var extracted *domain.ExtractionResult
	err = p.timed(domain.StageExtract, func() error {
		var err error
		extracted, err = p.extractor.Extract(ctx, img)
		return err
	})
	if err != nil {
		return p.fail(run, domain.StageExtract, err)
	}
	// the image is no longer needed once extraction returns
	img.Release()
	run.result.Rows = extracted.RowCount()
	run.record.Rows = extracted.RowCount()

	p.transition(run, domain.RunSinking)
	var resource *domain.SinkResource
	err = p.timed(domain.StageSink, func() error {
		var err error
		resource, err = p.sink.Commit(ctx, extracted, run.record.Title)
		return err
	})
	if err != nil {
		return p.fail(run, domain.StageSink, err)
	}

	run.result.Resource = resource
	run.result.Message = imageSuccessMessage
	if doc.IsPDF() {
		run.result.Message = pdfSuccessMessage
	}
	run.record.SheetURL = resource.URL
	p.transition(run, domain.RunDone)
	return run.result
}

func (p *Pipeline) transition(run *pipelineRun, next domain.RunState) {
	if run.record.State.IsTerminal() {
		p.logger.Warn("Ignoring state change after run finished", "run_id", run.record.ID, "state", run.record.State, "to", next)
		return
	}
	p.logger.Debug("Pipeline state change", "run_id", run.record.ID, "from", run.record.State, "to", next)
	run.record.State = next
}

func (p *Pipeline) timed(stage domain.Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	if p.metrics != nil {
		p.metrics.ObserveStage(string(stage), time.Since(start))
	}
	return err
}

// fail maps a stage error to the caller-facing failure. Errors that are not
// PipelineErrors get the stage's generic kind.
func (p *Pipeline) fail(run *pipelineRun, stage domain.Stage, err error) *domain.PipelineResult {
	var pe *domain.PipelineError
	if !errors.As(err, &pe) {
		pe = domain.NewPipelineError(defaultKind(stage), "unexpected failure", err)
	}

	run.result.Failure = &domain.Failure{
		Stage:  stage,
		Kind:   pe.Kind,
		Reason: pe.Message,
		Err:    err,
	}
	if pe.Kind == domain.KindSinkWriteError && pe.Resource != nil {
		run.result.Resource = pe.Resource
		run.record.SheetURL = pe.Resource.URL
		p.logger.Warn("Spreadsheet created but not written", "run_id", run.record.ID, "url", pe.Resource.URL)
	}

	run.record.Stage = stage
	run.record.Kind = pe.Kind
	run.record.Reason = pe.Message
	p.logger.Error("Pipeline run failed", err, "run_id", run.record.ID, "stage", stage, "kind", pe.Kind, "upstream_status", pe.Status)
	p.transition(run, domain.RunFailed)
	return run.result
}

func defaultKind(stage domain.Stage) domain.ErrorKind {
	switch stage {
	case domain.StageNormalize:
		return domain.KindRasterizationError
	case domain.StageExtract:
		return domain.KindUpstreamError
	default:
		return domain.KindSinkCreateError
	}
}

// finish records metrics and the run summary. Recording is best effort and runs
// even when the request context is already cancelled.
func (p *Pipeline) finish(ctx context.Context, run *pipelineRun) {
	finished := p.now()
	run.record.FinishedAt = &finished

	if p.metrics != nil {
		if f := run.result.Failure; f != nil {
			p.metrics.IncRun("failure", string(f.Stage), string(f.Kind))
		} else {
			p.metrics.IncRun("success", "", "")
		}
	}

	p.logger.Info("Pipeline run finished",
		"run_id", run.record.ID,
		"state", run.record.State,
		"rows", run.record.Rows,
		"sheet_url", run.record.SheetURL,
		"duration_ms", finished.Sub(run.record.StartedAt).Milliseconds(),
	)

	if p.runs == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := p.runs.Record(recordCtx, run.record); err != nil {
		p.logger.Warn("Failed to record pipeline run", "run_id", run.record.ID, "error", err)
	}
}
