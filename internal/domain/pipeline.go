package domain

import "time"

// RunState tracks a single pipeline run.
type RunState string

const (
	RunReceived    RunState = "received"
	RunNormalizing RunState = "normalizing"
	RunExtracting  RunState = "extracting"
	RunSinking     RunState = "sinking"
	RunDone        RunState = "done"
	RunFailed      RunState = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s RunState) IsTerminal() bool {
	return s == RunDone || s == RunFailed
}

// Failure describes why a run stopped.
type Failure struct {
	Stage  Stage     `json:"stage"`
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
	Err    error     `json:"-"`
}

// PipelineResult is the outcome of one run: either a created resource or a failure.
// A SinkWriteError failure also carries the resource that was left empty.
type PipelineResult struct {
	RunID    string        `json:"runId"`
	Resource *SinkResource `json:"resource,omitempty"`
	Message  string        `json:"message,omitempty"`
	Failure  *Failure      `json:"failure,omitempty"`
	Rows     int           `json:"rows"`
}

// Succeeded reports whether the run finished without failure.
func (r *PipelineResult) Succeeded() bool {
	return r != nil && r.Failure == nil
}

// SheetURL returns the resource URL, or "" when none was created.
func (r *PipelineResult) SheetURL() string {
	if r == nil || r.Resource == nil {
		return ""
	}
	return r.Resource.URL
}

// RunRecord is the persisted summary of a run.
type RunRecord struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	SourceName string     `json:"source_name"`
	MediaKind  string     `json:"media_kind"`
	State      RunState   `json:"state"`
	Stage      Stage      `json:"stage,omitempty"`
	Kind       ErrorKind  `json:"error_kind,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	SheetURL   string     `json:"sheet_url,omitempty"`
	Rows       int        `json:"rows"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// BatchState is the lifecycle of an asynchronous batch.
type BatchState string

const (
	BatchRunning  BatchState = "running"
	BatchComplete BatchState = "complete"
)

// BatchItem is the per-document entry of a batch.
type BatchItem struct {
	Index    int       `json:"index"`
	Name     string    `json:"name"`
	Done     bool      `json:"done"`
	SheetURL string    `json:"sheetUrl,omitempty"`
	Stage    Stage     `json:"stage,omitempty"`
	Kind     ErrorKind `json:"kind,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// BatchStatus is the progress snapshot published while a batch runs.
type BatchStatus struct {
	ID        string      `json:"batchId"`
	State     BatchState  `json:"state"`
	Total     int         `json:"total"`
	Completed int         `json:"completed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	FirstURL  string      `json:"firstSheetUrl,omitempty"`
	Items     []BatchItem `json:"items"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// BatchResult aggregates a finished batch. Results are in input order.
type BatchResult struct {
	ID        string            `json:"batchId"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	FirstURL  string            `json:"firstSheetUrl,omitempty"`
	Results   []*PipelineResult `json:"results"`
}

// URLs returns the sheet URLs of the successful items in input order.
func (b *BatchResult) URLs() []string {
	var urls []string
	for _, r := range b.Results {
		if r.Succeeded() {
			urls = append(urls, r.SheetURL())
		}
	}
	return urls
}
