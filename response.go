package refcache

import (
	"context"
	"time"

	"goa.design/refcache/preview"
	"goa.design/refcache/rcerr"
	"goa.design/refcache/task"
)

// ResponseFormat selects the detail level of a processing response. It
// has no effect on complete or preview responses.
type ResponseFormat string

const (
	// Minimal carries only RefID and Status.
	Minimal ResponseFormat = "MINIMAL"
	// Standard adds StartedAt, RetryCount, and CanRetry.
	Standard ResponseFormat = "STANDARD"
	// Full adds Progress and EtaSeconds.
	Full ResponseFormat = "FULL"
)

// Response is the structured value every public read operation returns:
// exactly one of its three shapes is populated, selected by Kind (spec
// §3 "Structured response").
type Response struct {
	RefID string `json:"ref_id"`
	Kind  string `json:"-"`

	// Complete shape.
	Value      any  `json:"value,omitempty"`
	IsComplete bool `json:"is_complete"`
	Size       int  `json:"size,omitempty"`
	TotalItems int  `json:"total_items,omitempty"`

	// Preview shape.
	Preview      any              `json:"preview,omitempty"`
	Strategy     preview.Strategy `json:"strategy,omitempty"`
	OriginalSize int              `json:"original_size,omitempty"`
	PreviewSize  int              `json:"preview_size,omitempty"`
	Page         int              `json:"page,omitempty"`
	TotalPages   int              `json:"total_pages,omitempty"`
	Message      string           `json:"message,omitempty"`

	// Processing shape.
	Status     string         `json:"status,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	Progress   *task.Progress `json:"progress,omitempty"`
	EtaSeconds *float64       `json:"eta_seconds,omitempty"`
	RetryCount int            `json:"retry_count,omitempty"`
	CanRetry   bool           `json:"can_retry,omitempty"`
}

const (
	kindComplete   = "complete"
	kindPreview    = "preview"
	kindProcessing = "processing"
)

// taskResponse checks the active-task registry for refID before the
// stored entry is consulted. ok is true when a response was produced
// from task state (processing or a terminal failure/cancellation); ok
// is false when there is no active task and the caller should fall
// through to loading the stored entry.
func (s *Store) taskResponse(ctx context.Context, refID string, format ResponseFormat) (Response, bool, error) {
	if format == "" {
		format = Standard
	}
	s.mu.Lock()
	taskID, tracked := s.activeTasks[refID]
	s.mu.Unlock()
	if !tracked {
		return Response{}, false, nil
	}

	rec, ok := s.tasks.GetStatus(taskID)
	if !ok {
		s.mu.Lock()
		delete(s.activeTasks, refID)
		s.mu.Unlock()
		return Response{}, false, nil
	}

	switch rec.Status {
	case task.Failed:
		return Response{}, true, &rcerr.TaskFailed{RefID: refID, Message: rec.LastError}
	case task.Cancelled:
		return Response{}, true, &rcerr.Cancelled{RefID: refID}
	case task.Complete:
		// The task finished; the entry should now be in the backend (the
		// caller that submitted it stores the result before marking the
		// task terminal). Fall through to the normal entry load.
		s.mu.Lock()
		delete(s.activeTasks, refID)
		s.mu.Unlock()
		return Response{}, false, nil
	default:
		return s.processingResponse(refID, rec, format), true, nil
	}
}

// processingResponse builds the "processing" response shape for an
// in-flight task record, honoring the requested detail level (spec
// §4.11 "async_response_format").
func (s *Store) processingResponse(refID string, rec task.Record, format ResponseFormat) Response {
	resp := Response{
		RefID:  refID,
		Kind:   kindProcessing,
		Status: "processing",
	}
	if format == Minimal {
		return resp
	}

	started := rec.StartedAt
	resp.StartedAt = &started
	resp.RetryCount = rec.RetryAttempts
	resp.CanRetry = rec.RetryAttempts < rec.MaxRetries

	if format == Full {
		resp.Progress = rec.Progress
		if rec.Progress != nil && rec.Progress.Percentage > 0 {
			elapsed := time.Since(rec.StartedAt).Seconds()
			remaining := elapsed * (100 - rec.Progress.Percentage) / rec.Progress.Percentage
			resp.EtaSeconds = &remaining
		}
	}
	return resp
}

// buildResponse measures value and emits a complete response if it
// fits within the effective max_size, or a preview response otherwise.
// opts.MaxSize, when set, is the highest-precedence override; otherwise
// the store's configured default applies.
func (s *Store) buildResponse(refID string, value any, opts GetOptions) (Response, error) {
	maxSize := s.maxSize
	if opts.MaxSize > 0 {
		maxSize = opts.MaxSize
	}

	n, err := s.measurer.Measure(value)
	if err != nil {
		return Response{}, err
	}

	if n <= maxSize && opts.Page == 0 {
		total := 0
		if list, ok := value.([]any); ok {
			total = len(list)
		}
		return Response{
			RefID:      refID,
			Kind:       kindComplete,
			Value:      value,
			IsComplete: true,
			Size:       n,
			TotalItems: total,
		}, nil
	}

	strategy := s.defaultStrategy
	if opts.Page > 0 {
		strategy = preview.Paginate
	}
	gen := preview.New(strategy)
	result, err := gen.Generate(value, maxSize, s.measurer, opts.Page, opts.PageSize)
	if err != nil {
		return Response{}, err
	}

	return Response{
		RefID:        refID,
		Kind:         kindPreview,
		IsComplete:   false,
		Preview:      result.Preview,
		Strategy:     result.Strategy,
		TotalItems:   result.TotalItems,
		OriginalSize: result.OriginalSize,
		PreviewSize:  result.PreviewSize,
		Page:         result.Page,
		TotalPages:   result.TotalPages,
		Message:      result.Message,
	}, nil
}
