package upload

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"

	"github.com/trezcool/orbit/core"
)

var nowFunc = time.Now // mockable

// Coordinator owns one batch of upload tasks bound to one collection.
// Tasks run concurrently; the task table is guarded by mu.
type Coordinator struct {
	transport Transport
	sink      Sink
	logger    core.Logger

	// pubMu serializes progress publication so published values never decrease.
	pubMu         sync.Mutex
	lastPublished float64

	mu           sync.Mutex
	id           string
	collectionID string
	title        string
	uploadedBy   string
	tasks        []Task
	files        []File
	started      bool
	cancelled    bool
	completed    bool
	cancel       context.CancelFunc
	done         chan struct{}
	createdAt    time.Time
	finishedAt   time.Time
}

// NewCoordinator returns a Coordinator with no batch. sink may be nil.
func NewCoordinator(transport Transport, sink Sink, logger core.Logger) *Coordinator {
	vala.BeginValidation().Validate(
		core.IsNotNil(transport, "transport"),
		core.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	if sink == nil {
		sink = nopSink{}
	}
	return &Coordinator{
		transport: transport,
		sink:      sink,
		logger:    logger,
		id:        uuid.New().String(),
		done:      make(chan struct{}),
	}
}

func (c *Coordinator) ID() string { return c.id }

// StartBatch validates the batch then submits every file at once.
// Nothing reaches the transport when validation fails.
func (c *Coordinator) StartBatch(ctx context.Context, nb NewBatch) error {
	nb.CollectionID = core.CleanString(nb.CollectionID)
	nb.Title = core.CleanString(nb.Title)

	var flds []core.FieldError
	if nb.CollectionID == "" {
		flds = append(flds, core.FieldError{Field: "collectionId", Error: "this field is required"})
	}
	if nb.Title == "" {
		flds = append(flds, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if len(nb.Files) == 0 {
		flds = append(flds, core.FieldError{Field: "files", Error: "select at least one file"})
	}
	if flds != nil {
		return core.NewValidationError(errInvalidBatch, flds...)
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrBatchStarted
	}
	c.started = true
	c.collectionID = nb.CollectionID
	c.title = nb.Title
	c.uploadedBy = nb.UploadedBy
	c.createdAt = nowFunc().UTC()
	c.files = make([]File, len(nb.Files))
	c.tasks = make([]Task, len(nb.Files))
	for i, f := range nb.Files {
		f.MIMEType = DetectMIMEType(f.Name, f.MIMEType)
		c.files[i] = f
		c.tasks[i] = Task{
			Index:  i,
			Name:   f.Name,
			Size:   f.Size,
			Type:   Classify(f.MIMEType),
			Status: StatusPending,
		}
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.logger.Info("upload batch started", map[string]interface{}{
		"batch": c.id, "collection": nb.CollectionID, "files": len(nb.Files),
	})
	for i := range nb.Files {
		go c.run(ctx, i)
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context, i int) {
	c.mu.Lock()
	if c.tasks[i].Status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.tasks[i].Status = StatusInFlight
	req := Request{
		BatchID:      c.id,
		CollectionID: c.collectionID,
		Title:        c.title,
		UploadedBy:   c.uploadedBy,
		Type:         c.tasks[i].Type,
		File:         c.files[i],
	}
	c.mu.Unlock()

	err := c.transport.UploadFile(ctx, req, func(percent int) { c.OnProgress(i, percent) })
	if err == nil {
		c.OnTaskSucceeded(i)
		return
	}
	reason := err.Error()
	if ctx.Err() != nil && c.isCancelled() {
		reason = ReasonCancelled
	}
	c.OnTaskFailed(i, reason)
}

// OnProgress records the progress of one task. Values lower than the current one
// and updates to terminal tasks are ignored.
func (c *Coordinator) OnProgress(taskIndex, percent int) {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}

	c.mu.Lock()
	if taskIndex < 0 || taskIndex >= len(c.tasks) {
		c.mu.Unlock()
		return
	}
	t := &c.tasks[taskIndex]
	if t.Status.Terminal() || percent <= t.Progress {
		c.mu.Unlock()
		return
	}
	if t.Status == StatusPending {
		t.Status = StatusInFlight
	}
	t.Progress = percent
	c.mu.Unlock()

	c.publishProgress()
}

func (c *Coordinator) OnTaskSucceeded(taskIndex int) {
	c.mu.Lock()
	if taskIndex < 0 || taskIndex >= len(c.tasks) || c.tasks[taskIndex].Status.Terminal() {
		c.mu.Unlock()
		return
	}
	c.tasks[taskIndex].Status = StatusSucceeded
	c.tasks[taskIndex].Progress = 100
	c.files[taskIndex] = File{Name: c.files[taskIndex].Name} // payload no longer owned
	c.mu.Unlock()

	c.publishProgress()
	c.completeIfDone()
}

// OnTaskFailed marks one task as failed. Sibling tasks carry on.
func (c *Coordinator) OnTaskFailed(taskIndex int, reason string) {
	c.mu.Lock()
	if taskIndex < 0 || taskIndex >= len(c.tasks) || c.tasks[taskIndex].Status.Terminal() {
		c.mu.Unlock()
		return
	}
	t := &c.tasks[taskIndex]
	t.Status = StatusFailed
	t.Reason = reason
	failure := core.TaskFailure{TaskIndex: t.Index, TaskName: t.Name, Reason: reason}
	c.files[taskIndex] = File{Name: t.Name}
	c.mu.Unlock()

	c.logger.Warn(failure.Error(), map[string]interface{}{"batch": c.id})
	c.completeIfDone()
}

// AggregateProgress is the unweighted mean progress of all the tasks, recomputed on every call.
func (c *Coordinator) AggregateProgress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aggregateProgress()
}

func (c *Coordinator) aggregateProgress() float64 {
	if len(c.tasks) == 0 {
		return 0
	}
	var sum int
	for _, t := range c.tasks {
		sum += t.Progress
	}
	return float64(sum) / float64(len(c.tasks))
}

// IsBatchComplete scans every task: the batch is complete once all of them are terminal,
// whatever order they finished in.
func (c *Coordinator) IsBatchComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allTerminal()
}

func (c *Coordinator) allTerminal() bool {
	if !c.started || len(c.tasks) == 0 {
		return false
	}
	for _, t := range c.tasks {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// CancelBatch fails every task that is not terminal yet and cancels the context of in-flight uploads.
// Transports that ignore their context may still finish sending; their outcome is dropped.
func (c *Coordinator) CancelBatch() {
	c.mu.Lock()
	if !c.started || c.completed {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	for i := range c.tasks {
		if !c.tasks[i].Status.Terminal() {
			c.tasks[i].Status = StatusFailed
			c.tasks[i].Reason = ReasonCancelled
			c.files[i] = File{Name: c.tasks[i].Name}
		}
	}
	c.cancel()
	c.mu.Unlock()

	c.logger.Info("upload batch cancelled", map[string]interface{}{"batch": c.id})
	c.completeIfDone()
}

func (c *Coordinator) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Failures lists the failed tasks in selection order.
func (c *Coordinator) Failures() []core.TaskFailure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures()
}

func (c *Coordinator) failures() []core.TaskFailure {
	failures := make([]core.TaskFailure, 0)
	for _, t := range c.tasks {
		if t.Status == StatusFailed {
			failures = append(failures, core.TaskFailure{TaskIndex: t.Index, TaskName: t.Name, Reason: t.Reason})
		}
	}
	return failures
}

func (c *Coordinator) View() Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := Batch{
		ID:                c.id,
		CollectionID:      c.collectionID,
		Title:             c.title,
		UploadedBy:        c.uploadedBy,
		Tasks:             append([]Task(nil), c.tasks...),
		AggregateProgress: c.aggregateProgress(),
		Complete:          c.allTerminal(),
		Cancelled:         c.cancelled,
		Failures:          c.failures(),
		CreatedAt:         c.createdAt,
	}
	if c.completed {
		finishedAt := c.finishedAt
		b.FinishedAt = &finishedAt
	}
	return b
}

func (c *Coordinator) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result()
}

func (c *Coordinator) result() Result {
	r := Result{
		BatchID:      c.id,
		CollectionID: c.collectionID,
		Title:        c.title,
		UploadedBy:   c.uploadedBy,
		Total:        len(c.tasks),
		Succeeded:    make([]string, 0, len(c.tasks)),
		Failures:     c.failures(),
		Cancelled:    c.cancelled,
	}
	for _, t := range c.tasks {
		if t.Status == StatusSucceeded {
			r.Succeeded = append(r.Succeeded, t.Name)
		}
	}
	return r
}

// Done is closed once every task is terminal and the sink was told.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Wait blocks until every task is terminal or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		return c.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (c *Coordinator) finished() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishedAt, c.completed
}

func (c *Coordinator) publishProgress() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	percent := c.aggregateProgress()
	c.mu.Unlock()

	if percent <= c.lastPublished {
		return
	}
	c.lastPublished = percent
	c.sink.OnAggregateProgressChanged(c.id, percent)
}

// completeIfDone closes the batch once all tasks are terminal. Completion is signalled to the sink
// when at least one task succeeded and the batch was not cancelled.
func (c *Coordinator) completeIfDone() {
	c.mu.Lock()
	if c.completed || !c.allTerminal() {
		c.mu.Unlock()
		return
	}
	c.completed = true
	c.finishedAt = nowFunc().UTC()
	c.cancel()
	result := c.result()
	c.mu.Unlock()

	c.logger.Info("upload batch finished", map[string]interface{}{
		"batch": c.id, "succeeded": len(result.Succeeded), "failed": len(result.Failures),
	})
	if !result.Cancelled && result.AnySucceeded() {
		c.sink.OnBatchComplete(result)
	}
	close(c.done)
}
