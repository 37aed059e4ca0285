package upload

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/orbit/core"
	logsvc "github.com/trezcool/orbit/services/logger"
)

// recordingSink keeps everything published to it.
type recordingSink struct {
	mu        sync.Mutex
	progress  []float64
	completed []Result
}

func (s *recordingSink) OnAggregateProgressChanged(_ string, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, percent)
}

func (s *recordingSink) OnBatchComplete(result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, result)
}

func (s *recordingSink) snapshot() ([]float64, []Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.progress...), append([]Result(nil), s.completed...)
}

// heldTransport blocks every upload until released or cancelled, letting tests drive the callbacks.
type heldTransport struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func newHeldTransport() *heldTransport {
	return &heldTransport{release: make(chan struct{})}
}

func (tr *heldTransport) UploadFile(ctx context.Context, _ Request, _ ProgressFunc) error {
	tr.mu.Lock()
	tr.calls++
	tr.mu.Unlock()
	select {
	case <-tr.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (tr *heldTransport) callCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.calls
}

// scriptedTransport reads the file, reports progress steps then fails the files listed in failures.
type scriptedTransport struct {
	steps    []int
	failures map[string]string
	delays   map[string]time.Duration

	mu       sync.Mutex
	received map[string][]byte
}

func (tr *scriptedTransport) UploadFile(ctx context.Context, req Request, progress ProgressFunc) error {
	if d, ok := tr.delays[req.File.Name]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	rc, err := req.File.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	tr.mu.Lock()
	if tr.received == nil {
		tr.received = make(map[string][]byte)
	}
	tr.received[req.File.Name] = data
	tr.mu.Unlock()

	for _, step := range tr.steps {
		progress(step)
	}
	if reason, ok := tr.failures[req.File.Name]; ok {
		return errors.New(reason)
	}
	progress(100)
	return nil
}

func memFile(name, mimeType, content string) File {
	return File{
		Name:     name,
		Size:     int64(len(content)),
		MIMEType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewBufferString(content)), nil
		},
	}
}

func newTestCoordinator(tr Transport) (*Coordinator, *recordingSink) {
	sink := new(recordingSink)
	return NewCoordinator(tr, sink, logsvc.NewDiscardLogger()), sink
}

func waitDone(t *testing.T, c *Coordinator) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Wait(ctx)
	require.NoError(t, err, "batch did not complete in time")
	return res
}

func TestCoordinator_StartBatch_validation(t *testing.T) {
	files := []File{memFile("a.pdf", "application/pdf", "a")}

	tests := []struct {
		name       string
		nb         NewBatch
		wantFields []string
	}{
		{name: "empty collection", nb: NewBatch{Title: "Week 3 Notes", Files: files}, wantFields: []string{"collectionId"}},
		{name: "blank title", nb: NewBatch{CollectionID: "class-1", Title: "   ", Files: files}, wantFields: []string{"title"}},
		{name: "no files", nb: NewBatch{CollectionID: "class-1", Title: "Week 3 Notes"}, wantFields: []string{"files"}},
		{name: "everything missing", nb: NewBatch{}, wantFields: []string{"collectionId", "title", "files"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newHeldTransport()
			c, _ := newTestCoordinator(tr)

			err := c.StartBatch(context.Background(), tt.nb)

			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "expected *core.ValidationError, got %v", err)
			var fields []string
			for _, f := range vErr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.wantFields, fields)

			time.Sleep(10 * time.Millisecond)
			assert.Zero(t, tr.callCount(), "transport must not be called")
			assert.False(t, c.IsBatchComplete())
		})
	}
}

func TestCoordinator_StartBatch_twice(t *testing.T) {
	tr := newHeldTransport()
	c, _ := newTestCoordinator(tr)
	nb := NewBatch{CollectionID: "class-1", Title: "Week 3 Notes", Files: []File{memFile("a.pdf", "application/pdf", "a")}}

	require.NoError(t, c.StartBatch(context.Background(), nb))
	assert.Equal(t, ErrBatchStarted, c.StartBatch(context.Background(), nb))

	close(tr.release)
	waitDone(t, c)
}

func TestCoordinator_partialFailure(t *testing.T) {
	tr := newHeldTransport()
	c, sink := newTestCoordinator(tr)

	err := c.StartBatch(context.Background(), NewBatch{
		CollectionID: "class-1",
		Title:        "Week 3 Notes",
		Files: []File{
			memFile("fileA.pdf", "application/pdf", "aaaa"),
			memFile("fileB.pptx", "application/vnd.openxmlformats-officedocument.presentationml.presentation", "bb"),
		},
	})
	require.NoError(t, err)

	c.OnProgress(0, 100)
	c.OnProgress(1, 40)
	c.OnTaskSucceeded(0)
	assert.False(t, c.IsBatchComplete())
	c.OnTaskFailed(1, "connection reset")

	assert.True(t, c.IsBatchComplete())
	assert.Equal(t, 70.0, c.AggregateProgress())
	assert.Equal(t, []core.TaskFailure{{TaskIndex: 1, TaskName: "fileB.pptx", Reason: "connection reset"}}, c.Failures())

	res := waitDone(t, c)
	assert.Equal(t, []string{"fileA.pdf"}, res.Succeeded)
	assert.Len(t, res.Failures, 1)
	assert.Equal(t, "failed to upload fileB.pptx: connection reset", res.Failures[0].Error())

	progress, completed := sink.snapshot()
	assert.Equal(t, []float64{50, 70}, progress)
	require.Len(t, completed, 1)
	assert.Equal(t, c.ID(), completed[0].BatchID)

	view := c.View()
	assert.Equal(t, TypePDF, view.Tasks[0].Type)
	assert.Equal(t, TypePPT, view.Tasks[1].Type)
	assert.Equal(t, StatusSucceeded, view.Tasks[0].Status)
	assert.Equal(t, StatusFailed, view.Tasks[1].Status)
	assert.NotNil(t, view.FinishedAt)

	close(tr.release)
}

func TestCoordinator_lastSubmittedFinishesFirst(t *testing.T) {
	tr := newHeldTransport()
	c, sink := newTestCoordinator(tr)
	nb := NewBatch{CollectionID: "class-1", Title: "Lab", Files: []File{
		memFile("1.txt", "text/plain", "1"),
		memFile("2.txt", "text/plain", "2"),
		memFile("3.txt", "text/plain", "3"),
	}}
	require.NoError(t, c.StartBatch(context.Background(), nb))

	c.OnTaskSucceeded(2)
	assert.False(t, c.IsBatchComplete(), "last submitted task finishing must not complete the batch")
	c.OnTaskSucceeded(0)
	assert.False(t, c.IsBatchComplete())
	select {
	case <-c.Done():
		t.Fatal("batch completed too early")
	default:
	}
	c.OnTaskSucceeded(1)
	assert.True(t, c.IsBatchComplete())

	res := waitDone(t, c)
	assert.Equal(t, []string{"1.txt", "2.txt", "3.txt"}, res.Succeeded)
	_, completed := sink.snapshot()
	assert.Len(t, completed, 1)
	close(tr.release)
}

func TestCoordinator_progressIsMonotonic(t *testing.T) {
	tr := newHeldTransport()
	c, sink := newTestCoordinator(tr)
	nb := NewBatch{CollectionID: "class-1", Title: "Lab", Files: []File{
		memFile("a.txt", "text/plain", "a"),
		memFile("b.txt", "text/plain", "b"),
	}}
	require.NoError(t, c.StartBatch(context.Background(), nb))

	c.OnProgress(0, 30)
	c.OnProgress(0, 20) // stale, ignored
	c.OnProgress(1, 150)
	c.OnProgress(5, 50) // unknown task
	assert.Equal(t, 65.0, c.AggregateProgress())

	c.OnTaskFailed(0, "disk full")
	c.OnProgress(0, 90) // terminal, ignored
	assert.Equal(t, 65.0, c.AggregateProgress())

	c.OnTaskSucceeded(1)
	assert.Equal(t, 65.0, c.AggregateProgress())

	progress, _ := sink.snapshot()
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	close(tr.release)
}

func TestCoordinator_concurrentTransport(t *testing.T) {
	tr := &scriptedTransport{
		steps:    []int{10, 25, 40, 60, 80},
		failures: map[string]string{"broken.zip": "checksum mismatch"},
		delays:   map[string]time.Duration{"a.pdf": 20 * time.Millisecond},
	}
	c, sink := newTestCoordinator(tr)

	files := []File{
		memFile("a.pdf", "application/pdf", "pdf-content"),
		memFile("broken.zip", "application/zip", "zip"),
		memFile("c.png", "", "png"),
		memFile("d.txt", "text/plain", "text"),
	}
	require.NoError(t, c.StartBatch(context.Background(), NewBatch{
		CollectionID: "class-9", Title: "Resources", UploadedBy: "teacher@school.test", Files: files,
	}))

	res := waitDone(t, c)
	assert.True(t, c.IsBatchComplete())
	assert.ElementsMatch(t, []string{"a.pdf", "c.png", "d.txt"}, res.Succeeded)
	assert.Equal(t, []core.TaskFailure{{TaskIndex: 1, TaskName: "broken.zip", Reason: "checksum mismatch"}}, res.Failures)
	assert.Equal(t, (100+80+100+100)/4.0, c.AggregateProgress())
	assert.Equal(t, "pdf-content", string(tr.received["a.pdf"]))
	assert.Equal(t, TypeImage, c.View().Tasks[2].Type, "type guessed from extension")

	progress, completed := sink.snapshot()
	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1], "published progress must increase")
	}
	require.Len(t, completed, 1)
	assert.Equal(t, "teacher@school.test", completed[0].UploadedBy)
}

func TestCoordinator_allFailed(t *testing.T) {
	tr := &scriptedTransport{failures: map[string]string{"a.txt": "denied", "b.txt": "denied"}}
	c, sink := newTestCoordinator(tr)
	require.NoError(t, c.StartBatch(context.Background(), NewBatch{
		CollectionID: "class-1", Title: "x",
		Files: []File{memFile("a.txt", "text/plain", "a"), memFile("b.txt", "text/plain", "b")},
	}))

	res := waitDone(t, c)
	assert.Empty(t, res.Succeeded)
	assert.Len(t, res.Failures, 2)
	_, completed := sink.snapshot()
	assert.Empty(t, completed, "completion is only signalled when something succeeded")
}

func TestCoordinator_CancelBatch(t *testing.T) {
	tr := newHeldTransport()
	c, sink := newTestCoordinator(tr)
	require.NoError(t, c.StartBatch(context.Background(), NewBatch{
		CollectionID: "class-1", Title: "x",
		Files: []File{memFile("a.txt", "text/plain", "a"), memFile("b.txt", "text/plain", "b")},
	}))

	c.OnProgress(1, 50)
	c.OnTaskSucceeded(0)
	c.CancelBatch()

	res := waitDone(t, c)
	assert.True(t, res.Cancelled)
	assert.Equal(t, []string{"a.txt"}, res.Succeeded)
	assert.Equal(t, []core.TaskFailure{{TaskIndex: 1, TaskName: "b.txt", Reason: ReasonCancelled}}, res.Failures)

	// late callbacks from the transport are dropped
	c.OnProgress(1, 90)
	c.OnTaskSucceeded(1)
	assert.Equal(t, StatusFailed, c.View().Tasks[1].Status)
	assert.Equal(t, 75.0, c.AggregateProgress())

	_, completed := sink.snapshot()
	assert.Empty(t, completed)

	c.CancelBatch() // no-op once finished
}

func TestCoordinator_Wait_contextDone(t *testing.T) {
	tr := newHeldTransport()
	c, _ := newTestCoordinator(tr)
	require.NoError(t, c.StartBatch(context.Background(), NewBatch{
		CollectionID: "class-1", Title: "x", Files: []File{memFile("a.txt", "text/plain", "a")},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Wait(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)

	close(tr.release)
	waitDone(t, c)
}

type instantTransport struct{}

func (instantTransport) UploadFile(_ context.Context, _ Request, progress ProgressFunc) error {
	progress(100)
	return nil
}

func TestNewCoordinator(t *testing.T) {
	t.Run("value transport", func(t *testing.T) {
		var c *Coordinator
		require.NotPanics(t, func() { c = NewCoordinator(instantTransport{}, nil, logsvc.NewDiscardLogger()) })
		require.NoError(t, c.StartBatch(context.Background(), NewBatch{
			CollectionID: "class-1", Title: "Week 1", Files: []File{memFile("a.txt", "text/plain", "a")},
		}))

		res := waitDone(t, c)
		assert.Len(t, res.Succeeded, 1)
		assert.Empty(t, res.Failures)
	})

	t.Run("nil transport", func(t *testing.T) {
		assert.Panics(t, func() { NewCoordinator(nil, nil, logsvc.NewDiscardLogger()) })
	})
}
