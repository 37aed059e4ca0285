package upload

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
)

// ReasonCancelled is the failure reason of tasks stopped by CancelBatch.
const ReasonCancelled = "cancelled"

var (
	ErrBatchNotFound = errors.New("upload batch not found")
	ErrBatchStarted  = errors.New("upload batch already started")

	errInvalidBatch = errors.New("invalid upload batch")
)

type Status int

const (
	StatusPending Status = iota
	StatusInFlight
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "in_flight"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for _, st := range []Status{StatusPending, StatusInFlight, StatusSucceeded, StatusFailed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return errors.Errorf("unknown upload status %q", text)
}

type (
	// File is one user-selected file. Open is called once, by the transport.
	File struct {
		Name     string
		Size     int64
		MIMEType string
		Open     func() (io.ReadCloser, error)
	}

	Task struct {
		Index    int    `json:"index"`
		Name     string `json:"name"`
		Size     int64  `json:"size"`
		Type     string `json:"type"`
		Progress int    `json:"progress"`
		Status   Status `json:"status"`
		Reason   string `json:"reason,omitempty"`
	}

	NewBatch struct {
		CollectionID string
		Title        string
		UploadedBy   string
		Files        []File
	}

	// Batch is a read-only view of a coordinator's state.
	Batch struct {
		ID                string             `json:"id"`
		CollectionID      string             `json:"collectionId"`
		Title             string             `json:"title"`
		UploadedBy        string             `json:"uploadedBy"`
		Tasks             []Task             `json:"tasks"`
		AggregateProgress float64            `json:"aggregateProgress"`
		Complete          bool               `json:"complete"`
		Cancelled         bool               `json:"cancelled"`
		Failures          []core.TaskFailure `json:"failures"`
		CreatedAt         time.Time          `json:"createdAt"`
		FinishedAt        *time.Time         `json:"finishedAt,omitempty"`
	}

	Result struct {
		BatchID      string             `json:"batchId"`
		CollectionID string             `json:"collectionId"`
		Title        string             `json:"title"`
		UploadedBy   string             `json:"uploadedBy"`
		Total        int                `json:"total"`
		Succeeded    []string           `json:"succeeded"`
		Failures     []core.TaskFailure `json:"failures"`
		Cancelled    bool               `json:"cancelled"`
	}

	// Request is what the transport receives for one task.
	Request struct {
		BatchID      string
		CollectionID string
		Title        string
		UploadedBy   string
		Type         string // classified type
		File         File
	}

	// ProgressFunc receives the percentage (0-100) of one task's payload sent so far.
	ProgressFunc func(percent int)

	// Transport sends one file to the remote resource. It must return once the upload is terminal.
	Transport interface {
		UploadFile(ctx context.Context, req Request, progress ProgressFunc) error
	}

	// Sink is told about progress and completion, e.g. to render them.
	Sink interface {
		OnAggregateProgressChanged(batchID string, percent float64)
		OnBatchComplete(result Result)
	}

	// SinkFactory returns the Sink of the given uploader.
	SinkFactory func(owner string) Sink
)

// AnySucceeded reports whether at least one task succeeded.
func (r Result) AnySucceeded() bool { return len(r.Succeeded) > 0 }

type nopSink struct{}

func (nopSink) OnAggregateProgressChanged(string, float64) {}
func (nopSink) OnBatchComplete(Result)                     {}

// CompletionFunc adapts a function to a Sink that only cares about completed batches.
type CompletionFunc func(Result)

func (CompletionFunc) OnAggregateProgressChanged(string, float64) {}
func (f CompletionFunc) OnBatchComplete(result Result)            { f(result) }

// MultiSink tells every sink, in order. Nil sinks are skipped.
func MultiSink(sinks ...Sink) Sink {
	all := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			all = append(all, s)
		}
	}
	return all
}

type multiSink []Sink

func (m multiSink) OnAggregateProgressChanged(batchID string, percent float64) {
	for _, s := range m {
		s.OnAggregateProgressChanged(batchID, percent)
	}
}

func (m multiSink) OnBatchComplete(result Result) {
	for _, s := range m {
		s.OnBatchComplete(result)
	}
}
