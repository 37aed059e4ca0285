package upload

import (
	"context"
	"net/mail"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
)

type ServiceInterface interface {
	Start(ctx context.Context, nb NewBatch) (*Coordinator, error)
	Get(id string) (Batch, error)
	List(uploadedBy string) []Batch
	Coordinator(id string) (*Coordinator, error)
	Cancel(id string) error
	Prune(maxAge time.Duration) int
}

// Service keeps track of the running and recently finished batches.
type Service struct {
	transport Transport
	mailSvc   core.EmailService
	logger    core.Logger
	sinks     SinkFactory
	appName   string
	notify    bool

	mu      sync.RWMutex
	batches map[string]*Coordinator
}

var _ ServiceInterface = (*Service)(nil)

// NewService returns an upload Service. sinks may be nil.
func NewService(transport Transport, mailSvc core.EmailService, logger core.Logger, conf *core.Config, sinks SinkFactory) *Service {
	return &Service{
		transport: transport,
		mailSvc:   mailSvc,
		logger:    logger,
		sinks:     sinks,
		appName:   conf.AppName,
		notify:    conf.Upload.NotifyByEmail,
		batches:   make(map[string]*Coordinator),
	}
}

// Start registers a new coordinator and starts its batch.
func (svc *Service) Start(ctx context.Context, nb NewBatch) (*Coordinator, error) {
	var sink Sink = nopSink{}
	if svc.sinks != nil {
		sink = svc.sinks(nb.UploadedBy)
	}
	coord := NewCoordinator(svc.transport, notifyingSink{Sink: sink, svc: svc}, svc.logger)
	if err := coord.StartBatch(ctx, nb); err != nil {
		return nil, err
	}

	svc.mu.Lock()
	svc.batches[coord.ID()] = coord
	svc.mu.Unlock()
	return coord, nil
}

func (svc *Service) Coordinator(id string) (*Coordinator, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	coord, ok := svc.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return coord, nil
}

func (svc *Service) Get(id string) (Batch, error) {
	coord, err := svc.Coordinator(id)
	if err != nil {
		return Batch{}, err
	}
	return coord.View(), nil
}

// List returns the known batches started by uploadedBy, most recent first.
func (svc *Service) List(uploadedBy string) []Batch {
	svc.mu.RLock()
	batches := make([]Batch, 0)
	for _, coord := range svc.batches {
		if b := coord.View(); b.UploadedBy == uploadedBy {
			batches = append(batches, b)
		}
	}
	svc.mu.RUnlock()

	sort.Slice(batches, func(i, j int) bool {
		if !batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].CreatedAt.After(batches[j].CreatedAt)
		}
		return batches[i].ID < batches[j].ID
	})
	return batches
}

func (svc *Service) Cancel(id string) error {
	coord, err := svc.Coordinator(id)
	if err != nil {
		return err
	}
	coord.CancelBatch()
	return nil
}

// Prune forgets the batches finished more than maxAge ago and returns how many were dropped.
func (svc *Service) Prune(maxAge time.Duration) int {
	threshold := nowFunc().UTC().Add(-maxAge)

	svc.mu.Lock()
	defer svc.mu.Unlock()

	var pruned int
	for id, coord := range svc.batches {
		if finishedAt, ok := coord.finished(); ok && finishedAt.Before(threshold) {
			delete(svc.batches, id)
			pruned++
		}
	}
	return pruned
}

func (svc *Service) sendBatchSummary(result Result) {
	if !svc.notify || svc.mailSvc == nil {
		return
	}
	to, err := mail.ParseAddress(result.UploadedBy)
	if err != nil {
		svc.logger.Warn("batch summary not sent", errors.Wrapf(err, "parsing uploader address %q", result.UploadedBy))
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{*to},
		Subject:      "Upload finished: " + result.Title,
		TemplateName: "batch_complete",
		TemplateData: result,
	})
}

// notifyingSink emails the uploader once the batch completes.
type notifyingSink struct {
	Sink
	svc *Service
}

func (s notifyingSink) OnBatchComplete(result Result) {
	s.Sink.OnBatchComplete(result)
	s.svc.sendBatchSummary(result)
}
