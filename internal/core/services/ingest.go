package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
	"github.com/alazoor/Mimachat/internal/index"
	"github.com/alazoor/Mimachat/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

var ingestLog = logger.For("ingest")

// errQueueFull marks documents left for backfill because the embedding
// queue had no room.
var errQueueFull = errors.New("embedding queue full")

// errPending is reported by Wait for documents that are stored without an
// embedding and not currently being processed.
var errPending = errors.New("embedding pending")

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 16

// writeOp is one store mutation executed by the writer goroutine.
type writeOp struct {
	fn   func(ctx context.Context) error
	done chan error
}

// IngestionService drives documents through normalise, embed, persist and index.
//
// All store mutations go through a single writer goroutine. Embedding runs
// on a separate worker and never holds the writer while waiting on the model.
type IngestionService struct {
	store      driven.VectorStore
	normaliser driven.Normaliser
	provider   driven.EmbeddingProvider
	index      *index.Index
	settings   domain.IngestSettings

	writes chan writeOp
	jobs   chan domain.Document

	ctx        context.Context
	cancel     context.CancelFunc
	workers    sync.WaitGroup
	writerDone chan struct{}
	closeOnce  sync.Once

	// closeMu guards closed and the send side of writes.
	closeMu sync.RWMutex
	closed  bool

	mu       sync.Mutex
	status   map[string]domain.IngestEvent
	waiters  map[string][]chan domain.IngestEvent
	inflight map[string]struct{}
	poisoned map[string]struct{}
	subs     map[int]chan domain.IngestEvent
	nextSub  int

	// Failure events stay in status for the most recent retainFailures
	// documents so Wait can report their cause; older ones fall back to
	// the store.
	retainFailures int
	failures       []retainedFailure
	failedSeq      map[string]uint64
	seq            uint64

	notReadyLog rate.Sometimes
}

// NewIngestionService creates the service and starts its goroutines.
// When settings.BackfillInterval is positive a background loop retries
// pending documents at that period. Call Close to stop.
func NewIngestionService(
	store driven.VectorStore,
	normaliser driven.Normaliser,
	provider driven.EmbeddingProvider,
	ix *index.Index,
	settings domain.IngestSettings,
) *IngestionService {
	if settings.QueueSize <= 0 {
		settings.QueueSize = domain.DefaultAppSettings().Ingest.QueueSize
	}
	if settings.BackfillBatch <= 0 {
		settings.BackfillBatch = domain.DefaultAppSettings().Ingest.BackfillBatch
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &IngestionService{
		store:       store,
		normaliser:  normaliser,
		provider:    provider,
		index:       ix,
		settings:    settings,
		writes:      make(chan writeOp),
		jobs:        make(chan domain.Document, settings.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		writerDone:  make(chan struct{}),
		status:      make(map[string]domain.IngestEvent),
		waiters:     make(map[string][]chan domain.IngestEvent),
		inflight:    make(map[string]struct{}),
		poisoned:    make(map[string]struct{}),
		subs:        make(map[int]chan domain.IngestEvent),
		notReadyLog: rate.Sometimes{Interval: 5 * time.Minute},

		retainFailures: maxRetainedFailures,
		failedSeq:      make(map[string]uint64),
	}

	go s.writer()

	s.workers.Add(1)
	go s.embedWorker()

	if settings.BackfillInterval > 0 {
		s.workers.Add(1)
		go s.backfillLoop(settings.BackfillInterval)
	}

	return s
}

// Close stops the workers, drains queued writes and ends all subscriptions.
// Documents still queued for embedding stay pending for the next backfill.
func (s *IngestionService) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.workers.Wait()

		s.closeMu.Lock()
		s.closed = true
		close(s.writes)
		s.closeMu.Unlock()
		<-s.writerDone

		s.mu.Lock()
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
		s.mu.Unlock()
	})
	return nil
}

// Submit persists a new document and schedules its embedding.
func (s *IngestionService) Submit(ctx context.Context, text, sourceLocator, sourceReference string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", domain.ErrValidation)
	}

	doc := domain.Document{
		TextContent:     text,
		SourceLocator:   sourceLocator,
		SourceReference: sourceReference,
		CreatedAt:       time.Now().UTC(),
	}

	var id string
	err := s.write(ctx, func(wctx context.Context) error {
		var err error
		id, err = s.store.Put(wctx, doc, nil)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrClosed) {
			return "", err
		}
		s.emit(domain.IngestEvent{State: domain.IngestPersistFailed, Err: err})
		return "", &domain.IngestError{Stage: domain.IngestPersistFailed, Err: err}
	}

	doc.ID = id
	s.emit(domain.IngestEvent{DocumentID: id, State: domain.IngestReceived})
	ingestLog.Debug("received %s (%d bytes from %q)", id, len(text), sourceReference)

	s.enqueue(doc)
	return id, nil
}

// enqueue hands doc to the embed worker without blocking.
func (s *IngestionService) enqueue(doc domain.Document) {
	if !s.claim(doc.ID) {
		return
	}

	select {
	case s.jobs <- doc:
	default:
		s.release(doc.ID)
		ingestLog.Warn("queue full, %s left for backfill", doc.ID)
		s.emit(domain.IngestEvent{
			DocumentID: doc.ID,
			State:      domain.IngestEmbeddingFailed,
			Err:        errQueueFull,
		})
	}
}

func (s *IngestionService) embedWorker() {
	defer s.workers.Done()
	for {
		select {
		case <-s.ctx.Done():
			// Drop the unclaimed remainder; those documents stay pending.
			for {
				select {
				case doc := <-s.jobs:
					s.release(doc.ID)
				default:
					return
				}
			}
		case doc := <-s.jobs:
			s.process(s.ctx, doc)
		}
	}
}

// process runs one claimed document through the pipeline and releases it.
func (s *IngestionService) process(ctx context.Context, doc domain.Document) domain.IngestState {
	defer s.release(doc.ID)

	s.emit(domain.IngestEvent{DocumentID: doc.ID, State: domain.IngestNormalizing})
	seq, err := s.normaliser.Normalise(doc.TextContent)
	if err != nil {
		s.mu.Lock()
		s.poisoned[doc.ID] = struct{}{}
		s.mu.Unlock()
		ingestLog.Error("normalising %s: %v", doc.ID, err)
		return s.fail(doc.ID, domain.IngestEmbeddingFailed, err)
	}

	s.emit(domain.IngestEvent{DocumentID: doc.ID, State: domain.IngestEmbedding})
	vec, err := s.provider.Embed(ctx, seq)
	if err != nil {
		return s.fail(doc.ID, domain.IngestEmbeddingFailed, err)
	}

	s.emit(domain.IngestEvent{DocumentID: doc.ID, State: domain.IngestPersisting})
	rec := domain.EmbeddingRecord{DocumentID: doc.ID, Vector: vec, GeneratedAt: time.Now().UTC()}
	var appendErr error
	err = s.write(ctx, func(wctx context.Context) error {
		if err := s.store.UpdateEmbedding(wctx, rec); err != nil {
			return err
		}
		// Appending under the writer keeps it ordered with deletes.
		appendErr = s.index.Append(doc, rec)
		return nil
	})
	if err != nil {
		return s.fail(doc.ID, domain.IngestPersistFailed, err)
	}
	if appendErr != nil {
		return s.fail(doc.ID, domain.IngestIndexFailed, appendErr)
	}

	s.emit(domain.IngestEvent{DocumentID: doc.ID, State: domain.IngestIndexed})
	ingestLog.Debug("indexed %s", doc.ID)
	return domain.IngestIndexed
}

func (s *IngestionService) fail(id string, state domain.IngestState, err error) domain.IngestState {
	ingestLog.Warn("%s %s: %v", id, state, err)
	s.emit(domain.IngestEvent{
		DocumentID: id,
		State:      state,
		Err:        &domain.IngestError{Stage: state, DocumentID: id, Err: err},
	})
	return state
}

// Backfill retries pending documents, at most BackfillBatch per call.
// Documents that broke the normaliser or are already in flight are skipped.
func (s *IngestionService) Backfill(ctx context.Context) (domain.BackfillReport, error) {
	var report domain.BackfillReport

	pending, err := s.store.ListPendingEmbeddings(ctx)
	if err != nil {
		return report, fmt.Errorf("listing pending documents: %w", err)
	}
	report.Pending = len(pending)

	for _, doc := range pending {
		if report.Attempted >= s.settings.BackfillBatch {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		s.mu.Lock()
		_, bad := s.poisoned[doc.ID]
		s.mu.Unlock()
		if bad || !s.claim(doc.ID) {
			report.Skipped++
			continue
		}

		report.Attempted++
		if s.process(ctx, doc) == domain.IngestIndexed {
			report.Indexed++
		} else {
			report.Failed++
		}
	}

	if report.Attempted > 0 {
		ingestLog.Info("backfill: %d pending, %d indexed, %d failed, %d skipped",
			report.Pending, report.Indexed, report.Failed, report.Skipped)
	}
	return report, nil
}

func (s *IngestionService) backfillLoop(interval time.Duration) {
	defer s.workers.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if state := s.provider.State(); state != domain.ModelReady {
				s.notReadyLog.Do(func() {
					ingestLog.Warn("backfill paused: model is %s", state)
				})
				continue
			}
			if _, err := s.Backfill(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				ingestLog.Error("backfill: %v", err)
			}
		}
	}
}

// Delete removes a document, its embedding and its index entry.
func (s *IngestionService) Delete(ctx context.Context, id string) error {
	err := s.write(ctx, func(wctx context.Context) error {
		if err := s.store.Delete(wctx, id); err != nil {
			return err
		}
		s.index.Remove(id)
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.status, id)
	delete(s.failedSeq, id)
	delete(s.poisoned, id)
	s.mu.Unlock()

	ingestLog.Debug("deleted %s", id)
	return nil
}

// Wait blocks until the document reaches a terminal state.
// For documents not tracked by this process the stored state is reported:
// Indexed when embedded, EmbeddingFailed when still pending.
func (s *IngestionService) Wait(ctx context.Context, id string) (domain.IngestEvent, error) {
	s.mu.Lock()
	ev, tracked := s.status[id]
	if tracked && ev.State.IsTerminal() {
		s.mu.Unlock()
		return ev, nil
	}
	if !tracked {
		s.mu.Unlock()
		return s.storedState(ctx, id)
	}

	ch := make(chan domain.IngestEvent, 1)
	s.waiters[id] = append(s.waiters[id], ch)
	s.mu.Unlock()

	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		s.mu.Lock()
		list := s.waiters[id]
		for i, c := range list {
			if c == ch {
				s.waiters[id] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(s.waiters[id]) == 0 {
			delete(s.waiters, id)
		}
		s.mu.Unlock()
		return domain.IngestEvent{}, ctx.Err()
	}
}

func (s *IngestionService) storedState(ctx context.Context, id string) (domain.IngestEvent, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.IngestEvent{}, err
	}
	if entry.Pending() {
		return domain.IngestEvent{
			DocumentID: id,
			State:      domain.IngestEmbeddingFailed,
			Err:        errPending,
			At:         entry.Document.CreatedAt,
		}, nil
	}
	return domain.IngestEvent{
		DocumentID: id,
		State:      domain.IngestIndexed,
		At:         entry.Embedding.GeneratedAt,
	}, nil
}

// Subscribe returns a channel of pipeline transitions. Slow subscribers
// miss events rather than stall the pipeline.
func (s *IngestionService) Subscribe() (<-chan domain.IngestEvent, func()) {
	ch := make(chan domain.IngestEvent, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// InFlight reports whether id is claimed by a pipeline run in this process.
func (s *IngestionService) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[id]
	return ok
}

func (s *IngestionService) emit(ev domain.IngestEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.DocumentID != "" {
		switch {
		case ev.State == domain.IngestIndexed:
			// Answered from the store from now on.
			delete(s.status, ev.DocumentID)
			delete(s.failedSeq, ev.DocumentID)
		case ev.State.IsFailure():
			s.status[ev.DocumentID] = ev
			s.retainFailureLocked(ev.DocumentID)
		default:
			s.status[ev.DocumentID] = ev
		}
		if ev.State.IsTerminal() {
			for _, ch := range s.waiters[ev.DocumentID] {
				ch <- ev
			}
			delete(s.waiters, ev.DocumentID)
		}
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// maxRetainedFailures bounds the failure events kept for Wait.
const maxRetainedFailures = 1024

type retainedFailure struct {
	id  string
	seq uint64
}

// retainFailureLocked records a failure for id and evicts the oldest ones
// past retainFailures. Evicted documents are answered from the store.
func (s *IngestionService) retainFailureLocked(id string) {
	s.seq++
	s.failedSeq[id] = s.seq
	s.failures = append(s.failures, retainedFailure{id: id, seq: s.seq})

	for len(s.failures) > s.retainFailures {
		old := s.failures[0]
		s.failures = s.failures[1:]
		if s.failedSeq[old.id] != old.seq {
			continue
		}
		delete(s.failedSeq, old.id)
		if ev, ok := s.status[old.id]; ok && ev.State.IsFailure() {
			delete(s.status, old.id)
		}
	}
}

// claim marks id as owned by one pipeline run.
func (s *IngestionService) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *IngestionService) release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// write runs fn on the writer goroutine and returns its result.
// Once fn is queued the call waits for it even if ctx ends, so the caller
// always learns whether the mutation committed.
func (s *IngestionService) write(ctx context.Context, fn func(context.Context) error) error {
	op := writeOp{fn: fn, done: make(chan error, 1)}

	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return domain.ErrClosed
	}
	select {
	case s.writes <- op:
	case <-ctx.Done():
		s.closeMu.RUnlock()
		return ctx.Err()
	}
	s.closeMu.RUnlock()

	return <-op.done
}

func (s *IngestionService) writer() {
	defer close(s.writerDone)

	ctx := context.Background()
	for op := range s.writes {
		op.done <- op.fn(ctx)
	}
}
