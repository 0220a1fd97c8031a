// Package lifecycle wraps an Inferencer with the model lifecycle
// (Unloaded -> Loading -> Ready | Failed) and serialised execution.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"golang.org/x/time/rate"

	"github.com/alazoor/Mimachat/internal/core/domain"
	"github.com/alazoor/Mimachat/internal/core/ports/driven"
	"github.com/alazoor/Mimachat/internal/core/ports/driving"
	"github.com/alazoor/Mimachat/internal/logger"
)

// Ensure Provider implements the interfaces.
var (
	_ driven.EmbeddingProvider = (*Provider)(nil)
	_ driving.ModelService     = (*Provider)(nil)
)

var log = logger.For("model")

// Loader creates the inference runtime. It may block for as long as the
// model takes to load.
type Loader func(ctx context.Context) (driven.Inferencer, error)

// Config holds provider configuration.
type Config struct {
	// Name is reported by ModelName.
	Name string

	// Dimensions is D. The loaded runtime must agree.
	Dimensions int

	// RatePerSecond limits inference calls. Zero means unlimited.
	RatePerSecond float64
}

// Provider is a shared, serialised embedding model.
type Provider struct {
	name    string
	dims    int
	load    Loader
	limiter *rate.Limiter

	// run serialises inference on the single model instance.
	run chan struct{}

	mu    sync.Mutex
	state domain.ModelState
	err   error
	model driven.Inferencer
	gen   uint64
	// ready is closed when the current load attempt resolves.
	ready   chan struct{}
	subs    map[int]chan domain.ModelState
	nextSub int
}

// New creates an unloaded provider.
func New(cfg Config, load Loader) *Provider {
	p := &Provider{
		name:  cfg.Name,
		dims:  cfg.Dimensions,
		load:  load,
		run:   make(chan struct{}, 1),
		state: domain.ModelUnloaded,
		ready: make(chan struct{}),
		subs:  make(map[int]chan domain.ModelState),
	}
	if cfg.RatePerSecond > 0 {
		burst := int(math.Ceil(cfg.RatePerSecond))
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return p
}

// Load runs the loader and resolves the pending future.
// It returns immediately when the model is already Ready and joins an
// in-flight attempt when one is Loading. A Failed model may be reloaded.
func (p *Provider) Load(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case domain.ModelReady:
		p.mu.Unlock()
		return nil
	case domain.ModelLoading:
		p.mu.Unlock()
		_, err := p.Wait(ctx)
		return err
	case domain.ModelFailed:
		p.ready = make(chan struct{})
	}

	p.gen++
	gen := p.gen
	ready := p.ready
	p.err = nil
	p.setStateLocked(domain.ModelLoading)
	p.mu.Unlock()

	log.Info("loading %s", p.name)

	model, err := p.load(ctx)
	if err == nil && model == nil {
		err = errors.New("loader returned no model")
	}
	if err == nil && model.Dimensions() != p.dims {
		_ = model.Close()
		err = fmt.Errorf("%w: model emits %d dimensions, configured %d",
			domain.ErrDimensionMismatch, model.Dimensions(), p.dims)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		// Unloaded while loading.
		if model != nil && err == nil {
			_ = model.Close()
		}
		return fmt.Errorf("%w: unloaded during load", domain.ErrModelNotReady)
	}

	if err != nil {
		p.err = err
		p.setStateLocked(domain.ModelFailed)
		close(ready)
		log.Error("loading %s: %v", p.name, err)
		return fmt.Errorf("loading model %s: %w", p.name, err)
	}

	p.model = model
	p.setStateLocked(domain.ModelReady)
	close(ready)
	log.Info("%s ready (%d dimensions)", p.name, p.dims)
	return nil
}

// LoadAsync starts Load in the background. Observe the outcome with Wait,
// Ready or Subscribe.
func (p *Provider) LoadAsync(ctx context.Context) {
	go func() {
		_ = p.Load(ctx)
	}()
}

// Unload tears the model down and returns to Unloaded.
// It waits for an in-flight inference to finish.
func (p *Provider) Unload() error {
	p.run <- struct{}{}
	defer func() { <-p.run }()

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case domain.ModelUnloaded:
		return nil
	case domain.ModelLoading:
		// Wake waiters of the abandoned attempt.
		close(p.ready)
	}

	p.gen++
	p.ready = make(chan struct{})
	p.err = nil
	model := p.model
	p.model = nil
	p.setStateLocked(domain.ModelUnloaded)

	if model != nil {
		if err := model.Close(); err != nil {
			return fmt.Errorf("closing model %s: %w", p.name, err)
		}
	}
	return nil
}

// Close unloads the model.
func (p *Provider) Close() error {
	return p.Unload()
}

// Ready returns a channel closed when the current load attempt resolves.
func (p *Provider) Ready() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Wait blocks until the current load attempt resolves or ctx is done.
// It returns nil only when the model is Ready.
func (p *Provider) Wait(ctx context.Context) (domain.ModelState, error) {
	ready := p.Ready()

	select {
	case <-ready:
	case <-ctx.Done():
		return p.State(), ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case domain.ModelReady:
		return p.state, nil
	case domain.ModelFailed:
		return p.state, fmt.Errorf("%w: %w", domain.ErrModelNotReady, p.err)
	default:
		return p.state, fmt.Errorf("%w: model is %s", domain.ErrModelNotReady, p.state)
	}
}

// Err returns the error of the last failed load.
func (p *Provider) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Subscribe returns a channel of state transitions. Slow subscribers miss
// transitions rather than block the provider. Call the returned func to stop.
func (p *Provider) Subscribe() (<-chan domain.ModelState, func()) {
	ch := make(chan domain.ModelState, 4)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Provider) setStateLocked(s domain.ModelState) {
	p.state = s
	for _, ch := range p.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Embed runs one inference. It fails fast with ErrModelNotReady unless the
// model is Ready. A sequence without content tokens maps to the zero vector.
func (p *Provider) Embed(ctx context.Context, seq domain.Sequence) ([]float32, error) {
	if state := p.State(); state != domain.ModelReady {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrModelNotReady, p.name, state)
	}
	if seq.Len() == 0 || len(seq.AttentionMask) != seq.Len() || len(seq.SegmentIDs) != seq.Len() {
		return nil, fmt.Errorf("%w: malformed sequence", domain.ErrInference)
	}
	if seq.ContentLen() == 0 {
		return make([]float32, p.dims), nil
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	select {
	case p.run <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.run }()

	p.mu.Lock()
	state, model := p.state, p.model
	p.mu.Unlock()
	if state != domain.ModelReady || model == nil {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrModelNotReady, p.name, state)
	}

	vec, err := model.Infer(ctx, seq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrInference, err)
	}
	if len(vec) != p.dims {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", domain.ErrInference, len(vec), p.dims)
	}
	for i, v := range vec {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite output at %d", domain.ErrInference, i)
		}
	}
	return vec, nil
}

// State returns the current lifecycle state.
func (p *Provider) State() domain.ModelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Dimensions returns D.
func (p *Provider) Dimensions() int {
	return p.dims
}

// ModelName returns the configured model name.
func (p *Provider) ModelName() string {
	return p.name
}
