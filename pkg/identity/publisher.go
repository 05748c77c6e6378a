package identity

import (
	"context"
	"sync"

	"github.com/atelierhq/atelier/pkg/auth"
	"github.com/atelierhq/atelier/pkg/observability"
)

// SessionState is the publisher's lifecycle state
type SessionState string

const (
	// StateUnauthenticated means no principal is signed in
	StateUnauthenticated SessionState = "unauthenticated"
	// StateLoading means a principal is signed in and resolution is in flight
	StateLoading SessionState = "loading"
	// StateResolved means the identity is available (guest counts as resolved)
	StateResolved SessionState = "resolved"
)

// Snapshot is the publisher's state at a point in time. Consumers must not
// act on Identity unless State is StateResolved.
type Snapshot struct {
	State     SessionState      `json:"state"`
	Principal *auth.Principal   `json:"principal,omitempty"`
	Identity  *ResolvedIdentity `json:"identity,omitempty"`
}

// Publisher republishes resolved identities to subscribers as the session
// changes. Transitions: unauthenticated -> loading on sign-in, loading ->
// resolved on completion, any -> unauthenticated on sign-out.
//
// Each sign-in is tagged with a monotonic token; a resolution completing
// after a newer sign-in or a sign-out is discarded so stale results never
// overwrite newer state.
type Publisher struct {
	resolver *Resolver
	logger   *observability.Logger

	mu      sync.Mutex
	seq     uint64
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int
}

// NewPublisher creates a publisher in the unauthenticated state
func NewPublisher(resolver *Resolver, logger *observability.Logger) *Publisher {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Publisher{
		resolver: resolver,
		logger:   logger,
		snap:     Snapshot{State: StateUnauthenticated},
		subs:     make(map[int]chan Snapshot),
	}
}

// Current returns the latest snapshot
func (p *Publisher) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Subscribe registers a consumer. The current snapshot is delivered
// immediately; the returned cancel func unregisters the consumer.
func (p *Publisher) Subscribe() (<-chan Snapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++

	ch := make(chan Snapshot, 8)
	p.subs[id] = ch
	ch <- p.snap

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// SignIn transitions to loading and starts resolution for the principal.
// The resolved snapshot is published unless a newer sign-in or a sign-out
// supersedes it first.
func (p *Publisher) SignIn(ctx context.Context, principal auth.Principal) {
	p.mu.Lock()
	p.seq++
	token := p.seq
	p.snap = Snapshot{State: StateLoading, Principal: &principal}
	p.broadcastLocked()
	p.mu.Unlock()

	go func() {
		id := p.resolver.Resolve(ctx, principal.ID)

		p.mu.Lock()
		defer p.mu.Unlock()

		if p.seq != token {
			p.logger.WithField("user_id", principal.ID).
				Debug("discarding stale identity resolution")
			return
		}

		p.snap = Snapshot{State: StateResolved, Principal: &principal, Identity: id}
		p.broadcastLocked()
	}()
}

// SignOut transitions to unauthenticated and invalidates the signed-out
// principal's cached identity.
func (p *Publisher) SignOut(ctx context.Context) {
	p.mu.Lock()
	p.seq++
	prev := p.snap.Principal
	p.snap = Snapshot{State: StateUnauthenticated}
	p.broadcastLocked()
	p.mu.Unlock()

	if prev != nil {
		p.resolver.Invalidate(ctx, prev.ID)
	}
}

// Run consumes session lifecycle events until the context is cancelled
func (p *Publisher) Run(ctx context.Context, source auth.SessionSource) {
	events, cancel := source.Subscribe(ctx)
	defer cancel()

	for {
		select {
		case change, ok := <-events:
			if !ok {
				return
			}
			if change.Principal != nil {
				p.SignIn(ctx, *change.Principal)
			} else {
				p.SignOut(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

// broadcastLocked fans the current snapshot out to subscribers. Slow
// subscribers drop intermediate snapshots rather than block the publisher.
func (p *Publisher) broadcastLocked() {
	for _, ch := range p.subs {
		select {
		case ch <- p.snap:
		default:
		}
	}
}
