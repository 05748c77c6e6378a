package identity

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/atelierhq/atelier/pkg/observability"
)

// Resolver determines a principal's role and capability set.
//
// Membership sources are consulted strictly in order: studio membership
// first, then client membership. The first match wins; once a studio row is
// found the client relation is never queried. A lookup error at any step
// falls through to the next step, and a principal with no membership
// anywhere resolves to guest. Resolution therefore always succeeds; the
// worst case for the caller is the most restrictive capability set.
type Resolver struct {
	source MembershipSource
	cache  Cache
	logger *observability.Logger
	group  singleflight.Group

	mu     sync.Mutex
	epochs map[int64]uint64

	stats resolverStats
}

// NewResolver creates a resolver over the given membership source and cache
func NewResolver(source MembershipSource, cache Cache, logger *observability.Logger) *Resolver {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Resolver{
		source: source,
		cache:  cache,
		logger: logger,
		epochs: make(map[int64]uint64),
	}
}

// Resolve returns the principal's resolved identity, consulting the cache
// first. Concurrent calls for the same principal are coalesced into a single
// backend query sequence. Resolve never fails; backend errors demote the
// principal toward guest.
func (r *Resolver) Resolve(ctx context.Context, userID int64) *ResolvedIdentity {
	r.stats.resolutions.Add(1)

	if id, ok := r.cache.Get(ctx, userID); ok {
		r.stats.cacheHits.Add(1)
		return id
	}

	epoch := r.epoch(userID)
	key := strconv.FormatInt(userID, 10)

	v, _, shared := r.group.Do(key, func() (interface{}, error) {
		return r.resolveUncached(ctx, userID), nil
	})
	if shared {
		r.stats.coalesced.Add(1)
	}

	id := v.(*ResolvedIdentity)

	// A sign-out (or different sign-in) happened while this resolution was
	// in flight. The result is still the freshest answer for this caller,
	// but it must not repopulate the cache under a dead session.
	if r.epoch(userID) != epoch {
		r.stats.discarded.Add(1)
		return id
	}

	r.cache.Put(ctx, userID, id)
	return id
}

// Invalidate drops the principal's cached identity and marks any in-flight
// resolution stale. Called on sign-out and on membership changes.
func (r *Resolver) Invalidate(ctx context.Context, userID int64) {
	r.mu.Lock()
	r.epochs[userID]++
	r.mu.Unlock()

	r.group.Forget(strconv.FormatInt(userID, 10))
	r.cache.Invalidate(ctx, userID)
}

func (r *Resolver) epoch(userID int64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epochs[userID]
}

// resolveUncached walks the ordered membership strategies. The order is
// load-bearing: a user with rows in both relations resolves to the studio
// role, which requires sequential evaluation, never parallel.
func (r *Resolver) resolveUncached(ctx context.Context, userID int64) *ResolvedIdentity {
	steps := []struct {
		name    string
		resolve func(context.Context, int64) (*ResolvedIdentity, error)
	}{
		{"studio", r.resolveStudio},
		{"client", r.resolveClient},
	}

	for _, step := range steps {
		id, err := step.resolve(ctx, userID)
		if err != nil {
			if !errors.Is(err, ErrNoMembership) {
				// Fail open: a transient backend error at this step must
				// not block sign-in, so fall through to the next source.
				r.stats.errorFallthroughs.Add(1)
				r.logger.WithError(err).
					WithField("user_id", userID).
					WithField("step", step.name).
					Warn("membership lookup failed, falling through")
			}
			continue
		}
		return id
	}

	r.stats.guestFallbacks.Add(1)
	return GuestIdentity(userID)
}

func (r *Resolver) resolveStudio(ctx context.Context, userID int64) (*ResolvedIdentity, error) {
	m, err := r.source.StudioMembership(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.warnUnknownRole(userID, m.Role)

	studioID := m.StudioID
	return &ResolvedIdentity{
		UserID:         userID,
		Role:           m.Role,
		Permissions:    DerivePermissions(m.Role, false, true),
		IsStudioMember: true,
		StudioID:       &studioID,
	}, nil
}

func (r *Resolver) resolveClient(ctx context.Context, userID int64) (*ResolvedIdentity, error) {
	m, err := r.source.ClientMembership(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.warnUnknownRole(userID, m.Role)

	clientID := m.ClientID
	return &ResolvedIdentity{
		UserID:      userID,
		Role:        m.Role,
		Permissions: DerivePermissions(m.Role, m.IsPrimary, false),
		ClientID:    &clientID,
	}, nil
}

// warnUnknownRole flags role names missing from the permission table. The
// identity keeps the stored role name but derives guest capabilities; the
// warning points at the upstream data-integrity problem.
func (r *Resolver) warnUnknownRole(userID int64, role Role) {
	if IsKnownRole(role) {
		return
	}

	r.stats.unknownRoles.Add(1)
	r.logger.WithField("user_id", userID).
		WithField("role", string(role)).
		Warn("unrecognized role name, deriving guest capabilities")
}

// resolverStats tracks resolution counters
type resolverStats struct {
	resolutions       atomic.Int64
	cacheHits         atomic.Int64
	coalesced         atomic.Int64
	discarded         atomic.Int64
	guestFallbacks    atomic.Int64
	errorFallthroughs atomic.Int64
	unknownRoles      atomic.Int64
}

// Stats is a snapshot of resolver counters
type Stats struct {
	Resolutions       int64 `json:"resolutions"`
	CacheHits         int64 `json:"cache_hits"`
	Coalesced         int64 `json:"coalesced"`
	Discarded         int64 `json:"discarded"`
	GuestFallbacks    int64 `json:"guest_fallbacks"`
	ErrorFallthroughs int64 `json:"error_fallthroughs"`
	UnknownRoles      int64 `json:"unknown_roles"`
}

// Stats returns a snapshot of the resolver's counters
func (r *Resolver) Stats() Stats {
	return Stats{
		Resolutions:       r.stats.resolutions.Load(),
		CacheHits:         r.stats.cacheHits.Load(),
		Coalesced:         r.stats.coalesced.Load(),
		Discarded:         r.stats.discarded.Load(),
		GuestFallbacks:    r.stats.guestFallbacks.Load(),
		ErrorFallthroughs: r.stats.errorFallthroughs.Load(),
		UnknownRoles:      r.stats.unknownRoles.Load(),
	}
}
