package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/pkg/observability"
)

// fakeSource is a controllable membership source that counts lookups
type fakeSource struct {
	mu          sync.Mutex
	studioCalls int
	clientCalls int

	studio    *StudioMembership
	studioErr error
	client    *ClientMembership
	clientErr error

	// when set, StudioMembership blocks until the channel is closed
	gate chan struct{}
}

func (f *fakeSource) StudioMembership(ctx context.Context, userID int64) (*StudioMembership, error) {
	f.mu.Lock()
	f.studioCalls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if f.studioErr != nil {
		return nil, f.studioErr
	}
	if f.studio == nil {
		return nil, ErrNoMembership
	}
	return f.studio, nil
}

func (f *fakeSource) ClientMembership(ctx context.Context, userID int64) (*ClientMembership, error) {
	f.mu.Lock()
	f.clientCalls++
	f.mu.Unlock()

	if f.clientErr != nil {
		return nil, f.clientErr
	}
	if f.client == nil {
		return nil, ErrNoMembership
	}
	return f.client, nil
}

func (f *fakeSource) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.studioCalls, f.clientCalls
}

func newTestResolver(source MembershipSource) *Resolver {
	cache := NewMemoryCache(64, time.Minute)
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	return NewResolver(source, cache, logger)
}

func TestResolveStudioShortCircuits(t *testing.T) {
	// user has rows in both relations; the studio row must win and the
	// client relation must never be consulted
	source := &fakeSource{
		studio: &StudioMembership{UserID: 1, StudioID: 7, Role: RoleStudioAdmin},
		client: &ClientMembership{UserID: 1, ClientID: 3, Role: RoleClientMember},
	}
	r := newTestResolver(source)

	id := r.Resolve(context.Background(), 1)

	assert.Equal(t, RoleStudioAdmin, id.Role)
	assert.True(t, id.IsStudioMember)
	require.NotNil(t, id.StudioID)
	assert.Equal(t, int64(7), *id.StudioID)
	assert.Nil(t, id.ClientID)

	studioCalls, clientCalls := source.calls()
	assert.Equal(t, 1, studioCalls)
	assert.Equal(t, 0, clientCalls)
}

func TestResolveClientFallback(t *testing.T) {
	source := &fakeSource{
		client: &ClientMembership{UserID: 2, ClientID: 3, Role: RoleClientAdmin, IsPrimary: true},
	}
	r := newTestResolver(source)

	id := r.Resolve(context.Background(), 2)

	assert.Equal(t, RoleClientAdmin, id.Role)
	assert.False(t, id.IsStudioMember)
	require.NotNil(t, id.ClientID)
	assert.Equal(t, int64(3), *id.ClientID)
	assert.True(t, id.Permissions.CanViewFinancials)

	studioCalls, clientCalls := source.calls()
	assert.Equal(t, 1, studioCalls)
	assert.Equal(t, 1, clientCalls)
}

func TestResolveNonPrimaryClientAdminLosesFinancials(t *testing.T) {
	source := &fakeSource{
		client: &ClientMembership{UserID: 2, ClientID: 3, Role: RoleClientAdmin, IsPrimary: false},
	}
	r := newTestResolver(source)

	id := r.Resolve(context.Background(), 2)

	assert.Equal(t, RoleClientAdmin, id.Role)
	assert.False(t, id.Permissions.CanViewFinancials)
	assert.True(t, id.Permissions.CanManageTeam)
}

func TestResolveGuestFallback(t *testing.T) {
	source := &fakeSource{}
	r := newTestResolver(source)

	id := r.Resolve(context.Background(), 3)

	assert.Equal(t, RoleGuest, id.Role)
	assert.False(t, id.IsStudioMember)
	assert.Nil(t, id.StudioID)
	assert.Nil(t, id.ClientID)
	assert.True(t, id.Permissions.CanAccessClientDashboard)
	assert.False(t, id.Permissions.CanUploadAssets)
	assert.Equal(t, int64(1), r.Stats().GuestFallbacks)
}

func TestResolveErrorFallsThrough(t *testing.T) {
	// a backend error in the studio lookup must not block resolution; the
	// client row still wins
	source := &fakeSource{
		studioErr: errors.New("connection refused"),
		client:    &ClientMembership{UserID: 4, ClientID: 9, Role: RoleClientMember},
	}
	r := newTestResolver(source)

	id := r.Resolve(context.Background(), 4)

	assert.Equal(t, RoleClientMember, id.Role)
	assert.Equal(t, int64(1), r.Stats().ErrorFallthroughs)
}

func TestResolveAllErrorsYieldGuest(t *testing.T) {
	source := &fakeSource{
		studioErr: errors.New("connection refused"),
		clientErr: errors.New("connection refused"),
	}
	r := newTestResolver(source)

	id := r.Resolve(context.Background(), 5)

	assert.Equal(t, RoleGuest, id.Role)
	stats := r.Stats()
	assert.Equal(t, int64(2), stats.ErrorFallthroughs)
	assert.Equal(t, int64(1), stats.GuestFallbacks)
}

func TestResolveCacheHit(t *testing.T) {
	source := &fakeSource{
		studio: &StudioMembership{UserID: 1, StudioID: 7, Role: RoleStudioMember},
	}
	r := newTestResolver(source)
	ctx := context.Background()

	first := r.Resolve(ctx, 1)
	second := r.Resolve(ctx, 1)

	assert.Equal(t, first, second)
	studioCalls, _ := source.calls()
	assert.Equal(t, 1, studioCalls)
	assert.Equal(t, int64(1), r.Stats().CacheHits)
}

func TestResolveUnknownRoleKeepsNameDerivesGuest(t *testing.T) {
	source := &fakeSource{
		studio: &StudioMembership{UserID: 1, StudioID: 7, Role: Role("superuser")},
	}
	r := newTestResolver(source)

	id := r.Resolve(context.Background(), 1)

	assert.Equal(t, Role("superuser"), id.Role)
	assert.Equal(t, DerivePermissions(RoleGuest, false, true), id.Permissions)
	assert.Equal(t, int64(1), r.Stats().UnknownRoles)
}

func TestResolveCoalescesConcurrentCalls(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeSource{
		studio: &StudioMembership{UserID: 1, StudioID: 7, Role: RoleStudioAdmin},
		gate:   gate,
	}
	r := newTestResolver(source)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	results := make([]*ResolvedIdentity, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(ctx, 1)
		}(i)
	}

	// let all goroutines pile onto the in-flight resolution
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	studioCalls, _ := source.calls()
	assert.Equal(t, 1, studioCalls, "concurrent resolutions must share one query sequence")
	for _, id := range results {
		assert.Equal(t, RoleStudioAdmin, id.Role)
	}
}

func TestInvalidateDiscardsInFlightResult(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeSource{
		studio: &StudioMembership{UserID: 1, StudioID: 7, Role: RoleStudioAdmin},
		gate:   gate,
	}
	cache := NewMemoryCache(64, time.Minute)
	r := NewResolver(source, cache, observability.NewLogger(observability.ErrorLevel, nil))
	ctx := context.Background()

	done := make(chan *ResolvedIdentity, 1)
	go func() {
		done <- r.Resolve(ctx, 1)
	}()

	time.Sleep(50 * time.Millisecond)
	r.Invalidate(ctx, 1)
	close(gate)

	id := <-done
	assert.Equal(t, RoleStudioAdmin, id.Role, "caller still gets the freshest answer")

	// the invalidated result must not have been cached
	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)
	assert.Equal(t, int64(1), r.Stats().Discarded)
}

func TestInvalidateForcesFreshResolution(t *testing.T) {
	source := &fakeSource{
		studio: &StudioMembership{UserID: 1, StudioID: 7, Role: RoleStudioMember},
	}
	r := newTestResolver(source)
	ctx := context.Background()

	first := r.Resolve(ctx, 1)
	assert.Equal(t, RoleStudioMember, first.Role)

	// promote the user, then invalidate
	source.mu.Lock()
	source.studio = &StudioMembership{UserID: 1, StudioID: 7, Role: RoleStudioAdmin}
	source.mu.Unlock()
	r.Invalidate(ctx, 1)

	second := r.Resolve(ctx, 1)
	assert.Equal(t, RoleStudioAdmin, second.Role)

	studioCalls, _ := source.calls()
	assert.Equal(t, 2, studioCalls)
}
