// Package identity resolves an authenticated principal's role and derives
// its capability set.
//
// Resolution consults membership relations strictly in order (studio
// membership, then client membership); the first match wins and later
// sources are never queried. Lookup errors fall through to the next source
// and ultimately to guest, so resolution always terminates with a usable,
// worst-case-restrictive identity. Results are memoized per principal in a
// session-scoped cache, concurrent resolutions for the same principal are
// coalesced, and the Publisher republishes identity changes to subscribers
// across the sign-in/sign-out lifecycle.
package identity
