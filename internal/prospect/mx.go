package prospect

import (
	"context"
	"net"
	"sync"
)

// MXResolver is satisfied by *net.Resolver.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// MXVerifier checks that a domain accepts mail, caching answers per domain.
type MXVerifier struct {
	resolver MXResolver
	mu       sync.Mutex
	cache    map[string]bool
}

// NewMXVerifier uses net.DefaultResolver when resolver is nil.
func NewMXVerifier(resolver MXResolver) *MXVerifier {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &MXVerifier{resolver: resolver, cache: make(map[string]bool)}
}

// HasMX reports whether domain publishes at least one MX record. Lookup
// failures count as no.
func (v *MXVerifier) HasMX(ctx context.Context, domain string) bool {
	v.mu.Lock()
	ok, cached := v.cache[domain]
	v.mu.Unlock()
	if cached {
		return ok
	}

	records, err := v.resolver.LookupMX(ctx, domain)
	ok = err == nil && len(records) > 0
	if ctx.Err() == nil {
		v.mu.Lock()
		v.cache[domain] = ok
		v.mu.Unlock()
	}
	return ok
}
