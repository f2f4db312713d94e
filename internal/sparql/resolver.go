package sparql

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Resolver yields the base URL (scheme://host[:port]) of the store. It is
// consulted before each request so the store can move between calls.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver always returns the same base URL.
type StaticResolver string

func (s StaticResolver) Resolve(context.Context) (string, error) {
	return string(s), nil
}

// lookupTimeout bounds one shared DNS lookup.
const lookupTimeout = 10 * time.Second

// LookupFunc resolves a host name to addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// DNSResolver re-resolves a host name to an address and caches the answer
// for TTL. Concurrent resolutions of an expired entry share one lookup.
type DNSResolver struct {
	Scheme string
	Host   string
	Port   int
	TTL    time.Duration

	lookup LookupFunc
	now    func() time.Time
	group  singleflight.Group

	mu      sync.Mutex
	cached  string
	expires time.Time
}

// NewDNSResolver returns a resolver for host using the default net resolver.
func NewDNSResolver(scheme, host string, port int, ttl time.Duration) *DNSResolver {
	if scheme == "" {
		scheme = "http"
	}
	return &DNSResolver{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		TTL:    ttl,
		lookup: net.DefaultResolver.LookupHost,
		now:    time.Now,
	}
}

// WithLookup replaces the lookup function, for tests.
func (r *DNSResolver) WithLookup(fn LookupFunc) *DNSResolver {
	r.lookup = fn
	return r
}

func (r *DNSResolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.cached != "" && r.now().Before(r.expires) {
		base := r.cached
		r.mu.Unlock()
		return base, nil
	}
	r.mu.Unlock()

	ch := r.group.DoChan(r.Host, func() (any, error) {
		// shared by every waiting caller, so one caller's cancellation must
		// not fail the others
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		addrs, err := r.lookup(lctx, r.Host)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", r.Host, err)
		}
		if len(addrs) == 0 {
			return "", fmt.Errorf("resolve %s: no addresses", r.Host)
		}
		hostport := addrs[0]
		if r.Port > 0 {
			hostport = net.JoinHostPort(addrs[0], strconv.Itoa(r.Port))
		} else if ip := net.ParseIP(addrs[0]); ip != nil && ip.To4() == nil {
			hostport = "[" + addrs[0] + "]"
		}
		base := r.Scheme + "://" + hostport

		r.mu.Lock()
		r.cached = base
		r.expires = r.now().Add(r.TTL)
		r.mu.Unlock()
		return base, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached address so the next call re-resolves.
func (r *DNSResolver) Invalidate() {
	r.mu.Lock()
	r.cached = ""
	r.mu.Unlock()
}
