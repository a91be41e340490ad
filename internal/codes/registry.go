package codes

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"
)

const (
	// MinCode and MaxCode bound the 4-digit code space.
	MinCode = 1000
	MaxCode = 9999
	// Capacity is the number of distinct codes.
	Capacity = MaxCode - MinCode + 1

	defaultMaxAttempts = 64
)

var ErrCodeSpaceExhausted = errors.New("code space exhausted")

// Source returns a pseudo-random integer in [0, n).
type Source func(n int) int

// Registry maps live codes to the connection that owns them.
// All access goes through a single mutex so the uniqueness check and
// the insert in Allocate are one step.
type Registry struct {
	mu     sync.Mutex
	owners map[string]string

	rand        Source
	maxAttempts int
}

type Option func(*Registry)

// WithSource replaces the random source, mainly for tests.
func WithSource(src Source) Option {
	return func(r *Registry) { r.rand = src }
}

// WithMaxAttempts bounds the random draws before Allocate falls back to probing.
func WithMaxAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		owners:      make(map[string]string),
		rand:        rand.IntN,
		maxAttempts: defaultMaxAttempts,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Allocate binds a fresh code to owner. Random candidates are tried first;
// once maxAttempts draws have collided, the remaining slots are probed
// linearly from a random offset so a free code is always found if one exists.
func (r *Registry) Allocate(owner string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 1; i <= r.maxAttempts; i++ {
		code := format(r.rand(Capacity))
		if _, taken := r.owners[code]; !taken {
			r.owners[code] = owner
			observeAllocation(i, len(r.owners))
			return code, nil
		}
	}

	start := r.rand(Capacity)
	for i := 0; i < Capacity; i++ {
		code := format((start + i) % Capacity)
		if _, taken := r.owners[code]; !taken {
			r.owners[code] = owner
			observeAllocation(r.maxAttempts+i+1, len(r.owners))
			return code, nil
		}
	}

	metricExhausted.Inc()
	return "", ErrCodeSpaceExhausted
}

// Lookup returns the owner of a live code.
func (r *Registry) Lookup(code string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[code]
	return owner, ok
}

// Release removes every code owned by owner and returns them in ascending order.
// Calling it for an owner with no codes is a no-op.
func (r *Registry) Release(owner string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var released []string
	for code, o := range r.owners {
		if o == owner {
			released = append(released, code)
		}
	}
	for _, code := range released {
		delete(r.owners, code)
	}
	slices.Sort(released)

	if n := len(released); n > 0 {
		metricReleased.Add(float64(n))
		gaugeLive.Set(float64(len(r.owners)))
	}
	return released
}

// ReleaseCode removes a single code if owner still holds it.
func (r *Registry) ReleaseCode(code, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.owners[code]; !ok || o != owner {
		return false
	}
	delete(r.owners, code)
	metricReleased.Inc()
	gaugeLive.Set(float64(len(r.owners)))
	return true
}

// Len reports the number of live codes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}

// Valid reports whether s has the shape of a code. It says nothing about liveness.
func Valid(s string) bool {
	if len(s) != 4 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= MinCode && n <= MaxCode
}

func format(offset int) string { return strconv.Itoa(MinCode + offset) }
