package mdbatch

import (
	"errors"
	"io"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one converter is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// ConverterPool manages a bounded set of Converter instances for
// parallel processing. Each converter owns its own rendering resources
// (one browser instance for the default Renderer), enabling true
// parallelism. Converters are created lazily on first acquire to avoid
// startup delay.
type ConverterPool struct {
	size       int
	factory    func() Converter
	converters []Converter
	sem        chan Converter
	mu         sync.Mutex
	created    int
	closed     bool
}

// Compile-time check that ConverterPool implements Pool.
var _ Pool = (*ConverterPool)(nil)

// NewConverterPool creates a pool with capacity for n converters built
// by factory. A nil factory defaults to NewRenderer. Converters are
// created lazily when acquired, not at pool creation.
func NewConverterPool(n int, factory func() Converter) *ConverterPool {
	if n < 1 {
		n = 1
	}
	if factory == nil {
		factory = func() Converter { return NewRenderer() }
	}

	return &ConverterPool{
		size:       n,
		factory:    factory,
		converters: make([]Converter, 0, n),
		sem:        make(chan Converter, n),
	}
}

// Acquire gets a converter from the pool, creating one if capacity
// allows. Blocks if all converters are in use.
func (p *ConverterPool) Acquire() Converter {
	// Try to get an existing converter (non-blocking)
	select {
	case c := <-p.sem:
		return c
	default:
	}

	// Check if we can create a new converter
	p.mu.Lock()
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		// Create outside the lock: factories may be slow (browser launch)
		c := p.factory()

		p.mu.Lock()
		p.converters = append(p.converters, c)
		p.mu.Unlock()

		return c
	}
	p.mu.Unlock()

	// All converters created, wait for one to be released
	return <-p.sem
}

// Release returns a converter to the pool.
// The lock is released before sending to avoid deadlock when the
// channel is full.
func (p *ConverterPool) Release(c Converter) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.sem <- c
}

// Close releases all converter resources (browsers for the default
// Renderer). Returns an aggregated error if multiple converters fail to
// close.
func (p *ConverterPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	converters := p.converters
	p.mu.Unlock()

	var errs []error
	for _, c := range converters {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *ConverterPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the optimal pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
// Exported for use by servers and CLIs.
func ResolvePoolSize(workers int) int {
	// Explicit value takes priority
	if workers > 0 {
		return workers
	}

	// Auto-calculate based on GOMAXPROCS (adjusted by automaxprocs in containers)
	available := runtime.GOMAXPROCS(0)
	n := available / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
