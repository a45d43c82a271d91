package mdbatch

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
)

// closableConverter counts Close calls and can fail them.
type closableConverter struct {
	mu       sync.Mutex
	closed   int
	closeErr error
}

func (c *closableConverter) Convert(ctx context.Context, doc Document) error { return nil }

func (c *closableConverter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return c.closeErr
}

func TestConverterPool_LazyCreation(t *testing.T) {
	created := 0
	pool := NewConverterPool(3, func() Converter {
		created++
		return &closableConverter{}
	})

	if created != 0 {
		t.Fatalf("factory called %d times at pool creation, want 0", created)
	}

	c := pool.Acquire()
	if created != 1 {
		t.Errorf("factory called %d times after first acquire, want 1", created)
	}
	pool.Release(c)

	// A released converter is reused before a new one is created.
	c = pool.Acquire()
	if created != 1 {
		t.Errorf("factory called %d times after reacquire, want 1", created)
	}
	pool.Release(c)
}

func TestConverterPool_BoundedSize(t *testing.T) {
	created := 0
	pool := NewConverterPool(2, func() Converter {
		created++
		return &closableConverter{}
	})

	a := pool.Acquire()
	b := pool.Acquire()
	if created != 2 {
		t.Fatalf("factory called %d times, want 2", created)
	}

	// Third acquire must block until a release.
	got := make(chan Converter)
	go func() { got <- pool.Acquire() }()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-got:
		t.Fatal("Acquire returned with all converters in use")
	default:
	}

	pool.Release(a)
	c := <-got
	if created != 2 {
		t.Errorf("factory called %d times, want 2 (reuse, not growth)", created)
	}
	pool.Release(b)
	pool.Release(c)
}

func TestConverterPool_MinimumSize(t *testing.T) {
	pool := NewConverterPool(0, func() Converter { return &closableConverter{} })
	if pool.Size() != 1 {
		t.Errorf("Size() = %d, want 1 for n=0", pool.Size())
	}
}

func TestConverterPool_Close(t *testing.T) {
	conv := &closableConverter{}
	pool := NewConverterPool(1, func() Converter { return conv })

	c := pool.Acquire()
	pool.Release(c)

	if err := pool.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.closed != 1 {
		t.Errorf("Close called %d times on converter, want 1", conv.closed)
	}

	// Second close is a no-op.
	if err := pool.Close(); err != nil {
		t.Errorf("second Close errored: %v", err)
	}
}

func TestConverterPool_CloseAggregatesErrors(t *testing.T) {
	failure := errors.New("browser did not exit")
	var convs []*closableConverter
	pool := NewConverterPool(2, func() Converter {
		c := &closableConverter{closeErr: failure}
		convs = append(convs, c)
		return c
	})

	a := pool.Acquire()
	b := pool.Acquire()
	pool.Release(a)
	pool.Release(b)

	if err := pool.Close(); !errors.Is(err, failure) {
		t.Errorf("error = %v, want to wrap %v", err, failure)
	}
	if len(convs) != 2 {
		t.Fatalf("created %d converters, want 2", len(convs))
	}
}

func TestResolvePoolSize(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit value wins", 5, 5},
		{"explicit value above cap wins", 12, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePoolSize(tt.workers); got != tt.want {
				t.Errorf("ResolvePoolSize(%d) = %d, want %d", tt.workers, got, tt.want)
			}
		})
	}

	t.Run("auto sizing clamps to bounds", func(t *testing.T) {
		got := ResolvePoolSize(0)
		if got < MinPoolSize || got > MaxPoolSize {
			t.Errorf("ResolvePoolSize(0) = %d, want within [%d, %d]", got, MinPoolSize, MaxPoolSize)
		}

		want := runtime.GOMAXPROCS(0) / 2
		if want < MinPoolSize {
			want = MinPoolSize
		}
		if want > MaxPoolSize {
			want = MaxPoolSize
		}
		if got != want {
			t.Errorf("ResolvePoolSize(0) = %d, want %d for %d procs", got, want, runtime.GOMAXPROCS(0))
		}
	})
}
