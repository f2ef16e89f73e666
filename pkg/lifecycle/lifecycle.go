// Package lifecycle coordinates subsystem startup, readiness probing and
// shutdown for a long-running process.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Hook is a named startup or shutdown step.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Coordinator manages startup hooks, shutdown hooks and readiness probes.
// Startup hooks run concurrently and start as soon as they are registered.
// Shutdown hooks run in reverse registration order once Shutdown is called.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	startup errgroup.Group

	mu       sync.RWMutex
	ready    bool
	shutdown []Hook
	probes   []Hook
}

// New creates a Coordinator with a cancellable context.
func New(logger *slog.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("system", "lifecycle"),
	}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn concurrently with the other startup hooks.
// The first hook error is returned from WaitForStartup.
func (c *Coordinator) OnStartup(name string, fn func(ctx context.Context) error) {
	c.startup.Go(func() error {
		start := time.Now()
		if err := fn(c.ctx); err != nil {
			c.logger.Error("startup hook failed", "hook", name, "error", err)
			return fmt.Errorf("%s: %w", name, err)
		}
		c.logger.Info("startup hook complete", "hook", name, "elapsed", time.Since(start))
		return nil
	})
}

// OnShutdown registers fn to run during Shutdown.
func (c *Coordinator) OnShutdown(name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = append(c.shutdown, Hook{Name: name, Fn: fn})
}

// Probe registers a readiness check consulted by Check.
func (c *Coordinator) Probe(name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes = append(c.probes, Hook{Name: name, Fn: fn})
}

// Ready returns true after every startup hook has succeeded.
func (c *Coordinator) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// WaitForStartup blocks until all startup hooks have returned. The ready
// flag is set only when none of them failed.
func (c *Coordinator) WaitForStartup() error {
	if err := c.startup.Wait(); err != nil {
		return err
	}
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

// Check runs every probe and returns the failures keyed by probe name.
// An empty map with a ready coordinator means the process can take traffic.
func (c *Coordinator) Check(ctx context.Context) map[string]string {
	c.mu.RLock()
	probes := slices.Clone(c.probes)
	c.mu.RUnlock()

	failures := make(map[string]string)
	var mu sync.Mutex
	var g errgroup.Group
	for _, p := range probes {
		g.Go(func() error {
			if err := p.Fn(ctx); err != nil {
				mu.Lock()
				failures[p.Name] = err.Error()
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return failures
}

// Shutdown cancels the coordinator context and runs shutdown hooks in
// reverse order. Hook errors are joined; exceeding timeout abandons the
// remaining hooks.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	c.mu.Lock()
	c.ready = false
	hooks := slices.Clone(c.shutdown)
	c.mu.Unlock()
	slices.Reverse(hooks)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var errs []error
		for _, h := range hooks {
			if err := h.Fn(ctx); err != nil {
				c.logger.Error("shutdown hook failed", "hook", h.Name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
