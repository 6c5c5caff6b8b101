package capability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/grants"
)

// Status describes the cache lifecycle.
type Status string

const (
	// StatusIdle means no load has been attempted for the current role.
	StatusIdle Status = "idle"
	// StatusLoading means a load is in flight.
	StatusLoading Status = "loading"
	// StatusReady means Can answers from a fresh capability set.
	StatusReady Status = "ready"
	// StatusError means the last load failed.
	StatusError Status = "error"
)

// Source fetches the aggregated capability structure for a role.
type Source interface {
	Capabilities(ctx context.Context, roleSlug string) ([]grants.ModuleCapability, error)
}

// Config tunes cache behaviour. Zero values fall back to defaults.
type Config struct {
	// Timeout bounds a single fetch attempt.
	Timeout time.Duration
	// Attempts caps fetch retries on the read path. Mutations are never
	// retried anywhere; this only covers loads.
	Attempts int
	// RetainOnError keeps the previous capability set when a reload
	// fails. Off by default: stale capabilities fail open, so the
	// default clears to empty and Can answers false.
	RetainOnError bool
}

const (
	defaultTimeout  = 5 * time.Second
	defaultAttempts = 3
)

// Cache holds the capability set for the active role and answers
// synchronous permission checks without touching the network. It must be
// loaded explicitly; role changes clear it.
type Cache struct {
	source Source
	cfg    Config

	mu     sync.Mutex
	role   string
	caps   []grants.ModuleCapability
	status Status
	gen    uint64
}

// NewCache constructs a Cache bound to a source.
func NewCache(source Source, cfg Config) *Cache {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	return &Cache{source: source, cfg: cfg, status: StatusIdle}
}

// SetRole switches the active role context. Switching clears the cached
// set immediately and invalidates any load still in flight; capabilities
// from a previous role must never answer for the new one.
func (c *Cache) SetRole(roleSlug string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role == roleSlug {
		return
	}
	c.role = roleSlug
	c.caps = nil
	c.status = StatusIdle
	c.gen++
}

// Load fetches the capability set for the active role. A fetch that
// resolves after the role changed is discarded instead of clobbering the
// newer state.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	role := c.role
	gen := c.gen
	c.status = StatusLoading
	c.mu.Unlock()

	if role == "" {
		return c.commit(gen, nil, errors.New("capability: no active role"))
	}

	var caps []grants.ModuleCapability
	var err error
	for attempt := 0; attempt < c.cfg.Attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		caps, err = c.source.Capabilities(attemptCtx, role)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
	}
	return c.commit(gen, caps, err)
}

func (c *Cache) commit(gen uint64, caps []grants.ModuleCapability, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		// Role changed while the fetch was in flight; drop the result.
		return nil
	}
	if err != nil {
		c.status = StatusError
		if !c.cfg.RetainOnError {
			c.caps = nil
		}
		return err
	}
	c.caps = caps
	c.status = StatusReady
	return nil
}

// Can answers whether the active role may perform an action. Pure lookup
// over the loaded set; false for anything absent, including before the
// first successful load.
func (c *Cache) Can(module, menu, action string) bool {
	c.mu.Lock()
	caps := c.caps
	c.mu.Unlock()
	return Allowed(caps, module, menu, action)
}

// Status returns the current lifecycle state.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Role returns the active role slug.
func (c *Cache) Role() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}
