package storefront

import (
	"context"
	"sync"
	"time"

	"storefront/internal/broker"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Registry holds the live browsing contexts by session id. Evicting a
// context drops its in-process state; unless Deps.DropSessionOnEvict is set
// the persisted session survives and the cart mirror is rebuilt on the next
// fetch.
type Registry struct {
	deps Deps
	now  func() time.Time

	mu       sync.Mutex
	contexts map[string]*Storefront
}

// NewRegistry creates an empty registry
func NewRegistry(deps Deps) *Registry {
	if deps.Publisher == nil {
		deps.Publisher = broker.NopPublisher{}
	}
	return &Registry{
		deps:     deps,
		now:      time.Now,
		contexts: make(map[string]*Storefront),
	}
}

// Get returns the context for id, creating it on first use.
func (r *Registry) Get(id string) *Storefront {
	r.mu.Lock()
	defer r.mu.Unlock()

	sf, ok := r.contexts[id]
	if !ok {
		sf = New(id, r.deps)
		r.contexts[id] = sf
		util.ActiveContexts.Set(float64(len(r.contexts)))
	}
	sf.touch(r.now())
	return sf
}

// EvictIdle drops contexts not seen for idleAfter and returns how many went.
func (r *Registry) EvictIdle(ctx context.Context, idleAfter time.Duration) int {
	cutoff := r.now().Add(-idleAfter)

	r.mu.Lock()
	var evicted []*Storefront
	for id, sf := range r.contexts {
		if sf.LastSeen().Before(cutoff) {
			delete(r.contexts, id)
			evicted = append(evicted, sf)
		}
	}
	util.ActiveContexts.Set(float64(len(r.contexts)))
	r.mu.Unlock()

	if r.deps.DropSessionOnEvict {
		for _, sf := range evicted {
			if err := sf.Tokens.Logout(ctx); err != nil {
				sf.logger.Error("Failed to drop evicted session", zap.Error(err))
			}
		}
	}
	return len(evicted)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}
