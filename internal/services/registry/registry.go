// Package registry tracks the investors currently active in the process.
// There is never more than one live Investor instance per id: concurrent
// lookups of the same account receive the same pointer.
package registry

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

// InvestorRepository is the durable store of investor data.
type InvestorRepository interface {
	Load(ctx context.Context, id string) (*domain.Investor, error)
	Save(ctx context.Context, investor *domain.Investor) error
	SaveAll(ctx context.Context, investors []*domain.Investor) error
}

// Registry is the in-memory set of active investors.
type Registry struct {
	repo   InvestorRepository
	logger *zap.Logger

	// loading collapses concurrent activations of the same id into one
	// repository round trip; the mutex only guards the active map, never I/O.
	loading singleflight.Group
	mu      sync.RWMutex
	active  map[string]*domain.Investor
}

// New builds an empty registry backed by the repository.
func New(repo InvestorRepository, logger *zap.Logger) (*Registry, error) {
	if repo == nil {
		return nil, errors.New("investor repository is required")
	}
	return &Registry{repo: repo, logger: logger, active: make(map[string]*domain.Investor)}, nil
}

// Load activates the investor: an already active instance is returned as is,
// otherwise the record is fetched from the repository, or created and
// persisted when the id was never seen before.
func (r *Registry) Load(ctx context.Context, id string) (*domain.Investor, error) {
	if investor, ok := r.Get(id); ok {
		return investor, nil
	}

	v, err, _ := r.loading.Do(id, func() (interface{}, error) {
		// a concurrent activation may have published while we queued
		if investor, ok := r.Get(id); ok {
			return investor, nil
		}

		investor, err := r.repo.Load(ctx, id)
		switch {
		case err == nil:
			r.logger.Debug("investor data loaded", zap.String("investor", id))
		case errors.Is(err, domain.ErrNotFound):
			investor = domain.NewInvestor(id)
			if err := r.repo.Save(ctx, investor); err != nil {
				return nil, errors.Wrapf(err, "create investor %s", id)
			}
			r.logger.Info("new investor created", zap.String("investor", id))
		default:
			return nil, errors.Wrapf(err, "load investor %s", id)
		}

		r.mu.Lock()
		r.active[id] = investor
		r.mu.Unlock()
		return investor, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Investor), nil
}

// Get returns the active instance for the id, if any.
func (r *Registry) Get(id string) (*domain.Investor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	investor, ok := r.active[id]
	return investor, ok
}

// Unload saves the investor and removes it from the active set. Unloading an
// inactive id is a no-op.
func (r *Registry) Unload(ctx context.Context, id string) error {
	r.mu.Lock()
	investor, ok := r.active[id]
	delete(r.active, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := r.repo.Save(ctx, investor); err != nil {
		return errors.Wrapf(err, "save investor %s on unload", id)
	}
	r.logger.Debug("investor unloaded", zap.String("investor", id))
	return nil
}

// Active returns a snapshot of the currently active investors.
func (r *Registry) Active() []*domain.Investor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Investor, 0, len(r.active))
	for _, investor := range r.active {
		out = append(out, investor)
	}
	return out
}

// FlushAll persists every active investor. Used by the periodic save job and
// at shutdown.
func (r *Registry) FlushAll(ctx context.Context) error {
	investors := r.Active()
	if len(investors) == 0 {
		return nil
	}
	if err := r.repo.SaveAll(ctx, investors); err != nil {
		return errors.Wrap(err, "save active investors")
	}
	r.logger.Debug("active investors flushed", zap.Int("count", len(investors)))
	return nil
}
