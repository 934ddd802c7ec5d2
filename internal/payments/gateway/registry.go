package gateway

import (
	"sync"

	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

// Factory builds a provider. Factories run lazily on first resolution and
// fail fast when required credentials are missing.
type Factory func() (Gateway, error)

// Registry holds provider factories and caches constructed instances by
// provider code. It is built once at process start and shared by reference.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]Gateway
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		instances: map[string]Gateway{},
	}
}

// Register binds a factory to a provider code. Later registrations replace
// earlier ones and drop any cached instance.
func (r *Registry) Register(code string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[code] = factory
	delete(r.instances, code)
}

// Resolve returns the cached provider for code, constructing it on first use.
// A missing factory or a construction failure is a configuration error.
func (r *Registry) Resolve(code string) (Gateway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if instance, ok := r.instances[code]; ok {
		return instance, nil
	}
	factory, ok := r.factories[code]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "no gateway registered").
			WithDetails(map[string]string{"gateway": code})
	}
	instance, err := factory()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "constructing gateway "+code)
	}
	r.instances[code] = instance
	return instance, nil
}

// Codes lists the registered provider codes.
func (r *Registry) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.factories))
	for code := range r.factories {
		codes = append(codes, code)
	}
	return codes
}
