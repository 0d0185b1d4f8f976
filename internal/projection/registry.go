package projection

import (
	"fmt"
	"time"
)

// HandlerConfig is one handler's per-projection tuning (spec §4.4.1):
// how many events it pulls per batch, the fixed interval between polls
// (the engine waits it after every batch, whether or not the batch was
// empty or full), whether it coordinates with other replicas via a
// named advisory lock, and whether it should rebuild from zero the
// first time the engine starts it.
type HandlerConfig struct {
	BatchSize      int
	PollInterval   time.Duration
	EnableLocking  bool
	RebuildOnStart bool
}

// Registry holds every handler the engine schedules, plus each
// handler's HandlerConfig.
type Registry struct {
	handlers map[string]Handler
	configs  map[string]HandlerConfig
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler), configs: make(map[string]HandlerConfig)}
}

// Register adds h with the engine's default config (no per-handler
// override). Equivalent to RegisterWithConfig(h, HandlerConfig{}).
func (r *Registry) Register(h Handler) {
	r.RegisterWithConfig(h, HandlerConfig{})
}

// RegisterWithConfig adds h with an explicit per-handler
// HandlerConfig (spec §4.4.1). Zero-valued fields fall back to the
// engine's defaults at poll time.
func (r *Registry) RegisterWithConfig(h Handler, cfg HandlerConfig) {
	r.handlers[h.Name()] = h
	r.configs[h.Name()] = cfg
}

func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Config returns name's registered HandlerConfig, or the zero value if
// it was registered with Register (meaning "use engine defaults").
func (r *Registry) Config(name string) HandlerConfig {
	return r.configs[name]
}

func (r *Registry) All() []Handler {
	out := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	return out
}

// StartOrder topologically sorts registered handlers so that any
// handler naming a dependency via DependencyAware.DependsOn starts
// after every dependency it names (spec §4.4 "start ordering" — a
// handler whose table has a foreign key into another handler's table
// must not process events that would violate that key before the
// referenced row exists).
func (r *Registry) StartOrder() ([]Handler, error) {
	visited := make(map[string]int) // 0=unvisited, 1=in-progress, 2=done
	var order []Handler

	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("projection dependency cycle detected at %q", name)
		}
		visited[name] = 1
		h, ok := r.handlers[name]
		if !ok {
			return fmt.Errorf("unknown projection dependency %q", name)
		}
		if dep, ok := h.(DependencyAware); ok {
			for _, d := range dep.DependsOn() {
				if err := visit(d); err != nil {
					return err
				}
			}
		}
		visited[name] = 2
		order = append(order, h)
		return nil
	}

	// Deterministic only within a Go map iteration in the sense that
	// every handler ends up somewhere in order; callers that need
	// byte-for-byte reproducible start order should register handlers
	// in the order they want ties broken and rely on map iteration
	// rarely reordering a fully-connected dependency chain.
	for name := range r.handlers {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
