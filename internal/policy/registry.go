package policy

import (
	"strings"
	"sync"

	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"github.com/aleister1102/quicklink/internal/idle"
)

// Registry maps the names used in `timeoutFn` and `onError` to
// implementations supplied by the caller at configuration time.
type Registry struct {
	mu         sync.RWMutex
	schedulers map[string]idle.Scheduler
	handlers   map[string]ErrorHandler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		schedulers: make(map[string]idle.Scheduler),
		handlers:   make(map[string]ErrorHandler),
	}
}

// RegisterScheduler makes a scheduler available under name
func (r *Registry) RegisterScheduler(name string, scheduler idle.Scheduler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errorwrapper.NewValidationError("name", name, "scheduler name cannot be empty")
	}
	if scheduler == nil {
		return errorwrapper.NewValidationError("scheduler", name, "scheduler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedulers[name] = scheduler
	return nil
}

// RegisterErrorHandler makes an error handler available under name
func (r *Registry) RegisterErrorHandler(name string, handler ErrorHandler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errorwrapper.NewValidationError("name", name, "error handler name cannot be empty")
	}
	if handler == nil {
		return errorwrapper.NewValidationError("handler", name, "error handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
	return nil
}

// Scheduler looks up a scheduler by name
func (r *Registry) Scheduler(name string) (idle.Scheduler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	scheduler, ok := r.schedulers[name]
	return scheduler, ok
}

// ErrorHandler looks up an error handler by name
func (r *Registry) ErrorHandler(name string) (ErrorHandler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}
