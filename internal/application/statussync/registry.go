// Package statussync lets callers mirror workflow state onto the governed
// business records. The engine itself never touches those records; the caller
// runs Sync after a successful transition.
package statussync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// Hook updates the business record an instance governs
type Hook func(ctx context.Context, instance *entity.WorkflowInstance) error

// HookInfo contains hook metadata for debugging
type HookInfo struct {
	Name        string
	RecordTable string
	Hook        Hook
}

// Registry routes instances to the hooks registered for their record table
type Registry interface {
	// Register adds a named hook for a record table. Registering a name twice replaces the hook.
	Register(recordTable, name string, hook Hook)

	// Unregister removes a hook by name
	Unregister(recordTable, name string)

	// Sync runs every hook registered for the instance's record table in
	// registration order. All hooks run; failures are joined into the returned error.
	Sync(ctx context.Context, instance *entity.WorkflowInstance) error

	// ListHooks returns the hooks registered for a record table
	ListHooks(recordTable string) []HookInfo
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type registry struct {
	mu     sync.RWMutex
	hooks  map[string][]HookInfo
	logger Logger
}

// Option configures the registry
type Option func(*registry)

// WithLogger sets a logger for the registry
func WithLogger(logger Logger) Option {
	return func(r *registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty hook registry
func NewRegistry(opts ...Option) Registry {
	r := &registry{
		hooks: make(map[string][]HookInfo),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *registry) Register(recordTable, name string, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := HookInfo{Name: name, RecordTable: recordTable, Hook: hook}

	hooks := r.hooks[recordTable]
	replaced := false
	for i := range hooks {
		if hooks[i].Name == name {
			hooks[i] = info
			replaced = true
		}
	}
	if !replaced {
		r.hooks[recordTable] = append(hooks, info)
	}

	if r.logger != nil {
		r.logger.Info("Status sync hook registered",
			"record_table", recordTable,
			"hook_name", name,
		)
	}
}

func (r *registry) Unregister(recordTable, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hooks := r.hooks[recordTable]
	filtered := make([]HookInfo, 0, len(hooks))
	for _, h := range hooks {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}
	r.hooks[recordTable] = filtered
}

func (r *registry) Sync(ctx context.Context, instance *entity.WorkflowInstance) error {
	if instance == nil {
		return fmt.Errorf("status sync: nil instance")
	}

	r.mu.RLock()
	hooks := append([]HookInfo(nil), r.hooks[instance.RecordTable]...)
	r.mu.RUnlock()

	var errs []error
	for _, info := range hooks {
		if err := r.safeExecute(ctx, instance, info); err != nil {
			if r.logger != nil {
				r.logger.Error("Status sync hook failed",
					"record_table", instance.RecordTable,
					"record_id", instance.RecordID,
					"instance_id", instance.ID,
					"hook_name", info.Name,
					"error", err,
				)
			}
			errs = append(errs, fmt.Errorf("hook %s: %w", info.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (r *registry) ListHooks(recordTable string) []HookInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hooks := r.hooks[recordTable]
	result := make([]HookInfo, len(hooks))
	for i, h := range hooks {
		result[i] = HookInfo{Name: h.Name, RecordTable: h.RecordTable}
	}
	return result
}

// safeExecute runs a hook with panic recovery
func (r *registry) safeExecute(ctx context.Context, instance *entity.WorkflowInstance, info HookInfo) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panic: %v", p)
		}
	}()

	return info.Hook(ctx, instance)
}
