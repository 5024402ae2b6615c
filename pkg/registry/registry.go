// Package registry holds the lookup tables that bind names used in cards
// to concrete model and tool implementations. Registration order is
// preserved so callers iterating the registry see a stable sequence.
package registry

import (
	"strings"
	"sync"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

// ModelRegistry maps model names, plus optional aliases, to models.
type ModelRegistry struct {
	mu      sync.RWMutex
	models  map[string]domain.Model
	aliases map[string]string
	order   []string
}

// NewModelRegistry creates an empty model registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models:  make(map[string]domain.Model),
		aliases: make(map[string]string),
	}
}

// RegisterModel adds or replaces a model under its canonical name. Aliases
// resolve to the same model; blank aliases are ignored.
func (r *ModelRegistry) RegisterModel(name string, model domain.Model, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[name]; !exists {
		r.order = append(r.order, name)
	}
	r.models[name] = model
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		r.aliases[alias] = name
	}
}

// ResolveModel looks up a model by canonical name or alias.
func (r *ModelRegistry) ResolveModel(name string) (domain.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if model, ok := r.models[name]; ok {
		return model, true
	}
	if canonical, ok := r.aliases[name]; ok {
		model, ok := r.models[canonical]
		return model, ok
	}
	return nil, false
}

// ModelNames returns canonical model names in registration order.
func (r *ModelRegistry) ModelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ToolRegistry maps tool references to tools.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]domain.Tool
	aliases map[string]string
	order   []string
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]domain.Tool),
		aliases: make(map[string]string),
	}
}

// RegisterTool adds or replaces a tool under its canonical reference.
func (r *ToolRegistry) RegisterTool(ref string, tool domain.Tool, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[ref]; !exists {
		r.order = append(r.order, ref)
	}
	r.tools[ref] = tool
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		r.aliases[alias] = ref
	}
}

// ResolveTool looks up a tool by canonical reference or alias.
func (r *ToolRegistry) ResolveTool(ref string) (domain.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool, ok := r.tools[ref]; ok {
		return tool, true
	}
	if canonical, ok := r.aliases[ref]; ok {
		tool, ok := r.tools[canonical]
		return tool, ok
	}
	return nil, false
}

// ToolRefs returns canonical tool references in registration order.
func (r *ToolRegistry) ToolRefs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
