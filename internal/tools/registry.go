package tools

import (
	"sort"
	"sync"

	"github.com/propai/propai/pkg/schema"
)

// Registry is a thread-safe name -> Tool lookup table.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Returns error on duplicate name.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return schema.NewError(schema.ErrCodeValidation, "tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "tool %q already registered", name)
	}

	r.tools[name] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeToolNotRegistered, "tool not registered: %s", name)
	}
	return tool, nil
}

// List returns info for all registered tools, sorted by name.
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(r.tools))
	for _, tool := range r.tools {
		s := tool.Schema()
		infos = append(infos, ToolInfo{
			Name:        tool.Name(),
			Description: s.Description,
			Inputs:      s.Inputs,
			Outputs:     s.Outputs,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Has checks if a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
