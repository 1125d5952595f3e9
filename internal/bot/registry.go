package bot

import (
	"fmt"
	"slices"
	"strings"
)

// Registry wires modules into the command and component routers.
type Registry struct {
	commands   *CommandRouter
	components *ComponentRouter
	modules    []Module
}

// NewRegistry creates a registry over the given routers.
func NewRegistry(commands *CommandRouter, components *ComponentRouter) *Registry {
	return &Registry{
		commands:   commands,
		components: components,
		modules:    make([]Module, 0),
	}
}

// Register adds a module: its commands go to the command router and, for a
// ComponentModule, its component kind goes to the component router. A module
// is wired completely or not at all; on error nothing it declared stays
// registered.
func (r *Registry) Register(m Module) error {
	if r.GetModule(m.Name()) != nil {
		return fmt.Errorf("module %q already registered", m.Name())
	}

	var added []string
	rollback := func() {
		for _, name := range added {
			r.commands.unregister(name)
		}
	}
	for _, d := range m.Commands() {
		if err := r.commands.Register(d); err != nil {
			rollback()
			return fmt.Errorf("module %s: %w", m.Name(), err)
		}
		added = append(added, d.Name)
	}
	if cm, ok := m.(ComponentModule); ok {
		if err := r.components.Register(cm.ComponentKind(), cm.HandleComponent); err != nil {
			rollback()
			return fmt.Errorf("module %s: %w", m.Name(), err)
		}
	}
	r.modules = append(r.modules, m)
	return nil
}

// GetModule returns a module by name.
func (r *Registry) GetModule(name string) Module {
	for _, m := range r.modules {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// Modules returns the registered modules sorted by name.
func (r *Registry) Modules() []Module {
	out := slices.Clone(r.modules)
	slices.SortFunc(out, func(a, b Module) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Commands returns every registered command descriptor sorted by name.
func (r *Registry) Commands() []*CommandDescriptor {
	return r.commands.Commands()
}
