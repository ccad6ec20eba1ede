package model

import (
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/simcore/internal/state"
)

// Context owns a model instance: its components and the state store their
// compartments resolve against. Independent contexts share nothing.
type Context struct {
	name   string
	store  *state.Store
	logger *slog.Logger

	components map[string]*Component
	order      []string

	revision int64
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) ContextOption {
	return func(c *Context) {
		c.logger = l
	}
}

// WithStore sets the state store. Defaults to a new empty store.
func WithStore(s *state.Store) ContextOption {
	return func(c *Context) {
		c.store = s
	}
}

// NewContext creates an empty context.
func NewContext(name string, opts ...ContextOption) *Context {
	c := &Context{
		name:       name,
		components: make(map[string]*Component),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = state.New()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Name returns the context name; it is the first segment of every store path.
func (c *Context) Name() string { return c.name }

// Store returns the shared state store.
func (c *Context) Store() *state.Store { return c.store }

// Logger returns the context logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Revision increments on every wire or forward. Processes compare it to
// detect rewiring after compilation.
func (c *Context) Revision() int64 { return c.revision }

func (c *Context) bump() { c.revision++ }

// Component looks up a component by name.
func (c *Context) Component(name string) (*Component, bool) {
	comp, ok := c.components[name]
	return comp, ok
}

// Components returns the components in creation order.
func (c *Context) Components() []*Component {
	out := make([]*Component, len(c.order))
	for i, name := range c.order {
		out[i] = c.components[name]
	}
	return out
}

// Path returns the absolute store path for a component's compartment.
func (c *Context) Path(component, compartment string) string {
	return state.Join(c.name, component, compartment)
}

// Snapshot copies the full store.
func (c *Context) Snapshot() state.Snapshot {
	return c.store.Snapshot()
}

// Create registers a component, initializes its compartments in the store,
// and classifies its transitions.
func (c *Context) Create(name string, cfg Config) (*Component, error) {
	if err := checkName(name); err != nil {
		return nil, modelErr(ErrCodeInvalidName, name, "", "invalid component name: %v", err)
	}
	if _, exists := c.components[name]; exists {
		return nil, modelErr(ErrCodeDuplicateComponent, name, "", "component name already used in context %q", c.name)
	}

	comp := &Component{
		ctx:          c,
		name:         name,
		path:         state.Join(c.name, name),
		kind:         cfg.Kind,
		params:       make(map[string]any, len(cfg.Params)),
		compartments: make(map[string]*Compartment, len(cfg.Compartments)),
		transitions:  make(map[string]*Transition, len(cfg.Transitions)),
	}
	for k, v := range cfg.Params {
		comp.params[k] = state.CloneValue(v)
	}

	for _, decl := range cfg.Compartments {
		if err := checkName(decl.Name); err != nil {
			return nil, modelErr(ErrCodeInvalidName, name, decl.Name, "invalid compartment name: %v", err)
		}
		if _, dup := comp.compartments[decl.Name]; dup {
			return nil, modelErr(ErrCodeNameCollision, name, decl.Name, "compartment declared twice")
		}
		if comp.hasParam(decl.Name) {
			return nil, modelErr(ErrCodeNameCollision, name, decl.Name, "name is both a parameter and a compartment")
		}
		path := state.Join(comp.path, decl.Name)
		comp.compartments[decl.Name] = &Compartment{
			owner:  comp,
			name:   decl.Name,
			path:   path,
			fixed:  decl.Fixed,
			target: path,
		}
		comp.order = append(comp.order, decl.Name)
	}

	for _, decl := range cfg.Transitions {
		if err := checkName(decl.Name); err != nil {
			return nil, modelErr(ErrCodeInvalidName, name, decl.Name, "invalid transition name: %v", err)
		}
		if _, dup := comp.transitions[decl.Name]; dup {
			return nil, modelErr(ErrCodeNameCollision, name, decl.Name, "transition declared twice")
		}
		if decl.Fn == nil {
			return nil, modelErr(ErrCodeInvalidTransition, name, decl.Name, "transition has no function")
		}
		comp.transitions[decl.Name] = &Transition{
			owner:    comp,
			name:     decl.Name,
			inputs:   comp.Classify(decl.Inputs),
			outputs:  append([]string(nil), decl.Outputs...),
			branchOn: append([]string(nil), decl.BranchOn...),
			fn:       decl.Fn,
		}
		comp.transitionOrder = append(comp.transitionOrder, decl.Name)
	}

	// Store paths are created only once the whole declaration is valid.
	for _, decl := range cfg.Compartments {
		c.store.Init(comp.compartments[decl.Name].path, decl.Initial)
	}
	c.components[name] = comp
	c.order = append(c.order, name)

	c.logger.Debug("component created",
		"component", name,
		"kind", cfg.Kind,
		"compartments", len(cfg.Compartments),
		"transitions", len(cfg.Transitions))
	return comp, nil
}

func checkName(name string) error {
	if name == "" {
		return errEmptyName
	}
	if strings.ContainsAny(name, ":. \t\n") {
		return errBadNameChars
	}
	return nil
}
