package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrDuplicateNode    = errors.New("node already registered")
	ErrInvalidNode      = errors.New("invalid node descriptor")
	ErrMissingInput     = errors.New("missing required input")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPluginRegistered = errors.New("plugin already installed")
)

// Registry holds the nodes a process exposes. Register during start-up;
// lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	nodes   map[string]Descriptor
	order   []string
	plugins map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		nodes:   make(map[string]Descriptor),
		plugins: make(map[string]struct{}),
	}
}

func (r *Registry) Install(p Plugin) error {
	name := strings.TrimSpace(p.Name())
	r.mu.Lock()
	if _, ok := r.plugins[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginRegistered, name)
	}
	r.plugins[name] = struct{}{}
	r.mu.Unlock()

	if err := p.Register(r); err != nil {
		return fmt.Errorf("install plugin %s: %w", name, err)
	}
	return nil
}

func (r *Registry) Register(d Descriptor) error {
	if err := validateDescriptor(d); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, d.Name)
	}
	r.nodes[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.nodes[name]
	return d, ok
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.nodes[name])
	}
	return out
}

// Execute binds raw inputs against the node's params and runs it.
func (r *Registry) Execute(ctx context.Context, name string, raw map[string]any) (Result, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	in, err := Bind(d.Inputs, raw)
	if err != nil {
		return Result{}, fmt.Errorf("bind inputs for %s: %w", name, err)
	}

	res, err := d.Process(ctx, in)
	if err != nil {
		return Result{}, fmt.Errorf("process %s: %w", name, err)
	}
	return res, nil
}

func validateDescriptor(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidNode)
	}
	if d.Process == nil {
		return fmt.Errorf("%w: %s has no process function", ErrInvalidNode, d.Name)
	}

	seen := make(map[string]struct{}, len(d.Inputs))
	for i, p := range d.Inputs {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: %s inputs[%d].name is required", ErrInvalidNode, d.Name, i)
		}
		if strings.TrimSpace(p.Type) == "" {
			return fmt.Errorf("%w: %s input %s has no type", ErrInvalidNode, d.Name, p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: %s declares input %s twice", ErrInvalidNode, d.Name, p.Name)
		}
		seen[p.Name] = struct{}{}

		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return fmt.Errorf("%w: %s input %s has min > max", ErrInvalidNode, d.Name, p.Name)
		}
		if p.Default != nil {
			if _, err := bindParam(p, p.Default); err != nil {
				return fmt.Errorf("%w: %s input %s default: %v", ErrInvalidNode, d.Name, p.Name, err)
			}
		}
	}

	outputs := make(map[string]struct{}, len(d.Outputs))
	for i, o := range d.Outputs {
		if strings.TrimSpace(o.Name) == "" || strings.TrimSpace(o.Type) == "" {
			return fmt.Errorf("%w: %s outputs[%d] needs a name and a type", ErrInvalidNode, d.Name, i)
		}
		if _, dup := outputs[o.Name]; dup {
			return fmt.Errorf("%w: %s declares output %s twice", ErrInvalidNode, d.Name, o.Name)
		}
		outputs[o.Name] = struct{}{}
	}
	return nil
}
