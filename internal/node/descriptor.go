// Package node describes pipeline nodes explicitly and runs them by name.
//
// A host discovers nodes through their Descriptor: the ordered input
// parameters with type tags, bounds and defaults, the ordered outputs, and
// the front-end script that renders the node's widget. Descriptors are
// registered once at process start.
package node

import "context"

// Host type tags.
const (
	TypeFloat   = "FLOAT"
	TypeInt     = "INT"
	TypeBoolean = "BOOLEAN"
	TypeCombo   = "COMBO"
)

type Param struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
	Default any      `json:"default,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Step    float64  `json:"step,omitempty"`
	Round   float64  `json:"round,omitempty"`
	// Passthrough params are handed to the node as received. Widget types
	// (anything that is not a host scalar tag) are always passed through, and
	// an absent or null widget value without a default arrives as nil.
	Passthrough bool `json:"passthrough,omitempty"`
}

type Output struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Inputs map[string]any

// Result carries what a node returns: UI is pushed to the front-end, Outputs
// feed downstream nodes.
type Result struct {
	UI      map[string]any `json:"ui,omitempty"`
	Outputs []any          `json:"outputs,omitempty"`
}

type ProcessFunc func(ctx context.Context, in Inputs) (Result, error)

type Descriptor struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Category    string   `json:"category"`
	Inputs      []Param  `json:"inputs"`
	Outputs     []Output `json:"outputs"`
	OutputNode  bool     `json:"output_node"`
	Script      string   `json:"script,omitempty"`

	Process ProcessFunc `json:"-"`
}

// Plugin bundles related descriptors.
type Plugin interface {
	Name() string
	Register(r *Registry) error
}

func Float(v float64) *float64 {
	return &v
}

func (in Inputs) Float(name string) float64 {
	v, _ := in[name].(float64)
	return v
}

func (in Inputs) Int(name string) int {
	v, _ := in[name].(int)
	return v
}

func (in Inputs) Bool(name string) bool {
	v, _ := in[name].(bool)
	return v
}

func (in Inputs) String(name string) string {
	v, _ := in[name].(string)
	return v
}
