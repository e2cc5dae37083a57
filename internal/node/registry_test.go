package node

import (
	"context"
	"errors"
	"testing"
)

func echoNode(name string, params ...Param) Descriptor {
	return Descriptor{
		Name:     name,
		Category: "test",
		Inputs:   params,
		Outputs:  []Output{{Name: "out", Type: TypeFloat}},
		Process: func(_ context.Context, in Inputs) (Result, error) {
			return Result{Outputs: []any{in}}, nil
		},
	}
}

func TestRegisterRejectsInvalidDescriptors(t *testing.T) {
	r := NewRegistry()

	cases := map[string]Descriptor{
		"empty name": {Process: echoNode("x").Process},
		"no process": {Name: "x"},
		"duplicate input": echoNode("x",
			Param{Name: "a", Type: TypeFloat},
			Param{Name: "a", Type: TypeFloat},
		),
		"min above max": echoNode("x", Param{Name: "a", Type: TypeInt, Min: Float(5), Max: Float(1)}),
		"default out of range": echoNode("x", Param{Name: "a", Type: TypeInt, Default: 50, Min: Float(1), Max: Float(32)}),
		"default not in options": echoNode("x", Param{Name: "a", Type: TypeCombo, Options: []string{"A"}, Default: "B"}),
	}
	for name, d := range cases {
		if err := r.Register(d); !errors.Is(err, ErrInvalidNode) {
			t.Fatalf("%s: expected ErrInvalidNode, got %v", name, err)
		}
	}
	if len(r.List()) != 0 {
		t.Fatalf("expected empty registry, got %d nodes", len(r.List()))
	}
}

func TestRegisterKeepsOrderAndRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"b", "a", "c"} {
		if err := r.Register(echoNode(name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := r.Register(echoNode("a")); !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("expected ErrDuplicateNode, got %v", err)
	}

	list := r.List()
	if len(list) != 3 || list[0].Name != "b" || list[1].Name != "a" || list[2].Name != "c" {
		t.Fatalf("unexpected registration order: %+v", list)
	}
}

func TestExecuteBindsDefaultsAndBounds(t *testing.T) {
	r := NewRegistry()
	err := r.Register(echoNode("n",
		Param{Name: "frequency", Type: TypeInt, Default: 1, Min: Float(1), Max: Float(32)},
		Param{Name: "offset", Type: TypeFloat, Default: 0.0, Min: Float(-1), Max: Float(0), Round: 0.001},
		Param{Name: "invert", Type: TypeBoolean, Default: false},
		Param{Name: "shape", Type: TypeCombo, Options: []string{"Linear", "Sine"}, Default: "Linear"},
		Param{Name: "points", Type: "custom_widget"},
	))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := r.Execute(context.Background(), "n", map[string]any{
		"frequency": 4.0,
		"points":    map[string]any{"red": []any{1.0}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	in := res.Outputs[0].(Inputs)
	if in.Int("frequency") != 4 {
		t.Fatalf("expected frequency 4, got %v", in["frequency"])
	}
	if in.Float("offset") != 0 || in.Bool("invert") || in.String("shape") != "Linear" {
		t.Fatalf("expected defaults, got %+v", in)
	}
	if _, ok := in["points"].(map[string]any); !ok {
		t.Fatalf("expected widget value passed through, got %T", in["points"])
	}

	for name, raw := range map[string]map[string]any{
		"frequency above max": {"frequency": 33, "points": 1},
		"fractional int":      {"frequency": 1.5, "points": 1},
		"offset above max":    {"offset": 0.5, "points": 1},
		"bad combo":           {"shape": "Spline", "points": 1},
		"bad bool":            {"invert": "maybe", "points": 1},
	} {
		if _, err := r.Execute(context.Background(), "n", raw); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}

}

func TestExecuteNullWidgetReachesNode(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoNode("n",
		Param{Name: "points", Type: "custom_widget"},
		Param{Name: "invert", Type: TypeBoolean, Default: false},
	)); err != nil {
		t.Fatalf("register: %v", err)
	}

	for name, raw := range map[string]map[string]any{
		"null":   {"points": nil},
		"absent": {},
	} {
		res, err := r.Execute(context.Background(), "n", raw)
		if err != nil {
			t.Fatalf("%s: execute: %v", name, err)
		}
		in := res.Outputs[0].(Inputs)
		value, ok := in["points"]
		if !ok || value != nil {
			t.Fatalf("%s: expected nil widget value, got %v (present=%v)", name, value, ok)
		}
	}
}

func TestExecuteMissingScalarInput(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoNode("n",
		Param{Name: "data_input", Type: TypeFloat, Passthrough: true},
		Param{Name: "points", Type: "custom_widget"},
	)); err != nil {
		t.Fatalf("register: %v", err)
	}

	for name, raw := range map[string]map[string]any{
		"null":   {"data_input": nil},
		"absent": {"points": 1},
	} {
		if _, err := r.Execute(context.Background(), "n", raw); !errors.Is(err, ErrMissingInput) {
			t.Fatalf("%s: expected ErrMissingInput, got %v", name, err)
		}
	}
}

func TestExecuteRoundsFloats(t *testing.T) {
	in, err := Bind([]Param{
		{Name: "offset", Type: TypeFloat, Min: Float(-1), Max: Float(0), Round: 0.001},
	}, map[string]any{"offset": -0.12345})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got := in.Float("offset"); got < -0.1235 || got > -0.1225 {
		t.Fatalf("expected offset rounded to -0.123, got %v", got)
	}
}

func TestExecuteUnknownNode(t *testing.T) {
	_, err := NewRegistry().Execute(context.Background(), "missing", nil)
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoNode("n")); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Execute(ctx, "n", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type testPlugin struct{ nodes []string }

func (p testPlugin) Name() string { return "test" }

func (p testPlugin) Register(r *Registry) error {
	for _, n := range p.nodes {
		if err := r.Register(echoNode(n)); err != nil {
			return err
		}
	}
	return nil
}

func TestInstallPlugin(t *testing.T) {
	r := NewRegistry()
	if err := r.Install(testPlugin{nodes: []string{"one", "two"}}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, ok := r.Lookup("two"); !ok {
		t.Fatal("expected plugin node to be registered")
	}
	if err := r.Install(testPlugin{}); !errors.Is(err, ErrPluginRegistered) {
		t.Fatalf("expected ErrPluginRegistered, got %v", err)
	}
}
