package curvenodes

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dunamismax/curveflow/internal/curves"
	"github.com/dunamismax/curveflow/internal/logging"
	"github.com/dunamismax/curveflow/internal/node"
	"github.com/dunamismax/curveflow/internal/numeric"
)

func newRegistry(t *testing.T) *node.Registry {
	t.Helper()
	r := node.NewRegistry()
	if err := r.Install(New(logging.Discard())); err != nil {
		t.Fatalf("install plugin: %v", err)
	}
	return r
}

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return out
}

func TestPluginRegistersNodes(t *testing.T) {
	r := newRegistry(t)

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(list))
	}
	want := map[string]string{
		NodeRGBCurves:         "RGB Curve Editor",
		NodeCurveVisualizer:   "Curve Debugger",
		NodeRGBCurvesAdvanced: "RGB Curves (Advanced)",
	}
	for _, d := range list {
		if want[d.Name] != d.DisplayName {
			t.Fatalf("node %s: expected display name %q, got %q", d.Name, want[d.Name], d.DisplayName)
		}
		if d.Category != Category {
			t.Fatalf("node %s: unexpected category %q", d.Name, d.Category)
		}
		if d.Script == "" {
			t.Fatalf("node %s: expected a front-end script", d.Name)
		}
	}

	vis, _ := r.Lookup(NodeCurveVisualizer)
	if !vis.OutputNode || len(vis.Outputs) != 0 {
		t.Fatalf("expected visualizer to be an output node without outputs, got %+v", vis)
	}
	adv, _ := r.Lookup(NodeRGBCurvesAdvanced)
	if len(adv.Inputs) != 5 || len(adv.Outputs) != 3 || adv.Outputs[0].Name != "red_curve" {
		t.Fatalf("unexpected advanced descriptor: %+v", adv)
	}
}

func TestCurveVisualizerEnvelope(t *testing.T) {
	r := newRegistry(t)

	res, err := r.Execute(context.Background(), NodeCurveVisualizer, decode(t, `{"data_input":[1,"a",2.5,null]}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	values, ok := res.UI[numeric.UIKey].([]float64)
	if !ok {
		t.Fatalf("expected visualization data, got %#v", res.UI)
	}
	if len(values) != 2 || values[0] != 1 || values[1] != 2.5 {
		t.Fatalf("expected [1 2.5], got %v", values)
	}
	if len(res.Outputs) != 0 {
		t.Fatalf("expected no pipeline outputs, got %v", res.Outputs)
	}

	res, err = r.Execute(context.Background(), NodeCurveVisualizer, decode(t, `{"data_input":"not numbers"}`))
	if err != nil {
		t.Fatalf("unsupported input must not fail the node: %v", err)
	}
	if values := res.UI[numeric.UIKey].([]float64); len(values) != 0 {
		t.Fatalf("expected empty visualization data, got %v", values)
	}
}

func TestRGBCurvesBasic(t *testing.T) {
	r := newRegistry(t)

	res, err := r.Execute(context.Background(), NodeRGBCurves, decode(t, `{
		"rgb_curve_points": {"red": [0, 0.5, 2], "green": [1, 1, 1], "blue": [0, 0, 0]}
	}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	out, ok := curves.FromOutputs(res.Outputs)
	if !ok {
		t.Fatalf("expected three channels, got %#v", res.Outputs)
	}
	if out.Red[2] != 2 {
		t.Fatalf("basic node must not clamp, got %v", out.Red)
	}
	if len(out.Green) != 3 || out.Green[0] != 1 {
		t.Fatalf("unexpected green channel %v", out.Green)
	}
}

func TestRGBCurvesAdvanced(t *testing.T) {
	r := newRegistry(t)

	res, err := r.Execute(context.Background(), NodeRGBCurvesAdvanced, decode(t, `{
		"rgb_curve_points": {"red": [2.0, -1.0]},
		"curve_type": "Sine",
		"frequency": 3,
		"offset": -0.25,
		"invert": true
	}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	out, ok := curves.FromOutputs(res.Outputs)
	if !ok {
		t.Fatalf("expected three channels, got %#v", res.Outputs)
	}
	if len(out.Red) != 2 || out.Red[0] != 1 || out.Red[1] != 0 {
		t.Fatalf("expected clamped red [1 0], got %v", out.Red)
	}
	if len(out.Green) != curves.Samples || out.Green[curves.Samples-1] != 1 {
		t.Fatalf("expected default ramp for green, got %d samples", len(out.Green))
	}

	res, err = r.Execute(context.Background(), NodeRGBCurvesAdvanced, map[string]any{"rgb_curve_points": 5})
	if err != nil {
		t.Fatalf("malformed points must not fail the node: %v", err)
	}
	out, _ = curves.FromOutputs(res.Outputs)
	if len(out.Red) != curves.Samples || len(out.Blue) != curves.Samples {
		t.Fatalf("expected default ramps, got %d/%d samples", len(out.Red), len(out.Blue))
	}
}

func TestRGBCurvesAdvancedNullPointsFallBackToRamps(t *testing.T) {
	r := newRegistry(t)

	for name, raw := range map[string]map[string]any{
		"null":   {"rgb_curve_points": nil},
		"absent": {},
	} {
		res, err := r.Execute(context.Background(), NodeRGBCurvesAdvanced, raw)
		if err != nil {
			t.Fatalf("%s: expected default ramps, got %v", name, err)
		}
		out, ok := curves.FromOutputs(res.Outputs)
		if !ok {
			t.Fatalf("%s: expected three channels, got %#v", name, res.Outputs)
		}
		for _, ch := range []curves.Channel{out.Red, out.Green, out.Blue} {
			if len(ch) != curves.Samples || ch[0] != 0 || ch[curves.Samples-1] != 1 {
				t.Fatalf("%s: expected default ramp, got %d samples", name, len(ch))
			}
		}
	}
}

func TestRGBCurvesBasicAcceptsIntegerSamples(t *testing.T) {
	r := newRegistry(t)

	res, err := r.Execute(context.Background(), NodeRGBCurves, map[string]any{
		"rgb_curve_points": map[string]any{"red": []any{1, 2}, "green": map[string][]float32{}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	out, _ := curves.FromOutputs(res.Outputs)
	if len(out.Red) != 2 || out.Red[0] != 1 || out.Red[1] != 2 {
		t.Fatalf("expected red [1 2], got %v", out.Red)
	}
	if len(out.Green) != 0 || len(out.Blue) != 0 {
		t.Fatalf("expected empty green and blue, got %v %v", out.Green, out.Blue)
	}

	res, err = r.Execute(context.Background(), NodeRGBCurves, map[string]any{"rgb_curve_points": nil})
	if err != nil {
		t.Fatalf("null points must not fail the basic node: %v", err)
	}
	out, _ = curves.FromOutputs(res.Outputs)
	if len(out.Red) != 0 || len(out.Green) != 0 || len(out.Blue) != 0 {
		t.Fatalf("expected empty channels, got %v", out)
	}
}

func TestRGBCurvesAdvancedRejectsOutOfRangeParams(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Execute(context.Background(), NodeRGBCurvesAdvanced, map[string]any{
		"rgb_curve_points": map[string]any{"red": []any{0.5}},
		"frequency":        64,
	})
	if err == nil {
		t.Fatal("expected frequency above 32 to be rejected")
	}
}
