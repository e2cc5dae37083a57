// Package curvenodes registers the RGB curve editor nodes.
package curvenodes

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/dunamismax/curveflow/internal/curves"
	"github.com/dunamismax/curveflow/internal/node"
	"github.com/dunamismax/curveflow/internal/numeric"
)

const (
	Category = "RGB Curve Editor"

	// WebDirectory holds the front-end scripts named by the descriptors.
	WebDirectory = "./web"

	NodeRGBCurves         = "RGB Curve Editor"
	NodeCurveVisualizer   = "Curve Visualizer"
	NodeRGBCurvesAdvanced = "RGBCurvesAdvanced"

	// CurveWidgetType is the widget type tag the front-end binds the curve
	// editor to.
	CurveWidgetType = "rgb_curve_editor_widget"
)

type Plugin struct {
	logger *log.Logger
}

func New(logger *log.Logger) Plugin {
	if logger == nil {
		logger = log.Default()
	}
	return Plugin{logger: logger}
}

func (Plugin) Name() string {
	return "rgb-curve-editor"
}

func (p Plugin) Register(r *node.Registry) error {
	for _, d := range []node.Descriptor{
		p.rgbCurves(),
		p.curveVisualizer(),
		p.rgbCurvesAdvanced(),
	} {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (p Plugin) rgbCurves() node.Descriptor {
	return node.Descriptor{
		Name:        NodeRGBCurves,
		DisplayName: "RGB Curve Editor",
		Category:    Category,
		Inputs: []node.Param{
			{Name: "rgb_curve_points", Type: CurveWidgetType},
		},
		Outputs: []node.Output{
			{Name: "red", Type: node.TypeFloat},
			{Name: "green", Type: node.TypeFloat},
			{Name: "blue", Type: node.TypeFloat},
		},
		Script: "./rgb_curves.js",
		Process: func(_ context.Context, in node.Inputs) (node.Result, error) {
			return node.Result{Outputs: curves.Basic(in["rgb_curve_points"]).Outputs()}, nil
		},
	}
}

func (p Plugin) curveVisualizer() node.Descriptor {
	diag := p.logger.WithPrefix("CurveVisualize")
	normalizer := numeric.NewNormalizer(diag)

	return node.Descriptor{
		Name:        NodeCurveVisualizer,
		DisplayName: "Curve Debugger",
		Category:    Category,
		Inputs: []node.Param{
			{Name: "data_input", Type: node.TypeFloat, Passthrough: true},
		},
		Outputs:    []node.Output{},
		OutputNode: true,
		Script:     "./curve_visualize.js",
		Process: func(_ context.Context, in node.Inputs) (node.Result, error) {
			res := normalizer.Normalize(in["data_input"])
			if !res.OK() {
				diag.Debug("visualization input dropped", "kind", res.Kind, "reason", res.Err)
			}
			return node.Result{UI: numeric.Envelope(res.Values)}, nil
		},
	}
}

func (p Plugin) rgbCurvesAdvanced() node.Descriptor {
	diag := p.logger.WithPrefix("RGBCurvesAdvanced")

	shapes := curves.Shapes()
	options := make([]string, len(shapes))
	for i, s := range shapes {
		options[i] = string(s)
	}

	return node.Descriptor{
		Name:        NodeRGBCurvesAdvanced,
		DisplayName: "RGB Curves (Advanced)",
		Category:    Category,
		Inputs: []node.Param{
			{Name: "rgb_curve_points", Type: CurveWidgetType},
			{Name: "curve_type", Type: node.TypeCombo, Options: options, Default: string(curves.ShapeLinear)},
			{Name: "frequency", Type: node.TypeInt, Default: 1, Min: node.Float(1), Max: node.Float(32), Step: 1},
			{Name: "offset", Type: node.TypeFloat, Default: 0.0, Min: node.Float(-1), Max: node.Float(0), Step: 0.01, Round: 0.001},
			{Name: "invert", Type: node.TypeBoolean, Default: false},
		},
		Outputs: []node.Output{
			{Name: "red_curve", Type: node.TypeFloat},
			{Name: "green_curve", Type: node.TypeFloat},
			{Name: "blue_curve", Type: node.TypeFloat},
		},
		Script: "./rgb_curves_advanced.js",
		Process: func(_ context.Context, in node.Inputs) (node.Result, error) {
			params := curves.Params{
				Shape:     curves.CurveShape(in.String("curve_type")),
				Frequency: in.Int("frequency"),
				Offset:    in.Float("offset"),
				Invert:    in.Bool("invert"),
			}
			diag.Debug("converting curve points", "shape", params.Shape, "frequency", params.Frequency, "offset", params.Offset, "invert", params.Invert)
			return node.Result{Outputs: curves.Advanced(in["rgb_curve_points"], params, diag).Outputs()}, nil
		},
	}
}
