// Package curves converts curve-editor widget state into red, green and blue
// tone curves.
package curves

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cwbudde/algo-vecmath"
)

// Samples is the length of a tone curve produced by the editor widget.
const Samples = 256

const (
	ChannelRed   = "red"
	ChannelGreen = "green"
	ChannelBlue  = "blue"
)

// Channel is one tone curve. float32 matches the host's FLOAT tensor dtype.
type Channel []float32

type Curves struct {
	Red   Channel
	Green Channel
	Blue  Channel
}

// Outputs returns the channels in red, green, blue order.
func (c Curves) Outputs() []any {
	return []any{c.Red, c.Green, c.Blue}
}

// FromOutputs rebuilds Curves from a three-channel node output.
func FromOutputs(outputs []any) (Curves, bool) {
	if len(outputs) != 3 {
		return Curves{}, false
	}
	var ch [3]Channel
	for i, out := range outputs {
		c, ok := out.(Channel)
		if !ok {
			return Curves{}, false
		}
		ch[i] = c
	}
	return Curves{Red: ch[0], Green: ch[1], Blue: ch[2]}, true
}

// PointMap is the widget state: one sample array per channel name.
type PointMap map[string][]float64

// DefaultRamp returns a fresh linear ramp of Samples values from 0 to 1
// inclusive.
func DefaultRamp() Channel {
	ramp := make([]float64, Samples)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	vecmath.ScaleBlockInPlace(ramp, 1/float64(Samples-1))
	ramp[0] = 0
	ramp[Samples-1] = 1

	out := make(Channel, Samples)
	for i, v := range ramp {
		out[i] = float32(v)
	}
	return out
}

type CurveShape string

const (
	ShapeLinear      CurveShape = "Linear"
	ShapeSine        CurveShape = "Sine"
	ShapeSaw         CurveShape = "Saw"
	ShapeTriangle    CurveShape = "Triangle"
	ShapeSquare      CurveShape = "Square"
	ShapeLog         CurveShape = "Log"
	ShapeExponential CurveShape = "Exponential"
	ShapeMax         CurveShape = "Max"
)

// Shapes lists the curve shapes offered by the advanced widget, in display
// order.
func Shapes() []CurveShape {
	return []CurveShape{
		ShapeLinear,
		ShapeSine,
		ShapeSaw,
		ShapeTriangle,
		ShapeSquare,
		ShapeLog,
		ShapeExponential,
		ShapeMax,
	}
}

func ParseShape(s string) (CurveShape, error) {
	s = strings.TrimSpace(s)
	for _, shape := range Shapes() {
		if strings.EqualFold(string(shape), s) {
			return shape, nil
		}
	}
	return "", fmt.Errorf("unknown curve shape %q", s)
}

// Params tune the widget's interpolation only. The extractor passes them
// through untouched.
type Params struct {
	Shape     CurveShape
	Frequency int
	Offset    float64
	Invert    bool
}

func DefaultParams() Params {
	return Params{Shape: ShapeLinear, Frequency: 1}
}

// Diagnostics receives warnings about malformed widget state.
type Diagnostics interface {
	Warn(msg any, keyvals ...any)
}

// Basic converts widget state without validation or clamping. It accepts
// the same point maps as Advanced; a missing or non-numeric channel comes
// back empty, as do all three when points is not a mapping.
func Basic(points any) Curves {
	channels, _ := asChannelMap(points)
	return Curves{
		Red:   rawChannel(channels, ChannelRed),
		Green: rawChannel(channels, ChannelGreen),
		Blue:  rawChannel(channels, ChannelBlue),
	}
}

func rawChannel(channels map[string]any, name string) Channel {
	ch, ok := readChannel(channels[name])
	if !ok {
		return Channel{}
	}
	return ch
}

// Advanced validates widget state, fills missing channels with the default
// ramp and clamps every sample into [0, 1]. Input that is not a mapping with
// a red channel yields three default ramps.
func Advanced(points any, _ Params, diag Diagnostics) Curves {
	channels, ok := asChannelMap(points)
	if !ok {
		warn(diag, "invalid rgb_curve_points data received, using default linear curves", "type", fmt.Sprintf("%T", points))
		return Curves{Red: DefaultRamp(), Green: DefaultRamp(), Blue: DefaultRamp()}
	}
	if _, ok := channels[ChannelRed]; !ok {
		warn(diag, "rgb_curve_points has no red channel, using default linear curves")
		return Curves{Red: DefaultRamp(), Green: DefaultRamp(), Blue: DefaultRamp()}
	}

	return Curves{
		Red:   clampedChannel(channels, ChannelRed, diag),
		Green: clampedChannel(channels, ChannelGreen, diag),
		Blue:  clampedChannel(channels, ChannelBlue, diag),
	}
}

func clampedChannel(channels map[string]any, name string, diag Diagnostics) Channel {
	raw, ok := channels[name]
	if !ok {
		return DefaultRamp()
	}
	ch, ok := readChannel(raw)
	if !ok {
		warn(diag, "channel samples are not numeric, using default linear curve", "channel", name, "type", fmt.Sprintf("%T", raw))
		return DefaultRamp()
	}
	Clamp(ch)
	return ch
}

// Clamp limits every sample to [0, 1] in place. NaN samples are left as is.
func Clamp(ch Channel) {
	for i, v := range ch {
		if v < 0 {
			ch[i] = 0
		} else if v > 1 {
			ch[i] = 1
		}
	}
}

func asChannelMap(points any) (map[string]any, bool) {
	switch m := points.(type) {
	case map[string]any:
		return m, true
	case PointMap:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	case map[string][]float64:
		return asChannelMap(PointMap(m))
	case map[string][]float32:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// readChannel always returns a fresh slice.
func readChannel(raw any) (Channel, bool) {
	switch v := raw.(type) {
	case []float64:
		return toChannel(v), true
	case []float32:
		out := make(Channel, len(v))
		copy(out, v)
		return out, true
	case Channel:
		out := make(Channel, len(v))
		copy(out, v)
		return out, true
	case []any:
		out := make(Channel, len(v))
		for i, item := range v {
			f, ok := sampleValue(item)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	default:
		return nil, false
	}
}

func sampleValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toChannel(in []float64) Channel {
	out := make(Channel, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func warn(diag Diagnostics, msg string, keyvals ...any) {
	if diag == nil {
		return
	}
	diag.Warn(msg, keyvals...)
}
