package numeric

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// UIKey is the envelope field the visualization widget reads.
const UIKey = "visualization_data"

var (
	ErrUnsupportedType = errors.New("unsupported input type")
	ErrListConversion  = errors.New("to-list conversion failed")
	ErrShapeMismatch   = errors.New("data length does not match shape")
	ErrRecovered       = errors.New("recovered from panic while normalizing input")
)

// Diagnostics receives the normalizer's log lines. *log.Logger from
// charmbracelet/log satisfies it.
type Diagnostics interface {
	Warn(msg any, keyvals ...any)
}

// Result is the outcome of one normalization. Values is never nil; Err
// explains why Values is empty when the input could not be used.
type Result struct {
	Kind   Kind
	Values []float64
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

type Normalizer struct {
	diag Diagnostics
}

func NewNormalizer(diag Diagnostics) Normalizer {
	if diag == nil {
		diag = discardDiagnostics{}
	}
	return Normalizer{diag: diag}
}

// Normalize classifies v and flattens it. It never panics.
func (n Normalizer) Normalize(v any) (res Result) {
	defer n.recoverInto(&res)
	return n.dispatch(Classify(v))
}

// NormalizeInput flattens an already classified input. It never panics.
func (n Normalizer) NormalizeInput(in Input) (res Result) {
	defer n.recoverInto(&res)
	if in == nil {
		in = Unsupported{TypeName: "nil"}
	}
	return n.dispatch(in)
}

func (n Normalizer) recoverInto(res *Result) {
	r := recover()
	if r == nil {
		return
	}
	n.warn("error processing input data", "panic", r)
	*res = failed(KindUnsupported, fmt.Errorf("%w: %v", ErrRecovered, r))
}

func (n Normalizer) dispatch(in Input) Result {
	switch v := in.(type) {
	case Tensor:
		return n.flatten(KindTensor, v.Shape, v.Data)
	case Array:
		return n.flatten(KindArray, v.Shape, v.Data)
	case List:
		values := n.filterNumeric([]any(v), "input list")
		return Result{Kind: KindList, Values: values}
	case Scalar:
		return Result{Kind: KindScalar, Values: []float64{float64(v)}}
	case Lister:
		return n.fromLister(v)
	case Unsupported:
		n.warn("unsupported input type, cannot visualize", "type", v.TypeName)
		return failed(KindUnsupported, fmt.Errorf("%w: %s", ErrUnsupportedType, v.TypeName))
	default:
		n.warn("unsupported input type, cannot visualize", "type", fmt.Sprintf("%T", in))
		return failed(KindUnsupported, fmt.Errorf("%w: %T", ErrUnsupportedType, in))
	}
}

func (n Normalizer) flatten(kind Kind, shape []int, data []float64) Result {
	count := len(data)
	if shape != nil {
		var ok bool
		if count, ok = shapeCount(shape); !ok {
			n.warn("input "+kind.String()+" shape is too large", "shape", shape, "elements", len(data))
			return failed(kind, fmt.Errorf("%w: shape %v overflows, got %d elements", ErrShapeMismatch, shape, len(data)))
		}
	}
	if count == 0 {
		n.warn("input "+kind.String()+" is empty")
		return Result{Kind: kind, Values: []float64{}}
	}
	if count != len(data) {
		n.warn("input "+kind.String()+" data does not match its shape", "shape", shape, "elements", len(data))
		return failed(kind, fmt.Errorf("%w: shape %v holds %d elements, got %d", ErrShapeMismatch, shape, count, len(data)))
	}

	out := make([]float64, len(data))
	copy(out, data)
	return Result{Kind: kind, Values: out}
}

// shapeCount is the element count a shape describes. It reports false when
// the product does not fit in an int.
func shapeCount(shape []int) (int, bool) {
	if slices.Contains(shape, 0) {
		return 0, true
	}
	count := 1
	for _, dim := range shape {
		if count > math.MaxInt/dim {
			return 0, false
		}
		count *= dim
	}
	return count, true
}

func (n Normalizer) fromLister(l Lister) Result {
	if l.Source == nil {
		n.warn("unsupported input type, cannot visualize", "type", "nil lister")
		return failed(KindLister, fmt.Errorf("%w: nil lister", ErrUnsupportedType))
	}

	raw, err := l.Source.ToList()
	if err != nil {
		n.warn("error calling to-list conversion, cannot visualize", "type", fmt.Sprintf("%T", l.Source), "err", err)
		return failed(KindLister, fmt.Errorf("%w: %v", ErrListConversion, err))
	}

	items, ok := asSequence(raw)
	if !ok {
		n.warn("to-list conversion did not return a list, cannot visualize", "got", fmt.Sprintf("%T", raw))
		return failed(KindLister, fmt.Errorf("%w: got %T", ErrListConversion, raw))
	}

	return Result{Kind: KindLister, Values: n.filterNumeric(items, "to-list output")}
}

func (n Normalizer) filterNumeric(items []any, source string) []float64 {
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := toFloat(item)
		if !ok {
			n.warn("non-numeric item in "+source+", skipping", "item", item, "type", fmt.Sprintf("%T", item))
			continue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		n.warn(source + " resulted in empty data after filtering non-numerics")
	}
	return out
}

func asSequence(raw any) ([]any, bool) {
	switch t := raw.(type) {
	case []any:
		return t, true
	case List:
		return []any(t), true
	case []float64:
		return listOf(t), true
	case []float32:
		return listOf(t), true
	case []int:
		return listOf(t), true
	case []int64:
		return listOf(t), true
	default:
		return nil, false
	}
}

func failed(kind Kind, err error) Result {
	return Result{Kind: kind, Values: []float64{}, Err: err}
}

func (n Normalizer) warn(msg string, keyvals ...any) {
	if n.diag == nil {
		return
	}
	n.diag.Warn(msg, keyvals...)
}

// Envelope wraps values in the UI payload consumed by the front-end widget.
func Envelope(values []float64) map[string]any {
	if values == nil {
		values = []float64{}
	}
	return map[string]any{UIKey: values}
}

type discardDiagnostics struct{}

func (discardDiagnostics) Warn(any, ...any) {}
