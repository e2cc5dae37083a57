// Package numeric turns loosely typed host values into flat float64
// sequences for the visualization widget.
package numeric

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Kind int

const (
	KindTensor Kind = iota
	KindArray
	KindList
	KindScalar
	KindLister
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindArray:
		return "array"
	case KindList:
		return "list"
	case KindScalar:
		return "scalar"
	case KindLister:
		return "lister"
	default:
		return "unsupported"
	}
}

// Input is the closed set of value shapes the normalizer recognizes.
type Input interface {
	Kind() Kind
	isInput()
}

// Tensor is a multi-dimensional numeric array stored in row-major order.
// A nil Shape means a one-dimensional tensor of len(Data) elements.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Array is a dense numeric array that is not a tensor.
type Array struct {
	Shape []int
	Data  []float64
}

// List is an ordered sequence whose elements may be of any type.
type List []any

type Scalar float64

// ToLister is implemented by opaque values that can convert themselves into a
// sequence.
type ToLister interface {
	ToList() (any, error)
}

type Lister struct {
	Source ToLister
}

type Unsupported struct {
	TypeName string
}

func (Tensor) Kind() Kind      { return KindTensor }
func (Array) Kind() Kind       { return KindArray }
func (List) Kind() Kind        { return KindList }
func (Scalar) Kind() Kind      { return KindScalar }
func (Lister) Kind() Kind      { return KindLister }
func (Unsupported) Kind() Kind { return KindUnsupported }

func (Tensor) isInput()      {}
func (Array) isInput()       {}
func (List) isInput()        {}
func (Scalar) isInput()      {}
func (Lister) isInput()      {}
func (Unsupported) isInput() {}

// Encoded tensors and arrays arrive over JSON as
// {"type": "tensor"|"ndarray", "shape": [...], "data": [...]}.
const (
	EncodedTypeKey    = "type"
	EncodedShapeKey   = "shape"
	EncodedDataKey    = "data"
	EncodedTypeTensor = "tensor"
	EncodedTypeArray  = "ndarray"
)

// Classify maps a host value onto an Input variant. Tensors win over arrays,
// arrays over lists, lists over scalars and scalars over to-list values.
func Classify(v any) Input {
	switch t := v.(type) {
	case Input:
		return t
	case nil:
		return Unsupported{TypeName: "nil"}
	case map[string]any:
		if in, ok := classifyEncoded(t); ok {
			return in
		}
	case []any:
		return List(t)
	case []float64:
		return listOf(t)
	case []float32:
		return listOf(t)
	case []int:
		return listOf(t)
	case []int64:
		return listOf(t)
	}

	if f, ok := toFloat(v); ok {
		return Scalar(f)
	}
	if l, ok := v.(ToLister); ok {
		return Lister{Source: l}
	}
	return Unsupported{TypeName: fmt.Sprintf("%T", v)}
}

func classifyEncoded(m map[string]any) (Input, bool) {
	tag, _ := m[EncodedTypeKey].(string)
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag != EncodedTypeTensor && tag != EncodedTypeArray {
		return nil, false
	}

	shape, ok := decodeShape(m[EncodedShapeKey])
	if !ok {
		return Unsupported{TypeName: "malformed " + tag}, true
	}
	data, ok := decodeData(m[EncodedDataKey])
	if !ok {
		return Unsupported{TypeName: "malformed " + tag}, true
	}

	if tag == EncodedTypeTensor {
		return Tensor{Shape: shape, Data: data}, true
	}
	return Array{Shape: shape, Data: data}, true
}

func decodeShape(raw any) ([]int, bool) {
	if raw == nil {
		return nil, true
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	shape := make([]int, 0, len(items))
	for _, item := range items {
		f, ok := toFloat(item)
		if !ok || f < 0 || f != float64(int(f)) {
			return nil, false
		}
		shape = append(shape, int(f))
	}
	return shape, true
}

func decodeData(raw any) ([]float64, bool) {
	if raw == nil {
		return []float64{}, true
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	data := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, false
		}
		data = append(data, f)
	}
	return data, true
}

func listOf[T float32 | float64 | int | int64](in []T) List {
	out := make(List, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// toFloat reports whether v is a number. Booleans are not numbers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case Scalar:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
