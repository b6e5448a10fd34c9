package features

import "fmt"

// Vector is an ordered name -> value mapping. Names and values stay aligned by index.
type Vector struct {
	names  []string
	values []float64
}

func NewVector(names []string, values []float64) (Vector, error) {
	if len(names) != len(values) {
		return Vector{}, fmt.Errorf("vector has %d names but %d values", len(names), len(values))
	}
	v := Vector{
		names:  make([]string, len(names)),
		values: make([]float64, len(values)),
	}
	copy(v.names, names)
	copy(v.values, values)
	return v, nil
}

func (v Vector) Len() int { return len(v.values) }

// Names returns a copy of the column names in order.
func (v Vector) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Values returns a copy of the values in column order.
func (v Vector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

func (v Vector) Get(name string) (float64, bool) {
	i := v.Index(name)
	if i < 0 {
		return 0, false
	}
	return v.values[i], true
}

// Index returns the position of name, or -1.
func (v Vector) Index(name string) int {
	for i, n := range v.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (v Vector) Clone() Vector {
	c, _ := NewVector(v.names, v.values)
	return c
}
