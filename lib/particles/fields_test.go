package particles

import (
	"testing"

	"github.com/phil-mansfield/cfdem/lib/eq"
)

func TestInt64(t *testing.T) {
	out := []int64{42, 0, 23, 0, 16, 0, 15, 0, 8, 0, 4, 0}
	data := []int64{4, 8, 15, 16, 23, 42}
	from := []int{5, 4, 3, 2, 1, 0}
	to := []int{0, 2, 4, 6, 8, 10}
	name := "test_value"

	x := NewInt64(name, data)

	if x.Len() != len(data) {
		t.Errorf("Expected x.Len() = %d, got %d.", len(data), x.Len())
		return
	} else if !eq.Generic(data, x.Data()) {
		t.Errorf("Expected x.Data() = %v, got %v.", data, x.Data())
		return
	}

	p := Fields{}

	x.CreateDestination(p, len(out))
	if _, ok := p[name]; !ok {
		t.Errorf("Expected Fields to gain '%s' field, but it wasn't added.",
			name)
		return
	}

	if err := x.Transfer(p, from, to); err != nil {
		t.Fatalf("Transfer failed: %s", err.Error())
	}
	if !eq.Generic(out, p[name].Data()) {
		t.Errorf("Expected p['%s'] = %v, got %v.", name, out, p[name].Data())
	}
}

func TestInt32(t *testing.T) {
	out := []int32{42, 0, 23, 0, 16, 0, 15, 0, 8, 0, 4, 0}
	data := []int32{4, 8, 15, 16, 23, 42}
	from := []int{5, 4, 3, 2, 1, 0}
	to := []int{0, 2, 4, 6, 8, 10}
	name := "test_value"

	x := NewInt32(name, data)
	p := Fields{}
	x.CreateDestination(p, len(out))
	if err := x.Transfer(p, from, to); err != nil {
		t.Fatalf("Transfer failed: %s", err.Error())
	}
	if !eq.Generic(out, p[name].Data()) {
		t.Errorf("Expected p['%s'] = %v, got %v.", name, out, p[name].Data())
	}
}

func TestFloat64(t *testing.T) {
	out := []float64{42, 0, 23, 0, 16, 0, 15, 0, 8, 0, 4, 0}
	data := []float64{4, 8, 15, 16, 23, 42}
	from := []int{5, 4, 3, 2, 1, 0}
	to := []int{0, 2, 4, 6, 8, 10}
	name := "test_value"

	x := NewFloat64(name, data)
	p := Fields{}
	x.CreateDestination(p, len(out))
	if err := x.Transfer(p, from, to); err != nil {
		t.Fatalf("Transfer failed: %s", err.Error())
	}
	if !eq.Generic(out, p[name].Data()) {
		t.Errorf("Expected p['%s'] = %v, got %v.", name, out, p[name].Data())
	}
}

func TestVec64(t *testing.T) {
	out := [][]float64{
		{42, 0, 16, 0, 8, 0},
		{43, 0, 17, 0, 9, 0},
		{44, 0, 18, 0, 10, 0},
	}
	data := [][3]float64{{8, 9, 10}, {16, 17, 18}, {42, 43, 44}}
	from := []int{2, 1, 0}
	to := []int{0, 2, 4}
	name := "test_value"

	x := NewVec64(name, data)
	p := Fields{}
	x.CreateDestination(p, len(out[0]))
	if err := x.Transfer(p, from, to); err != nil {
		t.Fatalf("Transfer failed: %s", err.Error())
	}

	names := ComponentNames(name)
	for dim := range names {
		f, ok := p[names[dim]]
		if !ok {
			t.Errorf("Expected Fields to gain '%s' field.", names[dim])
		} else if !eq.Generic(out[dim], f.Data()) {
			t.Errorf("Expected p['%s'] = %v, got %v.",
				names[dim], out[dim], f.Data())
		}
	}
}

func TestTransferErrors(t *testing.T) {
	x := NewFloat64("a", []float64{1, 2, 3})
	p := Fields{"a": NewInt32("a", make([]int32, 3))}

	if err := x.Transfer(p, []int{0}, []int{0, 1}); err == nil {
		t.Errorf("Expected mismatched index arrays to fail.")
	}
	if err := x.Transfer(Fields{}, []int{0}, []int{0}); err == nil {
		t.Errorf("Expected a missing destination field to fail.")
	}
	if err := x.Transfer(p, []int{0}, []int{0}); err == nil {
		t.Errorf("Expected a destination of the wrong type to fail.")
	}
}

func TestColumnNames(t *testing.T) {
	names := ColumnNames()
	view := View([]Particle{New([3]float64{1, 2, 3}, [3]float64{}, 1, 1, 0)})
	out := Fields{}
	for _, f := range view {
		f.CreateDestination(out, 1)
	}

	if len(out) != len(names) {
		t.Errorf("Expected %d columns, got %d.", len(names), len(out))
	}
	for _, name := range names {
		if _, ok := out[name]; !ok {
			t.Errorf("Expected a column named '%s'.", name)
		}
	}
}
