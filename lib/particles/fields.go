package particles

/* This file contains the columnar (struct-of-arrays) view of particles. */

import (
	"fmt"
)

// Fields is a columnar view of a set of particles. It maps the name of each
// field (e.g. "id", "pos[0]", "radius") to a Field.
type Fields map[string]Field

// Field is a generic interface around one particle column.
type Field interface {
	// Len returns the length of the underlying array.
	Len() int
	// Data returns the underlying array as an interface{}.
	Data() interface{}
	// Transfer transfers data from the Field to the appropriately named field
	// in dest. Particles are transfer from the indices 'from' to the indices
	// 'to'. These indices are passed as arrays to amortize the cost of error
	// handling and type conversion.
	Transfer(dest Fields, from, to []int) error
	// CreateDestination creates output fields in p with the specified size
	// that have the correct names and types.
	CreateDestination(p Fields, n int)
}

// Type assertions
var (
	_ Field = &Int32{}
	_ Field = &Int64{}
	_ Field = &Float64{}
	_ Field = &Vec64{}
)

func checkTransfer(from, to []int) error {
	if len(from) != len(to) {
		return fmt.Errorf("'from' index array has length %d, but 'to' "+
			"has length %d.", len(from), len(to))
	}
	return nil
}

func destination(dest Fields, name string) (Field, error) {
	f, ok := dest[name]
	if !ok {
		return nil, fmt.Errorf("Destination Fields object does not "+
			"contain the field '%s'.", name)
	}
	return f, nil
}

// Int32 implements the Field interface for []int32 data.
type Int32 struct {
	name string
	data []int32
}

// NewInt32 creates a field with a given name associated with a given array.
func NewInt32(name string, x []int32) *Int32 { return &Int32{name, x} }

func (x *Int32) Len() int          { return len(x.data) }
func (x *Int32) Data() interface{} { return x.data }

func (x *Int32) CreateDestination(p Fields, n int) {
	p[x.name] = NewInt32(x.name, make([]int32, n))
}

func (x *Int32) Transfer(dest Fields, from, to []int) error {
	if err := checkTransfer(from, to); err != nil {
		return err
	}
	f, err := destination(dest, x.name)
	if err != nil {
		return err
	}
	destData, ok := f.Data().([]int32)
	if !ok {
		return fmt.Errorf("Field '%s' in destination Fields object does "+
			"not have []int32 type, as expected.", x.name)
	}
	for i := range from {
		destData[to[i]] = x.data[from[i]]
	}
	return nil
}

// Int64 implements the Field interface for []int64 data.
type Int64 struct {
	name string
	data []int64
}

// NewInt64 creates a field with a given name associated with a given array.
func NewInt64(name string, x []int64) *Int64 { return &Int64{name, x} }

func (x *Int64) Len() int          { return len(x.data) }
func (x *Int64) Data() interface{} { return x.data }

func (x *Int64) CreateDestination(p Fields, n int) {
	p[x.name] = NewInt64(x.name, make([]int64, n))
}

func (x *Int64) Transfer(dest Fields, from, to []int) error {
	if err := checkTransfer(from, to); err != nil {
		return err
	}
	f, err := destination(dest, x.name)
	if err != nil {
		return err
	}
	destData, ok := f.Data().([]int64)
	if !ok {
		return fmt.Errorf("Field '%s' in destination Fields object does "+
			"not have []int64 type, as expected.", x.name)
	}
	for i := range from {
		destData[to[i]] = x.data[from[i]]
	}
	return nil
}

// Float64 implements the Field interface for []float64 data.
type Float64 struct {
	name string
	data []float64
}

// NewFloat64 creates a field with a given name associated with a given array.
func NewFloat64(name string, x []float64) *Float64 { return &Float64{name, x} }

func (x *Float64) Len() int          { return len(x.data) }
func (x *Float64) Data() interface{} { return x.data }

func (x *Float64) CreateDestination(p Fields, n int) {
	p[x.name] = NewFloat64(x.name, make([]float64, n))
}

func (x *Float64) Transfer(dest Fields, from, to []int) error {
	if err := checkTransfer(from, to); err != nil {
		return err
	}
	f, err := destination(dest, x.name)
	if err != nil {
		return err
	}
	destData, ok := f.Data().([]float64)
	if !ok {
		return fmt.Errorf("Field '%s' in destination Fields object does "+
			"not have []float64 type, as expected.", x.name)
	}
	for i := range from {
		destData[to[i]] = x.data[from[i]]
	}
	return nil
}

// Vec64 implements the Field interface for [][3]float64 data. Its
// destinations are split into three Float64 fields named "name[0]",
// "name[1]" and "name[2]".
type Vec64 struct {
	dimNames [3]string
	data     [][3]float64
}

// NewVec64 creates a field with a given name associated with a given array.
func NewVec64(name string, x [][3]float64) *Vec64 {
	return &Vec64{ComponentNames(name), x}
}

// ComponentNames returns the names of the columns a vector field is split
// into.
func ComponentNames(name string) [3]string {
	dimNames := [3]string{}
	for dim := range dimNames {
		dimNames[dim] = fmt.Sprintf("%s[%d]", name, dim)
	}
	return dimNames
}

func (x *Vec64) Len() int          { return len(x.data) }
func (x *Vec64) Data() interface{} { return x.data }

func (x *Vec64) CreateDestination(p Fields, n int) {
	for dim := range x.dimNames {
		p[x.dimNames[dim]] = NewFloat64(x.dimNames[dim], make([]float64, n))
	}
}

func (x *Vec64) Transfer(dest Fields, from, to []int) error {
	if err := checkTransfer(from, to); err != nil {
		return err
	}
	for dim := range x.dimNames {
		f, err := destination(dest, x.dimNames[dim])
		if err != nil {
			return err
		}
		destData, ok := f.Data().([]float64)
		if !ok {
			return fmt.Errorf("Field '%s' in destination Fields object "+
				"does not have []float64 type, as expected.", x.dimNames[dim])
		}
		for i := range from {
			destData[to[i]] = x.data[from[i]][dim]
		}
	}
	return nil
}

// Vector fields and scalar fields of a particle, in the order they're
// written to columns.
var (
	VectorNames = []string{"pos", "vel", "omega", "drag", "pforce"}
	ScalarNames = []string{"radius", "volume", "mass", "density", "inv_i"}
)

// ColumnNames returns the names of every column produced by Columns, in a
// fixed order.
func ColumnNames() []string {
	names := []string{"id"}
	for _, v := range VectorNames {
		c := ComponentNames(v)
		names = append(names, c[:]...)
	}
	names = append(names, ScalarNames...)
	return append(names, "phase", "state")
}

// View returns the columnar view of a slice of particles. Vector fields are
// kept as [3]float64 arrays.
func View(ps []Particle) Fields {
	n := len(ps)
	id := make([]int64, n)
	vec := make([][][3]float64, len(VectorNames))
	for i := range vec {
		vec[i] = make([][3]float64, n)
	}
	sc := make([][]float64, len(ScalarNames))
	for i := range sc {
		sc[i] = make([]float64, n)
	}
	phase, state := make([]int32, n), make([]int32, n)

	for i := range ps {
		p := &ps[i]
		id[i] = p.ID
		vec[0][i], vec[1][i], vec[2][i] = p.Pos, p.Vel, p.Omega
		vec[3][i], vec[4][i] = p.Drag, p.PressureForce
		sc[0][i], sc[1][i], sc[2][i] = p.Radius, p.Volume, p.Mass
		sc[3][i], sc[4][i] = p.Density, p.OneOverI
		phase[i], state[i] = p.Phase, int32(p.State)
	}

	f := Fields{"id": NewInt64("id", id)}
	for i, name := range VectorNames {
		f[name] = NewVec64(name, vec[i])
	}
	for i, name := range ScalarNames {
		f[name] = NewFloat64(name, sc[i])
	}
	f["phase"] = NewInt32("phase", phase)
	f["state"] = NewInt32("state", state)
	return f
}

// Columns returns every particle in the container as flat columns sorted by
// ID. Vector fields are split into components (see ColumnNames).
func Columns(c *Container) (Fields, error) {
	scheme := NewIDSplit(c.ranks)
	out := Fields{}
	var from, to [][]int
	var err error

	for r := range c.ranks {
		view := View(c.ranks[r])
		if len(out) == 0 {
			for _, f := range view {
				f.CreateDestination(out, c.Len())
			}
		}
		from, to, err = scheme.Indices(c.ranks[r], from, to)
		if err != nil {
			return nil, err
		}
		for _, f := range view {
			if err := f.Transfer(out, from[0], to[0]); err != nil {
				return nil, err
			}
		}
	}

	if len(out) == 0 {
		for _, f := range View(nil) {
			f.CreateDestination(out, 0)
		}
	}
	return out, nil
}

// FromColumns is the inverse of Columns.
func FromColumns(f Fields) ([]Particle, error) {
	idField, ok := f["id"]
	if !ok {
		return nil, fmt.Errorf("particle columns don't contain 'id'")
	}
	id, ok := idField.Data().([]int64)
	if !ok {
		return nil, fmt.Errorf("column 'id' has type %T, not []int64",
			idField.Data())
	}
	n := len(id)

	float64s := func(name string) ([]float64, error) {
		g, ok := f[name]
		if !ok {
			return nil, fmt.Errorf("particle columns don't contain '%s'", name)
		}
		x, ok := g.Data().([]float64)
		if !ok || len(x) != n {
			return nil, fmt.Errorf("column '%s' isn't a []float64 of "+
				"length %d", name, n)
		}
		return x, nil
	}
	int32s := func(name string) ([]int32, error) {
		g, ok := f[name]
		if !ok {
			return nil, fmt.Errorf("particle columns don't contain '%s'", name)
		}
		x, ok := g.Data().([]int32)
		if !ok || len(x) != n {
			return nil, fmt.Errorf("column '%s' isn't a []int32 of "+
				"length %d", name, n)
		}
		return x, nil
	}

	ps := make([]Particle, n)
	for i := range ps {
		ps[i].ID = id[i]
	}

	for v, name := range VectorNames {
		for dim, cname := range ComponentNames(name) {
			x, err := float64s(cname)
			if err != nil {
				return nil, err
			}
			for i := range ps {
				vectorOf(&ps[i], v)[dim] = x[i]
			}
		}
	}
	for s, name := range ScalarNames {
		x, err := float64s(name)
		if err != nil {
			return nil, err
		}
		for i := range ps {
			*scalarOf(&ps[i], s) = x[i]
		}
	}

	phase, err := int32s("phase")
	if err != nil {
		return nil, err
	}
	state, err := int32s("state")
	if err != nil {
		return nil, err
	}
	for i := range ps {
		ps[i].Phase, ps[i].State = phase[i], State(state[i])
	}
	return ps, nil
}

func vectorOf(p *Particle, v int) *[3]float64 {
	return [...]*[3]float64{
		&p.Pos, &p.Vel, &p.Omega, &p.Drag, &p.PressureForce,
	}[v]
}

func scalarOf(p *Particle, s int) *float64 {
	return [...]*float64{
		&p.Radius, &p.Volume, &p.Mass, &p.Density, &p.OneOverI,
	}[s]
}
