package catio

import (
	"fmt"
	"os"
	"strconv"

	"github.com/phil-mansfield/cfdem/lib/particles"
)

// ParticleInputColumns names the columns of a particle input deck. The deck
// starts with a line holding the particle count, followed by one line per
// particle.
var ParticleInputColumns = map[string]int{
	"phase": 0, "x": 1, "y": 2, "z": 3, "radius": 4, "density": 5,
	"u": 6, "v": 7, "w": 8,
}

var inputFloatColumns = []string{"x", "y", "z", "radius", "density",
	"u", "v", "w"}

// ReadParticleFile reads the particle input deck in fname.
func ReadParticleFile(fname string) ([]particles.Particle, error) {
	text, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	ps, err := ReadParticleInput(text)
	if err != nil {
		return nil, fmt.Errorf("could not read particle input deck %s: %w",
			fname, err)
	}
	return ps, nil
}

// ReadParticleInput parses a particle input deck. IDs are left unset so that
// the Container assigns them.
func ReadParticleInput(text []byte) ([]particles.Particle, error) {
	n, err := particleCount(text)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig
	config.SkipLines = 1
	config.ColumnNames = ParticleInputColumns
	rd := Text(text, config)
	if rd.Lines() != n {
		return nil, fmt.Errorf("the header gives %d particles, but %d "+
			"particle lines follow", n, rd.Lines())
	}

	phase, err := rd.ReadInts([]string{"phase"})
	if err != nil {
		return nil, err
	}
	cols, err := rd.ReadFloat64s(inputFloatColumns)
	if err != nil {
		return nil, err
	}

	out := make([]particles.Particle, n)
	for i := range out {
		x, y, z, r, rho := cols[0][i], cols[1][i], cols[2][i], cols[3][i],
			cols[4][i]
		if r <= 0 || rho <= 0 {
			return nil, fmt.Errorf("particle %d has radius %g and density "+
				"%g, but both must be positive", i, r, rho)
		}
		vel := [3]float64{cols[5][i], cols[6][i], cols[7][i]}
		out[i] = particles.New([3]float64{x, y, z}, vel, r, rho,
			int32(phase[0][i]))
	}
	return out, nil
}

func particleCount(text []byte) (int, error) {
	rd := newTextReader(text)
	if rd.Lines() == 0 {
		return 0, fmt.Errorf("empty particle input deck")
	}
	words := fields(rd.lines[0], rd.config.Separator)
	if len(words) != 1 {
		return 0, fmt.Errorf("the first line must hold only the particle "+
			"count, found %d columns", len(words))
	}
	n, err := strconv.Atoi(string(words[0]))
	if err != nil {
		return 0, fmt.Errorf("could not parse particle count: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative particle count %d", n)
	}
	return n, nil
}
